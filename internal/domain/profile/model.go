package profile

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrEmptyUserID      = errors.New("user ID is required")
	ErrEmptyDisplayName = errors.New("display name is required")
	ErrInvalidEmail     = errors.New("email address is invalid")
	ErrNotFound         = errors.New("profile not found")
)

// Profile is the public display profile of a user, joined into
// conversation lists.
type Profile struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Email       string // optional; used for offline notifications
	Online      bool
	LastSeenAt  time.Time
	UpdatedAt   time.Time
}

// Validate checks if the Profile has valid data.
// PRE: Profile struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Profile) Validate() error {
	if p.UserID == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		return ErrEmptyDisplayName
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

// SetOnline records a presence change.
// POST: Online is updated; LastSeenAt moves to at when going offline or coming online
func (p *Profile) SetOnline(online bool, at time.Time) {
	p.Online = online
	p.LastSeenAt = at
	p.UpdatedAt = at
}

// CanBeNotified reports whether an offline e-mail notification can be sent.
func (p *Profile) CanBeNotified() bool {
	return !p.Online && p.Email != ""
}

// Placeholder returns the profile used when a user has none on record.
func Placeholder(userID string) Profile {
	return Profile{UserID: userID, DisplayName: userID}
}

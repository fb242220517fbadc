package profile

import (
	"context"
	"time"

	domain "vortex/internal/domain/profile"
)

// Store persists display profiles.
type Store interface {
	// GetByID retrieves the profile of userID.
	// POST: Returns the profile or an error wrapping domain.ErrNotFound
	GetByID(ctx context.Context, userID string) (domain.Profile, error)

	// Save inserts or replaces a profile.
	// PRE: p has been validated
	Save(ctx context.Context, p domain.Profile) error

	// SetPresence updates the online flag of an existing profile.
	// POST: Returns an error wrapping domain.ErrNotFound if no profile exists
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

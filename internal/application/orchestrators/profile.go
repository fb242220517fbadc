package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vortex/internal/adapters/live"
	"vortex/internal/domain/conversation"
	"vortex/internal/domain/profile"
)

// ProfileStoreForOrchestrator defines the profile store methods orchestrators need.
type ProfileStoreForOrchestrator interface {
	GetByID(ctx context.Context, userID string) (profile.Profile, error)
	Save(ctx context.Context, p profile.Profile) error
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// PartnerLister lists a user's conversations so their partners can be notified.
type PartnerLister interface {
	ListByParticipant(ctx context.Context, userID string) ([]conversation.Conversation, error)
}

// --- Save Profile ---

// SaveProfileInput carries input for the save profile orchestrator.
type SaveProfileInput struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Email       string
}

// ProfileDeps holds dependencies for the profile orchestrators.
// Conversations and Bus are optional.
type ProfileDeps struct {
	Profiles      ProfileStoreForOrchestrator
	Conversations PartnerLister
	Bus           live.Bus
	Now           func() time.Time
}

// ExecuteSaveProfile creates or updates the caller's display profile.
// Presence is kept from the stored profile.
// PRE: UserID and DisplayName are non-empty
// POST: Profile persisted; conversation partners are notified
func ExecuteSaveProfile(ctx context.Context, input SaveProfileInput, deps ProfileDeps) (profile.Profile, error) {
	p, err := deps.Profiles.GetByID(ctx, input.UserID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return profile.Profile{}, err
	}
	p.UserID = input.UserID
	p.DisplayName = input.DisplayName
	p.AvatarURL = input.AvatarURL
	p.Email = input.Email
	p.UpdatedAt = deps.Now().UTC()

	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}
	if err := deps.Profiles.Save(ctx, p); err != nil {
		return profile.Profile{}, err
	}

	slog.Info("profile_event", "event", "profile_saved", "user_id", p.UserID)
	notifyPartners(ctx, deps, p.UserID, p.UpdatedAt)
	return p, nil
}

// --- Set Presence ---

// SetPresenceInput carries input for the presence orchestrator.
type SetPresenceInput struct {
	UserID string
	Online bool
}

// ExecuteSetPresence records the caller coming online or going offline.
// PRE: UserID has a saved profile
// POST: Online flag and LastSeenAt updated; conversation partners are notified
func ExecuteSetPresence(ctx context.Context, input SetPresenceInput, deps ProfileDeps) error {
	if input.UserID == "" {
		return profile.ErrEmptyUserID
	}
	at := deps.Now().UTC()
	if err := deps.Profiles.SetPresence(ctx, input.UserID, input.Online, at); err != nil {
		return err
	}
	slog.Info("profile_event", "event", "presence_changed", "user_id", input.UserID, "online", input.Online)
	notifyPartners(ctx, deps, input.UserID, at)
	return nil
}

// notifyPartners publishes profile.updated on the user topic of everyone
// userID has a conversation with, so their lists re-emit the join.
func notifyPartners(ctx context.Context, deps ProfileDeps, userID string, at time.Time) {
	if deps.Bus == nil || deps.Conversations == nil {
		return
	}
	convs, err := deps.Conversations.ListByParticipant(ctx, userID)
	if err != nil {
		slog.Warn("profile_event", "event", "partner_lookup_failed", "user_id", userID, "error", err)
		return
	}
	ev, err := live.NewEvent(live.EventProfileUpdated, "", userID, nil, at)
	if err != nil {
		return
	}
	for _, c := range convs {
		partner := c.OtherParticipant(userID)
		if partner == userID {
			continue
		}
		ev.ConversationID = c.ID
		publish(ctx, deps.Bus, live.UserTopic(partner), ev)
	}
}

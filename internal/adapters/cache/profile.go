package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	profilestore "vortex/internal/adapters/storage/profile"
	domain "vortex/internal/domain/profile"
)

// DefaultProfileTTL bounds how stale a cached profile can get if an
// invalidation is lost.
const DefaultProfileTTL = 5 * time.Minute

// CachedProfileStore is a read-through cache in front of a profile store.
// Writes go to the store first and then invalidate the cached copy.
// Cache failures are logged and fall through to the store.
type CachedProfileStore struct {
	store profilestore.Store
	cache Cache
	ttl   time.Duration
}

var _ profilestore.Store = (*CachedProfileStore)(nil)

// NewCachedProfileStore wraps store. A non-positive ttl uses DefaultProfileTTL.
func NewCachedProfileStore(store profilestore.Store, cache Cache, ttl time.Duration) *CachedProfileStore {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &CachedProfileStore{store: store, cache: cache, ttl: ttl}
}

// ProfileKey is the cache key of a user's profile.
func ProfileKey(userID string) string {
	return "profile:" + userID
}

// GetByID returns the cached profile, loading it from the store on a miss.
// Missing profiles are not cached.
func (c *CachedProfileStore) GetByID(ctx context.Context, userID string) (domain.Profile, error) {
	key := ProfileKey(userID)
	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var p domain.Profile
		if jerr := json.Unmarshal([]byte(raw), &p); jerr == nil {
			return p, nil
		}
		slog.Warn("cache_event", "event", "profile_decode_failed", "user_id", userID)
	case !errors.Is(err, ErrMiss):
		slog.Warn("cache_event", "event", "profile_get_failed", "user_id", userID, "error", err)
	}

	p, err := c.store.GetByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	if data, jerr := json.Marshal(p); jerr == nil {
		if serr := c.cache.Set(ctx, key, string(data), c.ttl); serr != nil {
			slog.Warn("cache_event", "event", "profile_set_failed", "user_id", userID, "error", serr)
		}
	}
	return p, nil
}

// Save writes through to the store and invalidates the cached entry.
func (c *CachedProfileStore) Save(ctx context.Context, p domain.Profile) error {
	if err := c.store.Save(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.UserID)
	return nil
}

// SetPresence writes through to the store and invalidates the cached entry.
func (c *CachedProfileStore) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	if err := c.store.SetPresence(ctx, userID, online, at); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachedProfileStore) invalidate(ctx context.Context, userID string) {
	if _, err := c.cache.Del(ctx, ProfileKey(userID)); err != nil {
		slog.Warn("cache_event", "event", "profile_invalidate_failed", "user_id", userID, "error", err)
	}
}

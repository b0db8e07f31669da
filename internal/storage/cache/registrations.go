package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedRegistrationStore is a decorator that adds read-aside caching to any
// RegistrationStore. Every mutation invalidates the user's entry so a pruned
// or unregistered device stops receiving pushes immediately.
type CachedRegistrationStore struct {
	realStore notify.RegistrationStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedRegistrationStore(realStore notify.RegistrationStore, cache CacheClient, ttl time.Duration) *CachedRegistrationStore {
	return &CachedRegistrationStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedRegistrationStore) ListByUser(ctx context.Context, userID string) ([]notify.DeviceRegistration, error) {
	key := s.cacheKey(userID)

	var cached []notify.DeviceRegistration
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization, not a transaction. If Redis is down we
	// just serve from the real store.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedRegistrationStore) Register(ctx context.Context, reg notify.DeviceRegistration) error {
	if err := s.realStore.Register(ctx, reg); err != nil {
		return err
	}
	return s.invalidate(ctx, reg.UserID)
}

func (s *CachedRegistrationStore) Unregister(ctx context.Context, userID, token string) error {
	if err := s.realStore.Unregister(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// Delete is the janitor's prune path. Even though the registrations being
// removed are dead tokens, the cache entry still holds them and must go.
func (s *CachedRegistrationStore) Delete(ctx context.Context, userID string, ids []string) error {
	if err := s.realStore.Delete(ctx, userID, ids); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// --- Helpers ---

func (s *CachedRegistrationStore) invalidate(ctx context.Context, userID string) error {
	return s.cache.Del(ctx, s.cacheKey(userID))
}

func (s *CachedRegistrationStore) cacheKey(userID string) string {
	return fmt.Sprintf("push:registrations:%s", userID)
}

// Package identity resolves external identities (email subjects from
// the auth provider, Telegram accounts from the bot) to stable user
// IDs, with a short-lived cache so repeated resolution inside one burst
// of requests costs one query.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eisenplan/internal/repository"
)

const (
	cacheTTL   = 5 * time.Minute
	maxEntries = 100
)

// Cache is an advisory identity-key → userID map. Losing it is
// harmless; the next resolution just hits storage again.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	userID   string
	cachedAt time.Time
}

func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{entries: make(map[string]cacheEntry), now: now}
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.cachedAt) > cacheTTL {
		delete(c.entries, key)
		return "", false
	}
	return entry.userID, true
}

func (c *Cache) Put(key, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{userID: userID, cachedAt: c.now()}

	// Bound memory; eviction order does not matter for an advisory cache.
	if len(c.entries) > maxEntries {
		for key := range c.entries {
			delete(c.entries, key)
			break
		}
	}
}

// Resolver turns provider identities into user IDs.
type Resolver struct {
	users *repository.UserRepository
	cache *Cache
}

func NewResolver(users *repository.UserRepository, cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache(nil)
	}
	return &Resolver{users: users, cache: cache}
}

// EnsureUser returns the stable user ID for an email identity,
// creating the user on first sight.
func (r *Resolver) EnsureUser(ctx context.Context, email, name string) (string, error) {
	if userID, ok := r.cache.Get(email); ok {
		return userID, nil
	}
	user, err := r.users.UpsertByEmail(ctx, email, name)
	if err != nil {
		return "", err
	}
	r.cache.Put(email, user.ID)
	return user.ID, nil
}

// EnsureTelegramUser returns the stable user ID for a Telegram account,
// creating the user on first sight. The cache key matches the synthetic
// email UpsertFromTelegram derives, so both resolution paths share one
// namespace.
func (r *Resolver) EnsureTelegramUser(ctx context.Context, telegramID int64, name string) (string, error) {
	key := fmt.Sprintf("tg:%d", telegramID)
	if userID, ok := r.cache.Get(key); ok {
		return userID, nil
	}
	user, err := r.users.UpsertFromTelegram(ctx, telegramID, name)
	if err != nil {
		return "", err
	}
	r.cache.Put(key, user.ID)
	return user.ID, nil
}

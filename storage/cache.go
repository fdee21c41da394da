package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

type backend interface {
	FetchAllApplications(ctx context.Context, userID string) ([]domain.Application, error)
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error
}

// Cache wraps a Storage instance with Redis-backed caching for read operations.
//
// Enqueueing commands evicts the user's keys and leaves a pending marker
// holding the evicted snapshot. While the marker is present, reads are served
// from the table but not cached again until their content stops matching the
// snapshot. A slow read model therefore cannot pin stale data for a full TTL.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchAllApplications(ctx context.Context, userID string) ([]domain.Application, error) {
	if apps, ok := c.loadApplicationsFromCache(ctx, userID); ok {
		return apps, nil
	}

	apps, err := c.base.FetchAllApplications(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.storeApplications(ctx, userID, apps)
	return apps, nil
}

func (c *Cache) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	if settings, ok := c.loadSettingsFromCache(ctx, userID); ok {
		return settings, nil
	}

	settings, err := c.base.FetchSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, err
	}

	c.storeSettings(ctx, userID, settings)
	return settings, nil
}

func (c *Cache) EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error {
	if err := c.base.EnqueueCommands(ctx, userID, cmds); err != nil {
		return err
	}

	c.evict(ctx, userID)
	return nil
}

func (c *Cache) loadApplicationsFromCache(ctx context.Context, userID string) ([]domain.Application, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, ApplicationsCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, ApplicationsCacheKey(userID)).Err()
		}
		return nil, false
	}
	var apps []domain.Application
	if err := json.Unmarshal(data, &apps); err != nil {
		_ = c.redis.Del(ctx, ApplicationsCacheKey(userID)).Err()
		return nil, false
	}
	return apps, true
}

func (c *Cache) loadSettingsFromCache(ctx context.Context, userID string) (domain.Settings, bool) {
	if c.redis == nil {
		return domain.Settings{}, false
	}
	data, err := c.redis.Get(ctx, SettingsCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, SettingsCacheKey(userID)).Err()
		}
		return domain.Settings{}, false
	}
	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		_ = c.redis.Del(ctx, SettingsCacheKey(userID)).Err()
		return domain.Settings{}, false
	}
	return settings, true
}

func (c *Cache) storeApplications(ctx context.Context, userID string, apps []domain.Application) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(apps)
	if err != nil {
		return
	}
	if !c.clearPending(ctx, applicationsPendingKey(userID), data) {
		return
	}
	_ = c.redis.Set(ctx, ApplicationsCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) storeSettings(ctx context.Context, userID string, settings domain.Settings) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if !c.clearPending(ctx, settingsPendingKey(userID), data) {
		return
	}
	_ = c.redis.Set(ctx, SettingsCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	if c.ttl == 0 {
		_, _ = c.redis.Del(ctx, ApplicationsCacheKey(userID), SettingsCacheKey(userID)).Result()
		return
	}
	c.markPending(ctx, ApplicationsCacheKey(userID), applicationsPendingKey(userID))
	c.markPending(ctx, SettingsCacheKey(userID), settingsPendingKey(userID))
}

// markPending moves the current cached value into the pending marker. An
// empty marker means a command was enqueued before any value was cached, so
// the baseline is taken from the first table read instead.
func (c *Cache) markPending(ctx context.Context, cacheKey, pendingKey string) {
	baseline, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		baseline = nil
	}
	_ = c.redis.Set(ctx, pendingKey, baseline, c.ttl).Err()
	_ = c.redis.Del(ctx, cacheKey).Err()
}

// clearPending reports whether freshly read data may be cached. Data still
// matching the pending baseline is assumed stale and served uncached.
func (c *Cache) clearPending(ctx context.Context, pendingKey string, data []byte) bool {
	baseline, err := c.redis.Get(ctx, pendingKey).Bytes()
	if err != nil {
		return true
	}
	if len(baseline) == 0 {
		_ = c.redis.Set(ctx, pendingKey, data, c.ttl).Err()
		return false
	}
	if bytes.Equal(baseline, data) {
		return false
	}
	_ = c.redis.Del(ctx, pendingKey).Err()
	return true
}

// ApplicationsCacheKey is the redis key holding the cached application list
// for a user. The read model updater deletes it after applying a command.
func ApplicationsCacheKey(userID string) string {
	return "applications:" + userID
}

// SettingsCacheKey is the redis key holding a user's cached board settings.
func SettingsCacheKey(userID string) string {
	return "settings:" + userID
}

func applicationsPendingKey(userID string) string {
	return "applications:pending:" + userID
}

func settingsPendingKey(userID string) string {
	return "settings:pending:" + userID
}

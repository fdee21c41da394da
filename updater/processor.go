package updater

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/kaitranntt/jobhunt-sub002/domain"
	"github.com/kaitranntt/jobhunt-sub002/storage"
)

type commandApplier interface {
	Apply(ctx context.Context, env domain.CommandEnvelope) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type updateNote struct {
	UserID string `json:"userId"`
}

// ProcessCommand applies a single command envelope to the read model, drops
// the stale API cache entries and announces the change on the updates channel.
func ProcessCommand(ctx context.Context, applier commandApplier, cache cacheInvalidator, rc *redis.Client, updatesChannel string, env domain.CommandEnvelope) error {
	if err := applier.Apply(ctx, env); err != nil {
		return err
	}
	if cache != nil {
		cache.Invalidate(ctx, env.UserID)
	}
	payload, err := sonic.MarshalString(updateNote{UserID: env.UserID})
	if err != nil {
		return err
	}
	if err := rc.Publish(ctx, updatesChannel, payload).Err(); err != nil {
		log.Errorf("unable to publish update for %s to %s", env.UserID, updatesChannel)
	}
	return nil
}

// CacheInvalidator drops the API read cache entries for a user after the
// read model changed. The API repopulates them on the next read; pending
// baseline markers it keeps alongside the entries take care of stale reads.
type CacheInvalidator struct {
	redis *redis.Client
}

func NewCacheInvalidator(rc *redis.Client) *CacheInvalidator {
	return &CacheInvalidator{redis: rc}
}

func (c *CacheInvalidator) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.redis == nil {
		return
	}
	keys := []string{storage.ApplicationsCacheKey(userID), storage.SettingsCacheKey(userID)}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log.WithError(err).WithField("user", userID).Error("failed to drop cache entries")
	}
}

package updater

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kaitranntt/jobhunt-sub002/domain"
	"github.com/kaitranntt/jobhunt-sub002/storage"
)

type fakeApplier struct{ envs []domain.CommandEnvelope }

func (f *fakeApplier) Apply(ctx context.Context, env domain.CommandEnvelope) error {
	f.envs = append(f.envs, env)
	return nil
}

type fakeInvalidator struct{ users []string }

func (f *fakeInvalidator) Invalidate(ctx context.Context, userID string) {
	f.users = append(f.users, userID)
}

func newProcessorRedis(t *testing.T) *redis.Client {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestProcessCommandPublishesUpdate(t *testing.T) {
	rc := newProcessorRedis(t)
	ctx := context.Background()
	applier := &fakeApplier{}
	cache := &fakeInvalidator{}

	pubsub := rc.Subscribe(ctx, "board-updates")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	done := make(chan string, 1)
	go func() {
		msg := <-pubsub.Channel()
		done <- msg.Payload
	}()

	env := domain.CommandEnvelope{UserID: "u1", Command: domain.Command{EntityType: domain.EntityApplication, Type: domain.StatusChanged, EntityID: "a1"}}
	if err := ProcessCommand(ctx, applier, cache, rc, "board-updates", env); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(applier.envs) != 1 || applier.envs[0].UserID != "u1" {
		t.Fatalf("expected command applied: %#v", applier.envs)
	}
	if len(cache.users) != 1 || cache.users[0] != "u1" {
		t.Fatalf("expected cache invalidation: %#v", cache.users)
	}
	select {
	case payload := <-done:
		if payload != `{"userId":"u1"}` {
			t.Fatalf("unexpected payload %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}
}

func TestCacheInvalidatorDropsKeys(t *testing.T) {
	rc := newProcessorRedis(t)
	ctx := context.Background()
	if err := rc.Set(ctx, storage.ApplicationsCacheKey("u1"), "[]", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := rc.Set(ctx, storage.SettingsCacheKey("u1"), "{}", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}

	NewCacheInvalidator(rc).Invalidate(ctx, "u1")

	if rc.Exists(ctx, storage.ApplicationsCacheKey("u1"), storage.SettingsCacheKey("u1")).Val() != 0 {
		t.Fatal("expected cache keys to be dropped")
	}
}

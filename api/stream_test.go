package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

type flushRecorder struct{ *httptest.ResponseRecorder }

func (flushRecorder) Flush() {}

func setupStreamRedis(t *testing.T) *redis.Client {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestStreamClientsAddRemoveBroadcast(t *testing.T) {
	clients := newStreamClients()
	ch := clients.add("user1")
	clients.Broadcast("user1", []byte("hello"))
	select {
	case msg := <-ch:
		if string(msg) != "hello" {
			t.Fatalf("expected hello got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	clients.remove("user1", ch)
	clients.Broadcast("user1", []byte("world"))
	select {
	case <-ch:
		t.Fatal("received message after removal")
	default:
	}
}

func TestStreamBoardWritesInitialSnapshot(t *testing.T) {
	store := &mockStore{
		apps:     []domain.Application{{ID: "1", Company: "Acme", Title: "Engineer", Status: domain.StatusApplied}},
		settings: domain.Settings{ApplicationsPerStatus: 25},
	}
	clients := newStreamClients()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := flushRecorder{httptest.NewRecorder()}
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	c := e.NewContext(req, rec)
	handler := streamBoard(store, mockAuth{}, clients)

	errCh := make(chan error, 1)
	go func() { errCh <- handler(c) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("handler error: %v", err)
	}

	expectedData, _ := sonic.Marshal(buildBoard(store.apps, store.settings))
	expected := "data: " + string(expectedData) + "\n\n"
	if rec.Body.String() != expected {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestStreamBoardPushesBroadcasts(t *testing.T) {
	store := &mockStore{settings: domain.Settings{ApplicationsPerStatus: 25}}
	clients := newStreamClients()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := flushRecorder{httptest.NewRecorder()}
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	c := e.NewContext(req, rec)
	handler := streamBoard(store, mockAuth{}, clients)

	errCh := make(chan error, 1)
	go func() { errCh <- handler(c) }()
	time.Sleep(50 * time.Millisecond)
	clients.Broadcast("user", []byte(`{"updated":true}`))
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("handler error: %v", err)
	}

	initial, _ := sonic.Marshal(buildBoard(nil, store.settings))
	expected := "data: " + string(initial) + "\n\n" + "data: " + `{"updated":true}` + "\n\n"
	if rec.Body.String() != expected {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestSubscribeUpdatesBroadcastsSnapshots(t *testing.T) {
	rc := setupStreamRedis(t)
	store := &mockStore{
		apps:     []domain.Application{{ID: "1", Company: "Acme", Title: "Engineer", Status: domain.StatusApplied}},
		settings: domain.Settings{ApplicationsPerStatus: 25},
	}
	clients := newStreamClients()
	ch := clients.add("user1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		SubscribeUpdates(ctx, log.New(), rc, store, "board-updates", clients)
		close(done)
	}()

	// the subscription needs a moment to attach before the publish
	deadline := time.Now().Add(time.Second)
	for rc.PubSubNumSub(ctx, "board-updates").Val()["board-updates"] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := rc.Publish(ctx, "board-updates", `{"userId":"user1"}`).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		expected, _ := sonic.Marshal(buildBoard(store.apps, store.settings))
		if string(msg) != string(expected) {
			t.Fatalf("unexpected payload %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

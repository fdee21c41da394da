package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// StreamClients tracks connected board stream subscribers per user.
type StreamClients struct {
	mu      sync.Mutex
	clients map[string]map[chan []byte]struct{}
}

func newStreamClients() *StreamClients {
	return &StreamClients{clients: make(map[string]map[chan []byte]struct{})}
}

func (s *StreamClients) add(userID string) chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	set, ok := s.clients[userID]
	if !ok {
		set = make(map[chan []byte]struct{})
		s.clients[userID] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *StreamClients) remove(userID string, ch chan []byte) {
	s.mu.Lock()
	if set, ok := s.clients[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(s.clients, userID)
		}
	}
	s.mu.Unlock()
}

// Broadcast delivers a board snapshot to every subscriber of the user. Slow
// subscribers are skipped; they pick up the latest snapshot on their next
// wakeup because channels hold at most one pending payload.
func (s *StreamClients) Broadcast(userID string, data []byte) {
	s.mu.Lock()
	for ch := range s.clients[userID] {
		select {
		case ch <- data:
		default:
		}
	}
	s.mu.Unlock()
}

// RegisterStream wires the SSE board stream endpoint and returns the client
// registry the update subscription broadcasts into.
func RegisterStream(e *echo.Echo, store Storage, auth Authenticator) *StreamClients {
	clients := newStreamClients()
	e.GET("/api/stream", streamBoard(store, auth, clients))
	return clients
}

func streamBoard(store Storage, auth Authenticator, clients *StreamClients) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()
		ch := clients.add(userID)
		defer clients.remove(userID, ch)

		data, err := boardSnapshot(ctx, store, userID)
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		for {
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return nil
			}
			if _, err := c.Response().Write(data); err != nil {
				return nil
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return nil
			case data = <-ch:
				continue
			}
		}
	}
}

func boardSnapshot(ctx context.Context, store Storage, userID string) ([]byte, error) {
	apps, err := store.FetchAllApplications(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings, err := store.FetchSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(buildBoard(apps, settings))
}

// SubscribeUpdates listens on the read model update channel and pushes fresh
// board snapshots to connected stream clients. The subscription reconnects
// when the pub/sub channel closes.
func SubscribeUpdates(
	ctx context.Context,
	logger *log.Logger,
	rc *redis.Client,
	store Storage,
	updatesChannel string,
	clients *StreamClients,
) {
	for {
		sub := rc.Subscribe(ctx, updatesChannel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev struct {
					UserID string `json:"userId"`
				}
				if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
					logger.Errorf("unable to parse update: %v", err)
					continue
				}
				data, err := boardSnapshot(ctx, store, ev.UserID)
				if err != nil {
					logger.Errorf("board snapshot: %v", err)
					continue
				}
				clients.Broadcast(ev.UserID, data)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

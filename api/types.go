package api

import (
	"context"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchApplications(ctx context.Context, userID, continuationToken string, limit int) ([]domain.Application, string, error)
	FetchAllApplications(ctx context.Context, userID string) ([]domain.Application, error)
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error
	Ping(ctx context.Context) error
}

// InvalidContinuationTokenError is returned when a supplied pagination token is malformed or expired.
type InvalidContinuationTokenError interface {
	error
	InvalidContinuationToken()
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate commands.
type Deduper interface {
	// AddMany records the idempotency keys and reports which were newly added.
	AddMany(ctx context.Context, userID string, keys []string) ([]bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}

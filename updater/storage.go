package updater

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// Storage wraps the Azure clients used by the updater service.
type Storage struct {
	queue         *azqueue.QueueClient
	appsTable     *aztables.Client
	settingsTable *aztables.Client
}

// New creates a Storage from connection parameters.
func New(connStr, commandQueue, appsTable, settingsTable string) (*Storage, error) {
	queue, err := azqueue.NewQueueClientFromConnectionString(connStr, commandQueue, nil)
	if err != nil {
		return nil, err
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, err
	}
	return &Storage{
		queue:         queue,
		appsTable:     svc.NewClient(appsTable),
		settingsTable: svc.NewClient(settingsTable),
	}, nil
}

// Dequeue retrieves a single message from the command queue.
func (s *Storage) Dequeue(ctx context.Context) (*azqueue.DequeuedMessage, error) {
	resp, err := s.queue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return resp.Messages[0], nil
}

// Delete removes a processed message from the queue.
func (s *Storage) Delete(ctx context.Context, id, receipt string) error {
	_, err := s.queue.DeleteMessage(ctx, id, receipt, nil)
	return err
}

// GetApplication retrieves an application entity if present.
func (s *Storage) GetApplication(ctx context.Context, pk, rk string) (*ApplicationEntity, error) {
	ent, err := s.appsTable.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil, nil
		}
		return nil, err
	}
	var app ApplicationEntity
	if err := json.Unmarshal(ent.Value, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// InsertApplication creates an application entity, failing on conflict.
func (s *Storage) InsertApplication(ctx context.Context, ent ApplicationEntity) error {
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.appsTable.AddEntity(ctx, payload, nil)
	}
	return err
}

// UpdateApplication merges changes into an existing application entity. The
// update is rejected with ErrConcurrencyConflict when the entity changed
// since the given etag was read.
func (s *Storage) UpdateApplication(ctx context.Context, ent ApplicationUpdate, etag string) error {
	payload, err := json.Marshal(ent)
	if err == nil {
		et := matchETag(etag)
		_, err = s.appsTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
		if isStatus(err, 412) {
			err = ErrConcurrencyConflict
		}
	}
	return err
}

// GetSettings retrieves a user settings entity if present.
func (s *Storage) GetSettings(ctx context.Context, id string) (*SettingsEntity, error) {
	ent, err := s.settingsTable.GetEntity(ctx, id, id, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil, nil
		}
		return nil, err
	}
	var sEnt SettingsEntity
	if err := json.Unmarshal(ent.Value, &sEnt); err != nil {
		return nil, err
	}
	return &sEnt, nil
}

// InsertSettings creates a user settings entity, failing on conflict.
func (s *Storage) InsertSettings(ctx context.Context, ent SettingsEntity) error {
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.settingsTable.AddEntity(ctx, payload, nil)
	}
	return err
}

// UpdateSettings merges changes into an existing settings entity.
func (s *Storage) UpdateSettings(ctx context.Context, ent SettingsUpdate, etag string) error {
	payload, err := json.Marshal(ent)
	if err == nil {
		et := matchETag(etag)
		_, err = s.settingsTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
		if isStatus(err, 412) {
			err = ErrConcurrencyConflict
		}
	}
	return err
}

func matchETag(etag string) azcore.ETag {
	if etag == "" {
		return azcore.ETagAny
	}
	return azcore.ETag(etag)
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

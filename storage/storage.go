// Package storage provides the read-side persistence for the jobhunt API:
// Azure Table Storage for applications and settings, an Azure Queue for
// write commands, and an optional Redis read-through cache.
package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"golang.org/x/sync/errgroup"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

const (
	queuePerCPU             = 10
	defaultQueueConcurrency = 10
	maxQueueConcurrency     = 64
)

// queueClient is the subset of the Azure queue client used by Storage.
type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error)
}

// Storage provides access to the underlying persistence mechanisms.
type Storage struct {
	appsTable        *aztables.Client
	settingsTable    *aztables.Client
	commandQueue     queueClient
	pageSize         int
	queueConcurrency int
}

// New creates a Storage instance from the given connection string.
func New(connStr, appsTable, settingsTable, commandQueue string, pageSize int) (*Storage, error) {
	if pageSize <= 0 {
		return nil, errors.New("storage: page size must be positive")
	}
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	cq, err := azqueue.NewQueueClientFromConnectionString(connStr, commandQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		appsTable:        svc.NewClient(appsTable),
		settingsTable:    svc.NewClient(settingsTable),
		commandQueue:     cq,
		pageSize:         pageSize,
		queueConcurrency: queueConcurrencyForCPU(runtime.NumCPU()),
	}, nil
}

// QueueConcurrency reports the fan-out used for queue sends.
func (s *Storage) QueueConcurrency() int {
	return s.queueConcurrency
}

func queueConcurrencyForCPU(cpu int) int {
	if cpu <= 0 {
		return defaultQueueConcurrency
	}
	n := cpu * queuePerCPU
	if n > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return n
}

type applicationEntity struct {
	aztables.Entity
	Company string `json:"Company"`
	Title   string `json:"Title"`
	URL     string `json:"URL"`
	Notes   string `json:"Notes"`
	Status  string `json:"Status"`
	Order   int    `json:"Order"`
}

func (e applicationEntity) toApplication() domain.Application {
	return domain.Application{
		ID:      e.RowKey,
		Company: e.Company,
		Title:   e.Title,
		URL:     e.URL,
		Notes:   e.Notes,
		Status:  domain.Status(e.Status),
		Order:   e.Order,
	}
}

type invalidContinuationTokenError struct{}

func (invalidContinuationTokenError) Error() string           { return "invalid continuation token" }
func (invalidContinuationTokenError) InvalidContinuationToken() {}

func encodeContinuationToken(pk, rk string) string {
	if pk == "" && rk == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(pk + "\n" + rk))
}

func decodeContinuationToken(token string) (pk, rk string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", invalidContinuationTokenError{}
	}
	parts := strings.SplitN(string(raw), "\n", 2)
	if len(parts) != 2 {
		return "", "", invalidContinuationTokenError{}
	}
	return parts[0], parts[1], nil
}

// FetchApplications retrieves one page of applications for the given user.
// An empty continuation token starts from the beginning; the returned token
// is empty on the last page.
func (s *Storage) FetchApplications(ctx context.Context, userID, continuationToken string, limit int) ([]domain.Application, string, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	filter := "PartitionKey eq '" + sanitizeKey(userID) + "'"
	top := int32(limit)
	opts := &aztables.ListEntitiesOptions{Filter: &filter, Top: &top}
	if continuationToken != "" {
		pk, rk, err := decodeContinuationToken(continuationToken)
		if err != nil {
			return nil, "", err
		}
		opts.NextPartitionKey = &pk
		opts.NextRowKey = &rk
	}

	pager := s.appsTable.NewListEntitiesPager(opts)
	if !pager.More() {
		return []domain.Application{}, "", nil
	}
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return nil, "", err
	}
	apps := make([]domain.Application, 0, len(resp.Entities))
	for _, raw := range resp.Entities {
		var ent applicationEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return nil, "", err
		}
		apps = append(apps, ent.toApplication())
	}
	next := ""
	if resp.NextPartitionKey != nil || resp.NextRowKey != nil {
		var pk, rk string
		if resp.NextPartitionKey != nil {
			pk = *resp.NextPartitionKey
		}
		if resp.NextRowKey != nil {
			rk = *resp.NextRowKey
		}
		next = encodeContinuationToken(pk, rk)
	}
	return apps, next, nil
}

// FetchAllApplications retrieves every application for the given user.
func (s *Storage) FetchAllApplications(ctx context.Context, userID string) ([]domain.Application, error) {
	filter := "PartitionKey eq '" + sanitizeKey(userID) + "'"
	pager := s.appsTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	apps := []domain.Application{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent applicationEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			apps = append(apps, ent.toApplication())
		}
	}
	return apps, nil
}

func decodeSettingsEntity(data []byte) (domain.Settings, error) {
	var raw struct {
		ApplicationsPerStatus int  `json:"ApplicationsPerStatus"`
		ShowClosed            bool `json:"ShowClosed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{ApplicationsPerStatus: raw.ApplicationsPerStatus, ShowClosed: raw.ShowClosed}, nil
}

func defaultSettings() domain.Settings {
	return domain.Settings{ApplicationsPerStatus: 25}
}

// FetchSettings retrieves board settings for the given user. Users that
// never saved settings get the defaults.
func (s *Storage) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	ent, err := s.settingsTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return defaultSettings(), nil
		}
		return domain.Settings{}, err
	}
	return decodeSettingsEntity(ent.Value)
}

// EnqueueCommands sends the given commands to the command queue, fanning out
// up to the configured concurrency.
func (s *Storage) EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.queueConcurrency)
	for _, cmd := range cmds {
		env := domain.CommandEnvelope{UserID: userID, Command: cmd}
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		payload := string(data)
		g.Go(func() error {
			_, err := s.commandQueue.EnqueueMessage(ctx, payload, nil)
			return err
		})
	}
	return g.Wait()
}

// Ping verifies the command queue is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.commandQueue.GetProperties(ctx, nil)
	return err
}

// sanitizeKey doubles single quotes so user supplied ids cannot break out of
// the OData filter literal.
func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, "'", "''")
}

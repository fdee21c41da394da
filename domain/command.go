package domain

import "github.com/bytedance/sonic"

// Entity types accepted on the command endpoint.
const (
	EntityApplication = "application"
	EntitySettings    = "settings"
)

// Command types accepted on the command endpoint.
const (
	ApplicationCreated = "application-created"
	ApplicationUpdated = "application-updated"
	StatusChanged      = "status-changed"
	SettingsUpdated    = "settings-updated"
)

// Command represents a write request for the domain model.
type Command struct {
	// ID carries the idempotency key when enqueued to the command queue.
	ID             string `json:"id,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
	EntityType     string `json:"entityType"`
	// EntityID addresses the target read-model row. It is assigned
	// server-side for application-created commands.
	EntityID  string                 `json:"entityId,omitempty"`
	Type      string                 `json:"type"`
	Data      sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// CommandEnvelope wraps a command with the user performing it.
type CommandEnvelope struct {
	UserID  string  `json:"userId"`
	Command Command `json:"command"`
}

// ApplicationCreatedData is the payload of an application-created command.
type ApplicationCreatedData struct {
	Company string `json:"company" validate:"required"`
	Title   string `json:"title" validate:"required"`
	URL     string `json:"url,omitempty" validate:"omitempty,url"`
	Notes   string `json:"notes,omitempty"`
	Status  string `json:"status,omitempty"`
	Order   int    `json:"order"`
}

// ApplicationUpdatedData is the payload of an application-updated command.
// Nil fields are left untouched.
type ApplicationUpdatedData struct {
	Company *string `json:"company,omitempty" validate:"omitempty,min=1"`
	Title   *string `json:"title,omitempty" validate:"omitempty,min=1"`
	URL     *string `json:"url,omitempty" validate:"omitempty,url"`
	Notes   *string `json:"notes,omitempty"`
	Order   *int    `json:"order,omitempty"`
}

// StatusChangedData is the payload of a status-changed command.
type StatusChangedData struct {
	Status string `json:"status" validate:"required"`
}

// SettingsUpdatedData is the payload of a settings-updated command.
type SettingsUpdatedData struct {
	ApplicationsPerStatus *int  `json:"applicationsPerStatus,omitempty" validate:"omitempty,min=1"`
	ShowClosed            *bool `json:"showClosedApplications,omitempty"`
}

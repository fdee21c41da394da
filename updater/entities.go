// Package updater applies accepted commands to the table storage read
// model consumed by the API service.
package updater

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt32   = "Edm.Int32"
	EdmBoolean = "Edm.Boolean"
	EdmInt64   = "Edm.Int64"
)

// ApplicationEntity represents a job application stored in the read model.
type ApplicationEntity struct {
	Entity
	ETag               string `json:"odata.etag,omitempty"`
	Company            string `json:"Company,omitempty"`
	Title              string `json:"Title,omitempty"`
	URL                string `json:"URL,omitempty"`
	Notes              string `json:"Notes,omitempty"`
	Status             string `json:"Status,omitempty"`
	Order              *int   `json:"Order,omitempty"`
	EventTimestamp     int64  `json:"EventTimestamp,string"`
	EventTimestampType string `json:"EventTimestamp@odata.type"`
}

// ApplicationUpdate carries partial updates for an application.
type ApplicationUpdate struct {
	Entity
	Company            *string `json:"Company,omitempty"`
	Title              *string `json:"Title,omitempty"`
	URL                *string `json:"URL,omitempty"`
	Notes              *string `json:"Notes,omitempty"`
	Status             *string `json:"Status,omitempty"`
	Order              *int    `json:"Order,omitempty"`
	EventTimestamp     *int64  `json:"EventTimestamp,omitempty,string"`
	EventTimestampType *string `json:"EventTimestamp@odata.type,omitempty"`
}

// SettingsEntity represents per-user board settings in the read model.
type SettingsEntity struct {
	Entity
	ETag                      string `json:"odata.etag,omitempty"`
	ApplicationsPerStatus     int    `json:"ApplicationsPerStatus"`
	ApplicationsPerStatusType string `json:"ApplicationsPerStatus@odata.type"`
	ShowClosed                bool   `json:"ShowClosed"`
	ShowClosedType            string `json:"ShowClosed@odata.type"`
	EventTimestamp            int64  `json:"EventTimestamp,string"`
	EventTimestampType        string `json:"EventTimestamp@odata.type"`
}

// SettingsUpdate carries partial updates for user settings.
type SettingsUpdate struct {
	Entity
	ApplicationsPerStatus     *int    `json:"ApplicationsPerStatus,omitempty"`
	ApplicationsPerStatusType *string `json:"ApplicationsPerStatus@odata.type,omitempty"`
	ShowClosed                *bool   `json:"ShowClosed,omitempty"`
	ShowClosedType            *string `json:"ShowClosed@odata.type,omitempty"`
	EventTimestamp            *int64  `json:"EventTimestamp,omitempty,string"`
	EventTimestampType        *string `json:"EventTimestamp@odata.type,omitempty"`
}

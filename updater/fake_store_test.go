package updater

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

func ptrString(s string) *string { return &s }
func ptrInt(i int) *int          { return &i }
func ptrBool(b bool) *bool       { return &b }

type fakeStore struct {
	apps     map[string]ApplicationEntity
	settings map[string]SettingsEntity

	conflictsLeft int
	updateCalls   int
}

func (f *fakeStore) GetApplication(ctx context.Context, pk, rk string) (*ApplicationEntity, error) {
	if f.apps == nil {
		return nil, nil
	}
	ent, ok := f.apps[rk]
	if !ok {
		return nil, nil
	}
	return &ent, nil
}

func (f *fakeStore) InsertApplication(ctx context.Context, ent ApplicationEntity) error {
	if f.apps == nil {
		f.apps = map[string]ApplicationEntity{}
	}
	if _, exists := f.apps[ent.RowKey]; exists {
		return &azcore.ResponseError{StatusCode: 409}
	}
	ent.ETag = "v1"
	f.apps[ent.RowKey] = ent
	return nil
}

func (f *fakeStore) UpdateApplication(ctx context.Context, upd ApplicationUpdate, etag string) error {
	f.updateCalls++
	if f.apps == nil {
		f.apps = map[string]ApplicationEntity{}
	}
	ent, ok := f.apps[upd.RowKey]
	if !ok {
		return &azcore.ResponseError{StatusCode: 404}
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		ent.EventTimestamp++
		ent.ETag = ent.ETag + "'"
		f.apps[upd.RowKey] = ent
		return ErrConcurrencyConflict
	}
	if etag != "" && etag != ent.ETag {
		return ErrConcurrencyConflict
	}
	if upd.Company != nil {
		ent.Company = *upd.Company
	}
	if upd.Title != nil {
		ent.Title = *upd.Title
	}
	if upd.URL != nil {
		ent.URL = *upd.URL
	}
	if upd.Notes != nil {
		ent.Notes = *upd.Notes
	}
	if upd.Status != nil {
		ent.Status = *upd.Status
	}
	if upd.Order != nil {
		ent.Order = upd.Order
	}
	if upd.EventTimestamp != nil {
		ent.EventTimestamp = *upd.EventTimestamp
		if upd.EventTimestampType != nil {
			ent.EventTimestampType = *upd.EventTimestampType
		}
	}
	ent.ETag = ent.ETag + "'"
	f.apps[upd.RowKey] = ent
	return nil
}

func (f *fakeStore) GetSettings(ctx context.Context, id string) (*SettingsEntity, error) {
	if f.settings == nil {
		return nil, nil
	}
	ent, ok := f.settings[id]
	if !ok {
		return nil, nil
	}
	return &ent, nil
}

func (f *fakeStore) InsertSettings(ctx context.Context, ent SettingsEntity) error {
	if f.settings == nil {
		f.settings = map[string]SettingsEntity{}
	}
	if _, exists := f.settings[ent.RowKey]; exists {
		return &azcore.ResponseError{StatusCode: 409}
	}
	ent.ETag = "v1"
	f.settings[ent.RowKey] = ent
	return nil
}

func (f *fakeStore) UpdateSettings(ctx context.Context, upd SettingsUpdate, etag string) error {
	if f.settings == nil {
		f.settings = map[string]SettingsEntity{}
	}
	ent, ok := f.settings[upd.RowKey]
	if !ok {
		return &azcore.ResponseError{StatusCode: 404}
	}
	if etag != "" && etag != ent.ETag {
		return ErrConcurrencyConflict
	}
	if upd.ApplicationsPerStatus != nil {
		ent.ApplicationsPerStatus = *upd.ApplicationsPerStatus
		if upd.ApplicationsPerStatusType != nil {
			ent.ApplicationsPerStatusType = *upd.ApplicationsPerStatusType
		}
	}
	if upd.ShowClosed != nil {
		ent.ShowClosed = *upd.ShowClosed
		if upd.ShowClosedType != nil {
			ent.ShowClosedType = *upd.ShowClosedType
		}
	}
	if upd.EventTimestamp != nil {
		ent.EventTimestamp = *upd.EventTimestamp
		if upd.EventTimestampType != nil {
			ent.EventTimestampType = *upd.EventTimestampType
		}
	}
	ent.ETag = ent.ETag + "'"
	f.settings[upd.RowKey] = ent
	return nil
}

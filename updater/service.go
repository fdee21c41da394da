package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

const defaultApplicationsPerStatus = 25

// ApplicationStorage defines methods required for updating application read models.
type ApplicationStorage interface {
	GetApplication(ctx context.Context, pk, rk string) (*ApplicationEntity, error)
	InsertApplication(ctx context.Context, ent ApplicationEntity) error
	UpdateApplication(ctx context.Context, ent ApplicationUpdate, etag string) error
}

// SettingsStorage defines methods required for updating settings read models.
type SettingsStorage interface {
	GetSettings(ctx context.Context, id string) (*SettingsEntity, error)
	InsertSettings(ctx context.Context, ent SettingsEntity) error
	UpdateSettings(ctx context.Context, ent SettingsUpdate, etag string) error
}

// ApplicationService processes application commands.
type ApplicationService struct{ st ApplicationStorage }

func NewApplicationService(st ApplicationStorage) ApplicationService {
	return ApplicationService{st: st}
}

// Apply updates the read model for application commands. Updates are ordered
// by command timestamp; a command older than the persisted entity is rejected.
func (s ApplicationService) Apply(ctx context.Context, env domain.CommandEnvelope) error {
	cmd := env.Command
	pk := env.UserID
	rk := cmd.EntityID
	if rk == "" {
		return fmt.Errorf("application command %s missing entity ID", cmd.ID)
	}
	switch cmd.Type {
	case domain.ApplicationCreated:
		var data domain.ApplicationCreatedData
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		ent, err := s.st.GetApplication(ctx, pk, rk)
		if err != nil {
			return err
		}
		if ent != nil {
			log.WithFields(log.Fields{"application": rk, "ts": cmd.Timestamp, "current": ent.EventTimestamp}).Error("duplicate application-created command")
			return fmt.Errorf("application %s already exists", rk)
		}
		status := data.Status
		if status == "" {
			status = string(domain.StatusWishlist)
		}
		if _, err := domain.ParseStatus(status); err != nil {
			return err
		}
		order := data.Order
		ent = &ApplicationEntity{
			Entity:             Entity{PartitionKey: pk, RowKey: rk},
			Company:            data.Company,
			Title:              data.Title,
			URL:                data.URL,
			Notes:              data.Notes,
			Status:             status,
			Order:              &order,
			EventTimestamp:     cmd.Timestamp,
			EventTimestampType: EdmInt64,
		}
		return s.st.InsertApplication(ctx, *ent)
	case domain.ApplicationUpdated:
		var data domain.ApplicationUpdatedData
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		upd := ApplicationUpdate{Entity: Entity{PartitionKey: pk, RowKey: rk}}
		upd.Company = data.Company
		upd.Title = data.Title
		upd.URL = data.URL
		upd.Notes = data.Notes
		upd.Order = data.Order
		if upd.Company == nil && upd.Title == nil && upd.URL == nil && upd.Notes == nil && upd.Order == nil {
			return fmt.Errorf("application %s update had no fields", rk)
		}
		return s.update(ctx, "application-updated", cmd.Timestamp, upd)
	case domain.StatusChanged:
		var data domain.StatusChangedData
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		if _, err := domain.ParseStatus(data.Status); err != nil {
			return err
		}
		upd := ApplicationUpdate{
			Entity: Entity{PartitionKey: pk, RowKey: rk},
			Status: &data.Status,
		}
		return s.update(ctx, "status-changed", cmd.Timestamp, upd)
	}
	return fmt.Errorf("unknown application command type %s", cmd.Type)
}

// update merges the given fields into an existing entity, retrying when a
// concurrent writer invalidates the etag read before the merge.
func (s ApplicationService) update(ctx context.Context, kind string, ts int64, upd ApplicationUpdate) error {
	pk, rk := upd.PartitionKey, upd.RowKey
	ent, err := s.st.GetApplication(ctx, pk, rk)
	if err != nil {
		return err
	}
	if ent == nil {
		log.WithField("application", rk).Errorf("%s command for missing application", kind)
		return fmt.Errorf("application %s not found", rk)
	}
	upd.EventTimestamp = &ts
	t := EdmInt64
	upd.EventTimestampType = &t
	for {
		if ts <= ent.EventTimestamp {
			log.WithFields(log.Fields{"application": rk, "ts": ts, "current": ent.EventTimestamp}).Errorf("stale %s command", kind)
			return fmt.Errorf("application %s received stale update", rk)
		}
		if err := s.st.UpdateApplication(ctx, upd, ent.ETag); err != nil {
			if !errors.Is(err, ErrConcurrencyConflict) {
				return err
			}
			ent, err = s.st.GetApplication(ctx, pk, rk)
			if err != nil {
				return err
			}
			if ent == nil {
				log.WithField("application", rk).Errorf("%s retry lost entity", kind)
				return fmt.Errorf("application %s not found", rk)
			}
			continue
		}
		return nil
	}
}

// SettingsService processes settings commands.
type SettingsService struct{ st SettingsStorage }

func NewSettingsService(st SettingsStorage) SettingsService {
	return SettingsService{st: st}
}

type settingsFields struct {
	ApplicationsPerStatus *int
	ShowClosed            *bool
}

// Apply updates the read model for settings commands. The settings row is
// created on first write; out of order commands only backfill fields the
// entity never carried.
func (s SettingsService) Apply(ctx context.Context, env domain.CommandEnvelope) error {
	cmd := env.Command
	if cmd.Type != domain.SettingsUpdated {
		return fmt.Errorf("unknown settings command type %s", cmd.Type)
	}
	var data domain.SettingsUpdatedData
	if err := sonic.Unmarshal(cmd.Data, &data); err != nil {
		return err
	}
	id := env.UserID
	f := settingsFields{ApplicationsPerStatus: data.ApplicationsPerStatus, ShowClosed: data.ShowClosed}
	ent, created, err := s.ensure(ctx, id, cmd.Timestamp, f)
	if err != nil {
		return err
	}
	if created {
		return nil
	}
	for {
		upd, changed := mergeSettings(ent, cmd.Timestamp, f)
		if !changed {
			return nil
		}
		if err := s.st.UpdateSettings(ctx, upd, ent.ETag); err != nil {
			if !errors.Is(err, ErrConcurrencyConflict) {
				return err
			}
			ent, err = s.st.GetSettings(ctx, id)
			if err != nil {
				return err
			}
			if ent == nil {
				return fmt.Errorf("settings for %s not found", id)
			}
			continue
		}
		return nil
	}
}

func (s SettingsService) ensure(ctx context.Context, id string, ts int64, f settingsFields) (*SettingsEntity, bool, error) {
	ent, err := s.st.GetSettings(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if ent != nil {
		return ent, false, nil
	}
	ent = &SettingsEntity{
		Entity:                    Entity{PartitionKey: id, RowKey: id},
		ApplicationsPerStatus:     defaultApplicationsPerStatus,
		ApplicationsPerStatusType: EdmInt32,
		ShowClosedType:            EdmBoolean,
		EventTimestamp:            ts,
		EventTimestampType:        EdmInt64,
	}
	if f.ApplicationsPerStatus != nil {
		ent.ApplicationsPerStatus = *f.ApplicationsPerStatus
	}
	if f.ShowClosed != nil {
		ent.ShowClosed = *f.ShowClosed
	}
	if err := s.st.InsertSettings(ctx, *ent); err != nil {
		if isStatus(err, 409) {
			ent, err = s.st.GetSettings(ctx, id)
			if err != nil {
				return nil, false, err
			}
			return ent, false, nil
		}
		return nil, false, err
	}
	return ent, true, nil
}

func mergeSettings(ent *SettingsEntity, ts int64, f settingsFields) (SettingsUpdate, bool) {
	if ts == ent.EventTimestamp {
		// duplicate command, no changes required
		return SettingsUpdate{}, false
	}
	upd := SettingsUpdate{Entity: ent.Entity}
	changed := false
	if ts > ent.EventTimestamp {
		if f.ApplicationsPerStatus != nil {
			upd.ApplicationsPerStatus = f.ApplicationsPerStatus
			t := EdmInt32
			upd.ApplicationsPerStatusType = &t
			changed = true
		}
		if f.ShowClosed != nil {
			upd.ShowClosed = f.ShowClosed
			t := EdmBoolean
			upd.ShowClosedType = &t
			changed = true
		}
		if !changed {
			return SettingsUpdate{}, false
		}
		upd.EventTimestamp = &ts
		t := EdmInt64
		upd.EventTimestampType = &t
		return upd, true
	}
	// older command, only backfill fields the row never carried
	if f.ApplicationsPerStatus != nil && ent.ApplicationsPerStatus == 0 {
		upd.ApplicationsPerStatus = f.ApplicationsPerStatus
		t := EdmInt32
		upd.ApplicationsPerStatusType = &t
		changed = true
	}
	if f.ShowClosed != nil && ent.ShowClosedType == "" {
		upd.ShowClosed = f.ShowClosed
		t := EdmBoolean
		upd.ShowClosedType = &t
		changed = true
	}
	return upd, changed
}

// Orchestrator routes commands to the appropriate service based on entity type.
type Orchestrator struct {
	apps     ApplicationService
	settings SettingsService
}

func NewOrchestrator(apps ApplicationService, settings SettingsService) Orchestrator {
	return Orchestrator{apps: apps, settings: settings}
}

// Apply delegates command handling to the corresponding service.
func (o Orchestrator) Apply(ctx context.Context, env domain.CommandEnvelope) error {
	switch env.Command.EntityType {
	case domain.EntityApplication:
		return o.apps.Apply(ctx, env)
	case domain.EntitySettings:
		return o.settings.Apply(ctx, env)
	default:
		return fmt.Errorf("unknown entity type %s", env.Command.EntityType)
	}
}

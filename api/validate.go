package api

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCommand checks that a command names a known type and carries a
// payload matching that type's schema.
func validateCommand(cmd domain.Command) error {
	switch cmd.EntityType {
	case domain.EntityApplication:
		switch cmd.Type {
		case domain.ApplicationCreated:
			var data domain.ApplicationCreatedData
			if err := decodePayload(cmd.Data, &data); err != nil {
				return err
			}
			if data.Status != "" {
				if _, err := domain.ParseStatus(data.Status); err != nil {
					return err
				}
			}
			return nil
		case domain.ApplicationUpdated:
			if cmd.EntityID == "" {
				return fmt.Errorf("missing entity ID")
			}
			var data domain.ApplicationUpdatedData
			return decodePayload(cmd.Data, &data)
		case domain.StatusChanged:
			if cmd.EntityID == "" {
				return fmt.Errorf("missing entity ID")
			}
			var data domain.StatusChangedData
			if err := decodePayload(cmd.Data, &data); err != nil {
				return err
			}
			_, err := domain.ParseStatus(data.Status)
			return err
		}
	case domain.EntitySettings:
		if cmd.Type == domain.SettingsUpdated {
			var data domain.SettingsUpdatedData
			return decodePayload(cmd.Data, &data)
		}
	default:
		return fmt.Errorf("unknown entity type %q", cmd.EntityType)
	}
	return fmt.Errorf("unknown command type %q for entity %q", cmd.Type, cmd.EntityType)
}

func decodePayload(raw sonic.NoCopyRawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing command data")
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid command data: %w", err)
	}
	return validate.Struct(out)
}

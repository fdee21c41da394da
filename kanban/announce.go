package kanban

import (
	"fmt"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

// moveAnnouncement describes a completed transition for assistive
// technology. Only the most recent announcement is retained by the board.
func moveAnnouncement(app domain.Application, from, to domain.Status) string {
	return fmt.Sprintf("%s moved from %s to %s", displayName(app), from.Label(), to.Label())
}

func failureAnnouncement(app domain.Application) string {
	return fmt.Sprintf("Failed to move %s. The board was restored.", displayName(app))
}

func displayName(app domain.Application) string {
	switch {
	case app.Company != "" && app.Title != "":
		return app.Title + " at " + app.Company
	case app.Company != "":
		return app.Company
	case app.Title != "":
		return app.Title
	default:
		return app.ID
	}
}

package kanban

import "github.com/kaitranntt/jobhunt-sub002/domain"

// ResolveDropTarget interprets the opaque identifier reported for a drop and
// returns the status the dragged application should land on. Resolution
// order, first match wins:
//
//  1. another application's id: land on that application's current status
//  2. a status value: land on it directly
//  3. a group name: land on the group's first status, so dropping on a
//     collapsed column always means the earliest stage of that group
//
// Anything else returns ok=false and the drop is ignored.
func ResolveDropTarget(apps []domain.Application, target string) (domain.Status, bool) {
	for _, app := range apps {
		if app.ID == target {
			return app.Status, true
		}
	}
	if s, err := domain.ParseStatus(target); err == nil {
		return s, true
	}
	if g, err := domain.ParseGroup(target); err == nil {
		return g.DefaultStatus(), true
	}
	return "", false
}

// Package kanban implements the board's status-transition engine: pure
// grouping projections, drop-target resolution and the optimistic transition
// controller used by board clients.
package kanban

import "github.com/kaitranntt/jobhunt-sub002/domain"

// ByGroup partitions applications into board columns, preserving relative
// input order within each column.
func ByGroup(apps []domain.Application) map[domain.Group][]domain.Application {
	out := make(map[domain.Group][]domain.Application, len(domain.Groups))
	for _, app := range apps {
		g := domain.GroupOf(app.Status)
		out[g] = append(out[g], app)
	}
	return out
}

// ByStatus indexes applications by their exact status, preserving relative
// input order within each sub-column.
func ByStatus(apps []domain.Application) map[domain.Status][]domain.Application {
	out := make(map[domain.Status][]domain.Application)
	for _, app := range apps {
		out[app.Status] = append(out[app.Status], app)
	}
	return out
}

package kanban

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

// UpdateStatusFunc issues the remote status change for one application. It
// must return a non-nil error on failure for rollback to trigger.
type UpdateStatusFunc func(ctx context.Context, id string, status domain.Status) error

// Board is the optimistic transition controller behind a kanban view. It
// owns a working copy of the application collection seeded from an external
// snapshot: drops mutate the working copy immediately, then the remote
// update is awaited, and on failure the working copy is reset to the
// baseline current at that moment. The baseline is only ever replaced
// through Resync, so an external refresh arriving while a commit is in
// flight wins over stale optimistic state.
//
// Methods are safe for concurrent use; the lock is never held across the
// remote call, so independent drops on different applications may be in
// flight at the same time.
type Board struct {
	updateStatus UpdateStatusFunc
	logger       *log.Logger
	onChange     func()

	mu           sync.Mutex
	baseline     []domain.Application
	records      []domain.Application
	activeID     string
	announcement string
	expanded     map[domain.Group]bool
}

// BoardOption customizes a Board.
type BoardOption func(*Board)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *log.Logger) BoardOption {
	return func(b *Board) { b.logger = logger }
}

// WithOnChange registers a hook invoked after every visible state change:
// optimistic apply, rollback and resync. Render loops hang off it.
func WithOnChange(fn func()) BoardOption {
	return func(b *Board) { b.onChange = fn }
}

// NewBoard creates a controller committing transitions through updateStatus.
func NewBoard(updateStatus UpdateStatusFunc, opts ...BoardOption) *Board {
	if updateStatus == nil {
		panic("kanban.NewBoard: updateStatus is required")
	}
	b := &Board{
		updateStatus: updateStatus,
		logger:       log.StandardLogger(),
		expanded:     make(map[domain.Group]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resync replaces both the baseline and the working copy with the supplied
// external snapshot. Optimistic local state never survives a resync.
func (b *Board) Resync(apps []domain.Application) {
	b.mu.Lock()
	b.baseline = cloneApplications(apps)
	b.records = cloneApplications(apps)
	b.mu.Unlock()
	b.notifyChange()
}

// Records returns a copy of the working collection.
func (b *Board) Records() []domain.Application {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneApplications(b.records)
}

// Announcement returns the latest transition description; later transitions
// always supersede earlier ones.
func (b *Board) Announcement() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.announcement
}

// ActiveID returns the id of the application currently being dragged, or "".
func (b *Board) ActiveID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeID
}

// DragStart records the application being dragged.
func (b *Board) DragStart(id string) {
	b.mu.Lock()
	b.activeID = id
	b.mu.Unlock()
	b.notifyChange()
}

// CancelDrag abandons the current drag gesture without any state change.
func (b *Board) CancelDrag() {
	b.mu.Lock()
	b.activeID = ""
	b.mu.Unlock()
	b.notifyChange()
}

// DragEnd completes the current drag gesture on the given drop target. The
// transition is applied optimistically before the remote update is awaited;
// a failed update resets the working copy to the current baseline. Failures
// are absorbed here: they surface only through the announcement and the
// diagnostic log, never to the caller.
func (b *Board) DragEnd(ctx context.Context, target string) {
	b.mu.Lock()
	id := b.activeID
	b.activeID = ""
	if id == "" {
		b.mu.Unlock()
		return
	}

	idx := -1
	for i := range b.records {
		if b.records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Benign race between teardown and event delivery.
		b.mu.Unlock()
		return
	}

	next, ok := ResolveDropTarget(b.records, target)
	if !ok {
		b.mu.Unlock()
		b.logger.Debugf("ignoring unrecognized drop target %q", target)
		return
	}

	app := b.records[idx]
	if next == app.Status {
		// Re-dropping on the own column never issues a network call.
		b.mu.Unlock()
		return
	}

	updated := cloneApplications(b.records)
	updated[idx].Status = next
	b.records = updated
	b.announcement = moveAnnouncement(app, app.Status, next)
	b.mu.Unlock()
	b.notifyChange()

	if err := b.updateStatus(ctx, id, next); err != nil {
		b.mu.Lock()
		b.records = cloneApplications(b.baseline)
		b.announcement = failureAnnouncement(app)
		b.mu.Unlock()
		b.notifyChange()
		b.logger.Errorf("status update failed for %s: %v", id, err)
	}
}

// ToggleGroup flips the expanded state of an expandable group. Toggling a
// non-expandable group is a no-op.
func (b *Board) ToggleGroup(g domain.Group) {
	if !g.Expandable() {
		return
	}
	b.mu.Lock()
	b.expanded[g] = !b.expanded[g]
	b.mu.Unlock()
	b.notifyChange()
}

// Expanded reports whether the group currently shows its sub-columns.
func (b *Board) Expanded(g domain.Group) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expanded[g]
}

func (b *Board) notifyChange() {
	if b.onChange != nil {
		b.onChange()
	}
}

func cloneApplications(apps []domain.Application) []domain.Application {
	out := make([]domain.Application, len(apps))
	copy(out, apps)
	return out
}

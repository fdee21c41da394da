package kanban

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

type updateRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (u *updateRecorder) update(ctx context.Context, id string, status domain.Status) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, id+":"+string(status))
	return u.err
}

func (u *updateRecorder) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func twoRecordBoard(u *updateRecorder) (*Board, []domain.Application) {
	apps := []domain.Application{
		{ID: "a", Company: "Acme", Title: "Engineer", Status: domain.StatusApplied},
		{ID: "b", Company: "Globex", Title: "Analyst", Status: domain.StatusPhoneScreen},
	}
	b := NewBoard(u.update)
	b.Resync(apps)
	return b, apps
}

func statusOf(t *testing.T, b *Board, id string) domain.Status {
	t.Helper()
	for _, app := range b.Records() {
		if app.ID == id {
			return app.Status
		}
	}
	t.Fatalf("application %s not found", id)
	return ""
}

func TestDragEndOnOtherRecordAdoptsItsStatus(t *testing.T) {
	u := &updateRecorder{}
	b, _ := twoRecordBoard(u)

	b.DragStart("a")
	b.DragEnd(context.Background(), "b")

	if got := statusOf(t, b, "a"); got != domain.StatusPhoneScreen {
		t.Fatalf("expected a to land on phone_screen, got %s", got)
	}
	if u.callCount() != 1 {
		t.Fatalf("expected one remote call, got %d", u.callCount())
	}
	if u.calls[0] != "a:phone_screen" {
		t.Fatalf("unexpected remote call: %s", u.calls[0])
	}
	want := "Engineer at Acme moved from Applied to Phone Screen"
	if b.Announcement() != want {
		t.Fatalf("unexpected announcement: %q", b.Announcement())
	}
}

func TestDragEndOnOwnStatusIsNoOp(t *testing.T) {
	u := &updateRecorder{}
	b, apps := twoRecordBoard(u)

	for _, target := range []string{"a", "applied"} {
		b.DragStart("a")
		b.DragEnd(context.Background(), target)
	}

	if u.callCount() != 0 {
		t.Fatalf("expected no remote calls, got %d", u.callCount())
	}
	if !reflect.DeepEqual(b.Records(), apps) {
		t.Fatalf("expected records unchanged, got %#v", b.Records())
	}
	if b.Announcement() != "" {
		t.Fatalf("expected no announcement, got %q", b.Announcement())
	}
}

func TestDragEndOnOwnGroupDefaultIsNoOp(t *testing.T) {
	u := &updateRecorder{}
	apps := []domain.Application{
		{ID: "a", Company: "Acme", Title: "Engineer", Status: domain.StatusWishlist},
	}
	b := NewBoard(u.update)
	b.Resync(apps)

	// The bare group name lands on the group's first status, which is the
	// record's own status here.
	b.DragStart("a")
	b.DragEnd(context.Background(), "active_pipeline")

	if u.callCount() != 0 {
		t.Fatalf("expected no remote calls, got %d", u.callCount())
	}
	if !reflect.DeepEqual(b.Records(), apps) {
		t.Fatalf("expected records unchanged, got %#v", b.Records())
	}
	if b.Announcement() != "" {
		t.Fatalf("expected no announcement, got %q", b.Announcement())
	}
}

func TestDragEndStaleIDIsSilentNoOp(t *testing.T) {
	u := &updateRecorder{}
	b, apps := twoRecordBoard(u)

	b.DragStart("gone")
	b.DragEnd(context.Background(), "b")

	if u.callCount() != 0 {
		t.Fatalf("expected no remote calls, got %d", u.callCount())
	}
	if !reflect.DeepEqual(b.Records(), apps) {
		t.Fatalf("expected records unchanged, got %#v", b.Records())
	}
}

func TestDragEndUnrecognizedTargetIsNoOp(t *testing.T) {
	u := &updateRecorder{}
	b, apps := twoRecordBoard(u)

	b.DragStart("a")
	b.DragEnd(context.Background(), "nonsense")

	if u.callCount() != 0 {
		t.Fatalf("expected no remote calls, got %d", u.callCount())
	}
	if !reflect.DeepEqual(b.Records(), apps) {
		t.Fatalf("expected records unchanged, got %#v", b.Records())
	}
}

func TestDragEndWithoutDragStartIsNoOp(t *testing.T) {
	u := &updateRecorder{}
	b, apps := twoRecordBoard(u)

	b.DragEnd(context.Background(), "b")

	if u.callCount() != 0 {
		t.Fatalf("expected no remote calls, got %d", u.callCount())
	}
	if !reflect.DeepEqual(b.Records(), apps) {
		t.Fatalf("expected records unchanged, got %#v", b.Records())
	}
}

func TestFailedCommitRollsBackToBaseline(t *testing.T) {
	u := &updateRecorder{err: errors.New("update rejected")}
	b, apps := twoRecordBoard(u)

	b.DragStart("a")
	b.DragEnd(context.Background(), "b")

	if !reflect.DeepEqual(b.Records(), apps) {
		t.Fatalf("expected full rollback to baseline, got %#v", b.Records())
	}
	want := "Failed to move Engineer at Acme. The board was restored."
	if b.Announcement() != want {
		t.Fatalf("unexpected failure announcement: %q", b.Announcement())
	}
}

func TestOptimisticApplyVisibleBeforeRemoteCall(t *testing.T) {
	var observed domain.Status
	var b *Board
	update := func(ctx context.Context, id string, status domain.Status) error {
		for _, app := range b.Records() {
			if app.ID == id {
				observed = app.Status
			}
		}
		return nil
	}
	b = NewBoard(update)
	b.Resync([]domain.Application{
		{ID: "a", Status: domain.StatusApplied},
		{ID: "b", Status: domain.StatusPhoneScreen},
	})

	b.DragStart("a")
	b.DragEnd(context.Background(), "b")

	if observed != domain.StatusPhoneScreen {
		t.Fatalf("expected optimistic status visible during remote call, saw %s", observed)
	}
}

func TestAnnouncementLastWriteWins(t *testing.T) {
	u := &updateRecorder{}
	b := NewBoard(u.update)
	apps := []domain.Application{{ID: "a", Company: "Acme", Status: domain.StatusWishlist}}
	b.Resync(apps)

	sequence := []string{"applied", "phone_screen", "offer_received", "accepted"}
	for _, target := range sequence {
		b.DragStart("a")
		b.DragEnd(context.Background(), target)
	}

	if u.callCount() != len(sequence) {
		t.Fatalf("expected %d remote calls, got %d", len(sequence), u.callCount())
	}
	want := "Acme moved from Offer Received to Accepted"
	if b.Announcement() != want {
		t.Fatalf("expected last transition retained, got %q", b.Announcement())
	}
}

func TestResyncDuringInFlightCommitWinsOverRollback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan error)
	update := func(ctx context.Context, id string, status domain.Status) error {
		close(entered)
		return <-release
	}
	b := NewBoard(update)
	b.Resync([]domain.Application{
		{ID: "a", Status: domain.StatusApplied},
		{ID: "b", Status: domain.StatusPhoneScreen},
	})

	done := make(chan struct{})
	go func() {
		b.DragStart("a")
		b.DragEnd(context.Background(), "b")
		close(done)
	}()

	<-entered
	refreshed := []domain.Application{
		{ID: "a", Status: domain.StatusInterviewing},
		{ID: "b", Status: domain.StatusPhoneScreen},
		{ID: "c", Status: domain.StatusWishlist},
	}
	b.Resync(refreshed)
	release <- errors.New("update rejected")
	<-done

	if !reflect.DeepEqual(b.Records(), refreshed) {
		t.Fatalf("expected rollback to restore the refreshed snapshot, got %#v", b.Records())
	}
}

func TestResyncReplacesOptimisticState(t *testing.T) {
	u := &updateRecorder{}
	b, _ := twoRecordBoard(u)

	b.DragStart("a")
	b.DragEnd(context.Background(), "b")

	refreshed := []domain.Application{{ID: "a", Status: domain.StatusRejected}}
	b.Resync(refreshed)
	if !reflect.DeepEqual(b.Records(), refreshed) {
		t.Fatalf("expected resync to replace working copy, got %#v", b.Records())
	}
}

func TestConcurrentCommitsOnDifferentRecords(t *testing.T) {
	// Gestures are serialized as on a UI thread; only the remote calls
	// overlap. The second gesture starts while the first commit is still in
	// flight and neither blocks the other.
	entered := map[string]chan struct{}{
		"a": make(chan struct{}),
		"b": make(chan struct{}),
	}
	release := map[string]chan error{
		"a": make(chan error),
		"b": make(chan error),
	}
	update := func(ctx context.Context, id string, status domain.Status) error {
		close(entered[id])
		return <-release[id]
	}
	b := NewBoard(update)
	b.Resync([]domain.Application{
		{ID: "a", Status: domain.StatusApplied},
		{ID: "b", Status: domain.StatusApplied},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	b.DragStart("a")
	go func() {
		defer wg.Done()
		b.DragEnd(context.Background(), "interviewing")
	}()
	<-entered["a"]

	wg.Add(1)
	b.DragStart("b")
	go func() {
		defer wg.Done()
		b.DragEnd(context.Background(), "interviewing")
	}()
	<-entered["b"]

	release["a"] <- nil
	release["b"] <- nil
	wg.Wait()

	for _, app := range b.Records() {
		if app.Status != domain.StatusInterviewing {
			t.Fatalf("expected both applications on interviewing, got %#v", b.Records())
		}
	}
}

func TestToggleGroup(t *testing.T) {
	u := &updateRecorder{}
	b, _ := twoRecordBoard(u)

	if b.Expanded(domain.GroupInProgress) {
		t.Fatal("groups start collapsed")
	}
	b.ToggleGroup(domain.GroupInProgress)
	if !b.Expanded(domain.GroupInProgress) {
		t.Fatal("expected group to expand")
	}
	b.ToggleGroup(domain.GroupInProgress)
	if b.Expanded(domain.GroupInProgress) {
		t.Fatal("expected group to collapse")
	}

	b.ToggleGroup(domain.GroupOffers)
	if b.Expanded(domain.GroupOffers) {
		t.Fatal("non-expandable group must stay collapsed")
	}
}

func TestOnChangeFiresOnApplyAndRollback(t *testing.T) {
	var changes int
	u := &updateRecorder{err: errors.New("update rejected")}
	b := NewBoard(u.update, WithOnChange(func() { changes++ }))
	b.Resync([]domain.Application{
		{ID: "a", Status: domain.StatusApplied},
		{ID: "b", Status: domain.StatusPhoneScreen},
	})

	before := changes
	b.DragStart("a")
	b.DragEnd(context.Background(), "b")
	// drag start + optimistic apply + rollback
	if changes-before != 3 {
		t.Fatalf("expected 3 change notifications, got %d", changes-before)
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	u := &updateRecorder{}
	b, _ := twoRecordBoard(u)

	snapshot := b.Records()
	snapshot[0].Status = domain.StatusWithdrawn
	if statusOf(t, b, snapshot[0].ID) == domain.StatusWithdrawn {
		t.Fatal("mutating the returned slice must not affect the board")
	}
}

func TestManySequentialTransitionsKeepPartition(t *testing.T) {
	u := &updateRecorder{}
	b := NewBoard(u.update)
	var apps []domain.Application
	for i := 0; i < 10; i++ {
		apps = append(apps, domain.Application{ID: fmt.Sprintf("app-%d", i), Status: domain.StatusWishlist})
	}
	b.Resync(apps)

	for i := 0; i < 10; i++ {
		b.DragStart(fmt.Sprintf("app-%d", i))
		b.DragEnd(context.Background(), "closed")
	}

	byGroup := ByGroup(b.Records())
	if len(byGroup[domain.GroupClosed]) != 10 {
		t.Fatalf("expected all applications in closed, got %d", len(byGroup[domain.GroupClosed]))
	}
	for _, app := range byGroup[domain.GroupClosed] {
		if app.Status != domain.StatusAccepted {
			t.Fatalf("expected group drop to land on accepted, got %s", app.Status)
		}
	}
}

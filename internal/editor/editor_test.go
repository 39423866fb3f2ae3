package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/transport"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

// fakeTransport records submissions and plays back configured results.
type fakeTransport struct {
	mu        sync.Mutex
	saveRes   *transport.SaveResult
	saveErr   error
	removeRes *transport.SaveResult

	saves   chan transport.SaveRequest
	removes chan int
	events  chan transport.Event
	noPush  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		saves:   make(chan transport.SaveRequest, 8),
		removes: make(chan int, 8),
		events:  make(chan transport.Event, 8),
	}
}

func (f *fakeTransport) Save(ctx context.Context, req transport.SaveRequest) (*transport.SaveResult, error) {
	f.saves <- req
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveRes, f.saveErr
}

func (f *fakeTransport) Remove(ctx context.Context, playerID, expectedVersion int) (*transport.SaveResult, error) {
	f.removes <- playerID
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeRes, nil
}

func (f *fakeTransport) Events() <-chan transport.Event {
	if f.noPush {
		return nil
	}
	return f.events
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) setSaveResult(res *transport.SaveResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveRes, f.saveErr = res, err
}

// recordingNotifier counts toasts.
type recordingNotifier struct {
	mu        sync.Mutex
	conflicts int
	errors    int
	denied    int
}

func (n *recordingNotifier) Conflict(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conflicts++
}

func (n *recordingNotifier) TransportError(error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors++
}

func (n *recordingNotifier) PermissionDenied() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.denied++
}

func (n *recordingNotifier) counts() (conflicts, errs, denied int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conflicts, n.errors, n.denied
}

// helpers: receive with a timeout so tests never hang

func recvSave(t *testing.T, ch <-chan transport.SaveRequest, within time.Duration) transport.SaveRequest {
	t.Helper()
	select {
	case req := <-ch:
		return req
	case <-time.After(within):
		t.Fatalf("timed out waiting for save")
		return transport.SaveRequest{} // unreachable
	}
}

func recvNoSave(t *testing.T, ch <-chan transport.SaveRequest, within time.Duration) {
	t.Helper()
	select {
	case req := <-ch:
		t.Fatalf("expected no save within %v, got %+v", within, req)
	case <-time.After(within):
	}
}

func getView(t *testing.T, e *Editor) View {
	t.Helper()
	reply := make(chan View, 1)
	e.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func waitView(t *testing.T, e *Editor, cond func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		v := getView(t, e)
		if cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition never met; last view: %+v", v)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newTestEditor(t *testing.T, tr transport.Transport, welcome *transport.Welcome, n Notifier) *Editor {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if welcome == nil {
		welcome = &transport.Welcome{Version: 3, IsCoach: true}
	}
	if n == nil {
		n = NopNotifier{}
	}
	return New(ctx, Config{
		Transport: tr,
		Welcome:   welcome,
		Notifier:  n,
		Debounce:  100 * time.Millisecond,
	})
}

func TestEditor_DebounceCoalescesRapidPlacements(t *testing.T) {
	tr := newFakeTransport()
	tr.setSaveResult(&transport.SaveResult{Version: 4}, nil)
	e := newTestEditor(t, tr, nil, nil)

	// two placements of the same player inside the quiet period
	e.Inbox() <- Place{PlayerID: 7, Slot: "st", Order: 0}
	e.Inbox() <- Place{PlayerID: 7, Slot: "cam", Order: 1}

	req := recvSave(t, tr.saves, time.Second)
	if req.ExpectedVersion != 3 {
		t.Fatalf("want expected version 3, got %d", req.ExpectedVersion)
	}
	if len(req.Positions) != 1 || req.Positions[0].Slot != "cam" {
		t.Fatalf("save should reflect final state, got %+v", req.Positions)
	}
	if len(req.Changed) != 1 || req.Changed[0].Slot != "cam" {
		t.Fatalf("changed set should hold the last placement, got %+v", req.Changed)
	}

	// exactly one submission; nothing further without new edits
	recvNoSave(t, tr.saves, 300*time.Millisecond)

	v := waitView(t, e, func(v View) bool { return v.Version == 4 })
	if v.Phase != PhaseIdle {
		t.Fatalf("want idle after confirmed save, got %s", v.Phase)
	}
}

func TestEditor_NonCoachMutationsRejectedBeforeTransport(t *testing.T) {
	tr := newFakeTransport()
	n := &recordingNotifier{}
	e := newTestEditor(t, tr, &transport.Welcome{Version: 3, IsCoach: false}, n)

	e.Inbox() <- Place{PlayerID: 7, Slot: "st", Order: 0}
	e.Inbox() <- Remove{PlayerID: 7}
	e.Inbox() <- SetNotes{Notes: "press high"}

	recvNoSave(t, tr.saves, 300*time.Millisecond)
	select {
	case id := <-tr.removes:
		t.Fatalf("unexpected remove call for player %d", id)
	default:
	}

	v := getView(t, e)
	if len(v.Assignments) != 0 {
		t.Fatalf("non-coach edit must not change state, got %+v", v.Assignments)
	}
	if _, _, denied := n.counts(); denied != 3 {
		t.Fatalf("want 3 permission toasts, got %d", denied)
	}
}

func TestEditor_StaleRemoteEventIgnored(t *testing.T) {
	tr := newFakeTransport()
	e := newTestEditor(t, tr, &transport.Welcome{
		Positions: []lineup.PositionEntry{{PlayerID: 7, Slot: "st", Order: 0}},
		Version:   3,
		IsCoach:   true,
	}, nil)

	// duplicate delivery at the known version must change nothing
	tr.events <- transport.PositionUpdated{PlayerID: 7, Slot: "cam", Order: 1, Version: 3}
	time.Sleep(50 * time.Millisecond)

	v := getView(t, e)
	if v.Version != 3 {
		t.Fatalf("version must stay 3, got %d", v.Version)
	}
	if v.Assignments[0].Slot != "st" {
		t.Fatalf("stale event must not move the player, got %+v", v.Assignments)
	}

	// a newer version applies
	tr.events <- transport.PositionUpdated{PlayerID: 7, Slot: "cam", Order: 1, Version: 4}
	v = waitView(t, e, func(v View) bool { return v.Version == 4 })
	if v.Assignments[0].Slot != "cam" {
		t.Fatalf("newer event must apply, got %+v", v.Assignments)
	}

	// applying the same event again is a no-op
	tr.events <- transport.PositionUpdated{PlayerID: 7, Slot: "lw", Order: 2, Version: 4}
	time.Sleep(50 * time.Millisecond)
	v = getView(t, e)
	if v.Assignments[0].Slot != "cam" {
		t.Fatalf("redelivery must be idempotent, got %+v", v.Assignments)
	}
}

func TestEditor_VersionNeverRegresses(t *testing.T) {
	tr := newFakeTransport()
	// a confused server answering with an older version
	tr.setSaveResult(&transport.SaveResult{Version: 2}, nil)
	e := newTestEditor(t, tr, nil, nil)

	e.Inbox() <- Place{PlayerID: 7, Slot: "st", Order: 0}
	_ = recvSave(t, tr.saves, time.Second)

	v := waitView(t, e, func(v View) bool { return v.Phase == PhaseIdle })
	if v.Version != 3 {
		t.Fatalf("version must not regress below 3, got %d", v.Version)
	}

	tr.events <- transport.PlayerRemoved{PlayerID: 7, Version: 1}
	time.Sleep(50 * time.Millisecond)
	if v := getView(t, e); v.Version != 3 || len(v.Assignments) != 1 {
		t.Fatalf("stale removal applied: %+v", v)
	}
}

func TestEditor_ConflictKeepsOptimisticState(t *testing.T) {
	tr := newFakeTransport()
	tr.setSaveResult(&transport.SaveResult{Conflict: true, Version: 9, Message: "lineup was modified"}, nil)
	n := &recordingNotifier{}
	e := newTestEditor(t, tr, nil, n)

	e.Inbox() <- Place{PlayerID: 7, Slot: "st", Order: 0}
	_ = recvSave(t, tr.saves, time.Second)

	v := waitView(t, e, func(v View) bool { return v.Phase == PhaseConflicted })
	if v.Version != 3 {
		t.Fatalf("conflict must not advance the version, got %d", v.Version)
	}
	if len(v.Assignments) != 1 || v.Assignments[0].Slot != "st" {
		t.Fatalf("optimistic state must survive a conflict, got %+v", v.Assignments)
	}
	if conflicts, _, _ := n.counts(); conflicts != 1 {
		t.Fatalf("want 1 conflict toast, got %d", conflicts)
	}
}

func TestEditor_TransportFailureSurfacedWithoutRetry(t *testing.T) {
	tr := newFakeTransport()
	tr.setSaveResult(nil, context.DeadlineExceeded)
	n := &recordingNotifier{}
	e := newTestEditor(t, tr, nil, n)

	e.Inbox() <- Place{PlayerID: 7, Slot: "st", Order: 0}
	_ = recvSave(t, tr.saves, time.Second)

	v := waitView(t, e, func(v View) bool { return v.Phase == PhaseIdle })
	// optimistic state stays applied even though the server never saw it
	if len(v.Assignments) != 1 {
		t.Fatalf("optimistic state dropped on failure: %+v", v.Assignments)
	}
	if _, errs, _ := n.counts(); errs != 1 {
		t.Fatalf("want 1 error toast, got %d", errs)
	}
	recvNoSave(t, tr.saves, 300*time.Millisecond)
}

func TestEditor_RemoveBypassesDebounce(t *testing.T) {
	tr := newFakeTransport()
	tr.removeRes = &transport.SaveResult{Version: 4}
	e := newTestEditor(t, tr, &transport.Welcome{
		Positions: []lineup.PositionEntry{{PlayerID: 7, Slot: "st", Order: 0}},
		Version:   3,
		IsCoach:   true,
	}, nil)

	e.Inbox() <- Remove{PlayerID: 7}

	select {
	case id := <-tr.removes:
		if id != 7 {
			t.Fatalf("want remove of player 7, got %d", id)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatalf("remove should be sent immediately, not debounced")
	}

	v := waitView(t, e, func(v View) bool { return v.Version == 4 })
	if len(v.Assignments) != 0 {
		t.Fatalf("player should be gone, got %+v", v.Assignments)
	}
}

func TestEditor_RemoveAbsentPlayerIsLocalNoOp(t *testing.T) {
	tr := newFakeTransport()
	e := newTestEditor(t, tr, nil, nil)

	e.Inbox() <- Remove{PlayerID: 42}
	time.Sleep(50 * time.Millisecond)
	select {
	case id := <-tr.removes:
		t.Fatalf("no network call expected for absent player, got remove %d", id)
	default:
	}
}

func TestEditor_ChannelModeConfirmationArrivesAsEvent(t *testing.T) {
	tr := newFakeTransport()
	// channel mode: Save returns no verdict
	tr.setSaveResult(nil, nil)
	e := newTestEditor(t, tr, nil, nil)

	e.Inbox() <- Place{PlayerID: 7, Slot: "st", Order: 0}
	_ = recvSave(t, tr.saves, time.Second)

	v := waitView(t, e, func(v View) bool { return v.Phase == PhaseIdle })
	if v.Version != 3 {
		t.Fatalf("no confirmation yet, version must stay 3, got %d", v.Version)
	}

	// the server pushes our own confirmation back
	tr.events <- transport.PositionUpdated{PlayerID: 7, Slot: "st", Order: 0, Version: 4}
	waitView(t, e, func(v View) bool { return v.Version == 4 })
}

func TestEditor_NotesDebouncedWithPositions(t *testing.T) {
	tr := newFakeTransport()
	tr.setSaveResult(&transport.SaveResult{Version: 4}, nil)
	e := newTestEditor(t, tr, nil, nil)

	e.Inbox() <- SetNotes{Notes: "press high"}
	e.Inbox() <- Place{PlayerID: 7, Slot: "st", Order: 0}

	req := recvSave(t, tr.saves, time.Second)
	if !req.NotesChanged || req.Notes != "press high" {
		t.Fatalf("notes should ride the same flush, got %+v", req)
	}
	recvNoSave(t, tr.saves, 300*time.Millisecond)
}

func TestEditor_PresenceFollowsJoinLeave(t *testing.T) {
	tr := newFakeTransport()
	e := newTestEditor(t, tr, &transport.Welcome{
		Version: 1,
		IsCoach: true,
		ActiveCoaches: []types.Coach{
			{EditorID: "c1", DisplayName: "Ada"},
		},
	}, nil)

	tr.events <- transport.CoachJoined{EditorID: "c2", DisplayName: "Grace"}
	v := waitView(t, e, func(v View) bool { return len(v.Coaches) == 2 })
	if v.Coaches[0].DisplayName != "Ada" || v.Coaches[1].DisplayName != "Grace" {
		t.Fatalf("unexpected coach list: %+v", v.Coaches)
	}

	tr.events <- transport.CoachLeft{EditorID: "c1", DisplayName: "Ada"}
	waitView(t, e, func(v View) bool { return len(v.Coaches) == 1 && v.Coaches[0].EditorID == "c2" })
}

func TestEditor_ConflictEventFromChannel(t *testing.T) {
	tr := newFakeTransport()
	n := &recordingNotifier{}
	e := newTestEditor(t, tr, nil, n)

	tr.events <- transport.Conflict{Message: "lineup was modified", Version: 9}
	waitView(t, e, func(v View) bool { return v.Phase == PhaseConflicted })
	if conflicts, _, _ := n.counts(); conflicts != 1 {
		t.Fatalf("want 1 conflict toast, got %d", conflicts)
	}
}

func TestEditor_EmptySlotDropIgnored(t *testing.T) {
	tr := newFakeTransport()
	e := newTestEditor(t, tr, nil, nil)

	e.Inbox() <- Place{PlayerID: 7, Slot: "", Order: 0}
	recvNoSave(t, tr.saves, 300*time.Millisecond)
	if v := getView(t, e); len(v.Assignments) != 0 {
		t.Fatalf("malformed drop must be a no-op, got %+v", v.Assignments)
	}
}

func TestEditor_RSVPUpdatesRoster(t *testing.T) {
	tr := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e := New(ctx, Config{
		Transport: tr,
		Welcome:   &transport.Welcome{Version: 1, IsCoach: true},
		Roster:    []lineup.Player{{ID: 7, Name: "Ada", Availability: lineup.AvailabilityMaybe}},
		Debounce:  100 * time.Millisecond,
	})

	tr.events <- transport.RSVPChanged{PlayerID: 7, Status: lineup.AvailabilityNo}
	waitView(t, e, func(v View) bool {
		return len(v.Roster) == 1 && v.Roster[0].Availability == lineup.AvailabilityNo
	})
}

// Package editor implements the client side of collaborative lineup editing:
// optimistic local mutation, debounced submission, and reconciliation against
// the server's monotonic lineup version.
//
// All state lives behind a single goroutine fed by an inbox of typed
// messages. UI code sends Place/Remove/SetNotes; the transport feeds remote
// events in; the loop owns the position store, the version counter, and the
// debounce timer outright.
package editor

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/transport"
)

const DefaultDebounce = 500 * time.Millisecond

type Config struct {
	Transport transport.Transport
	Welcome   *transport.Welcome
	Roster    []lineup.Player
	Notifier  Notifier
	Logger    *zap.Logger
	// Debounce is the quiet period before local edits are flushed.
	// DefaultDebounce when zero.
	Debounce time.Duration
}

type Editor struct {
	inbox    chan Msg
	store    *lineup.Store
	version  int
	notes    string
	phase    Phase
	presence *Presence
	isCoach  bool

	// edits accumulated since the last flush
	dirty      map[int]lineup.PositionEntry
	notesDirty bool

	tr       transport.Transport
	notifier Notifier
	log      *zap.Logger
	debounce time.Duration
	timer    *time.Timer
	timerGen int

	ctx    context.Context
	cancel context.CancelFunc
}

// New seeds the editor from the join handshake and starts its loop.
func New(parent context.Context, cfg Config) *Editor {
	ctx, cancel := context.WithCancel(parent)

	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	store := lineup.NewStore()
	store.SetRoster(cfg.Roster)
	store.Reset(cfg.Welcome.Positions)

	e := &Editor{
		inbox:    make(chan Msg, 64),
		store:    store,
		version:  cfg.Welcome.Version,
		notes:    cfg.Welcome.Notes,
		phase:    PhaseIdle,
		presence: NewPresence(cfg.Welcome.ActiveCoaches),
		isCoach:  cfg.Welcome.IsCoach,
		dirty:    make(map[int]lineup.PositionEntry),
		tr:       cfg.Transport,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		debounce: cfg.Debounce,
		ctx:      ctx,
		cancel:   cancel,
	}

	go e.pumpEvents()
	go e.loop()
	return e
}

// Inbox is where the UI layer and tests send messages.
func (e *Editor) Inbox() chan<- Msg { return e.inbox }

// pumpEvents forwards remote pushes into the loop. In REST mode Events is
// nil and there is nothing to pump.
func (e *Editor) pumpEvents() {
	evs := e.tr.Events()
	if evs == nil {
		return
	}
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			select {
			case e.inbox <- remoteEvent{ev: ev}:
			case <-e.ctx.Done():
				return
			}
		}
	}
}

func (e *Editor) loop() {
	for {
		select {
		case <-e.ctx.Done():
			e.teardown()
			return

		case m := <-e.inbox:
			switch msg := m.(type) {
			case Place:
				e.handlePlace(msg)

			case Remove:
				e.handleRemove(msg)

			case SetNotes:
				e.handleSetNotes(msg)

			case flushTimer:
				// Stale fires happen when a later edit re-armed the
				// timer before this one was drained.
				if msg.gen != e.timerGen {
					break
				}
				e.flush()

			case saveDone:
				e.handleSaveDone(msg)

			case remoteEvent:
				e.handleRemote(msg.ev)

			case GetView:
				msg.Reply <- View{
					Version:     e.version,
					Phase:       e.phase,
					Assignments: e.store.Assignments(),
					Roster:      e.store.Roster(),
					Notes:       e.notes,
					Coaches:     e.presence.List(),
					IsCoach:     e.isCoach,
				}

			case Teardown:
				e.teardown()
				return
			}
		}
	}
}

func (e *Editor) handlePlace(msg Place) {
	if !e.isCoach {
		e.notifier.PermissionDenied()
		return
	}
	// Drop targets without a position label are treated as a no-op drag.
	if msg.Slot == "" {
		return
	}
	e.store.Place(msg.PlayerID, msg.Slot, msg.Order)
	e.dirty[msg.PlayerID] = lineup.PositionEntry{PlayerID: msg.PlayerID, Slot: msg.Slot, Order: msg.Order}
	e.armDebounce()
}

func (e *Editor) handleRemove(msg Remove) {
	if !e.isCoach {
		e.notifier.PermissionDenied()
		return
	}
	if !e.store.Remove(msg.PlayerID) {
		return
	}
	delete(e.dirty, msg.PlayerID)

	// Removals are single discrete operations on the wire; no point
	// coalescing them.
	e.phase = PhasePending
	version := e.version
	go func() {
		res, err := e.tr.Remove(e.ctx, msg.PlayerID, version)
		e.deliver(saveDone{res: res, err: err})
	}()
}

func (e *Editor) handleSetNotes(msg SetNotes) {
	if !e.isCoach {
		e.notifier.PermissionDenied()
		return
	}
	e.notes = msg.Notes
	e.notesDirty = true
	e.armDebounce()
}

// armDebounce (re)starts the quiet-period timer. Each arm bumps the
// generation so a fire from an earlier arm is recognized as stale.
func (e *Editor) armDebounce() {
	e.timerGen++
	gen := e.timerGen
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		e.deliver(flushTimer{gen: gen})
	})
}

// flush submits everything dirty as one request reflecting the final local
// state. The dirty set is cleared up front: if the request fails the user
// re-triggers by editing again, we do not retry.
func (e *Editor) flush() {
	if len(e.dirty) == 0 && !e.notesDirty {
		return
	}

	changed := make([]lineup.PositionEntry, 0, len(e.dirty))
	for _, entry := range e.dirty {
		changed = append(changed, entry)
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].PlayerID < changed[j].PlayerID })

	req := transport.SaveRequest{
		Positions:       e.store.Assignments(),
		Changed:         changed,
		Notes:           e.notes,
		NotesChanged:    e.notesDirty,
		ExpectedVersion: e.version,
	}
	e.dirty = make(map[int]lineup.PositionEntry)
	e.notesDirty = false
	e.phase = PhasePending

	go func() {
		res, err := e.tr.Save(e.ctx, req)
		e.deliver(saveDone{res: res, err: err})
	}()
}

func (e *Editor) handleSaveDone(msg saveDone) {
	switch {
	case msg.err != nil:
		// Optimistic state stays applied; known divergence risk until
		// the user refreshes or edits again.
		e.log.Warn("save failed", zap.Error(msg.err))
		e.notifier.TransportError(msg.err)
		e.phase = PhaseIdle

	case msg.res == nil:
		// Channel mode: the confirmation arrives as a pushed event and
		// goes through handleRemote like anyone else's mutation.
		e.phase = PhaseIdle

	case msg.res.Conflict:
		e.log.Info("lineup version conflict",
			zap.Int("local_version", e.version),
			zap.Int("server_version", msg.res.Version))
		e.notifier.Conflict(msg.res.Message)
		e.phase = PhaseConflicted

	default:
		if msg.res.Version > e.version {
			e.version = msg.res.Version
		}
		e.phase = PhaseIdle
	}
}

// handleRemote applies another editor's change (or our own channel-mode
// confirmation). Versions at or below the local counter are duplicates and
// are dropped, which makes redelivery harmless.
func (e *Editor) handleRemote(ev transport.Event) {
	switch ev := ev.(type) {
	case transport.PositionUpdated:
		if ev.Version <= e.version {
			return
		}
		e.store.Place(ev.PlayerID, ev.Slot, ev.Order)
		e.version = ev.Version

	case transport.PlayerRemoved:
		if ev.Version <= e.version {
			return
		}
		e.store.Remove(ev.PlayerID)
		e.version = ev.Version

	case transport.NotesUpdated:
		if ev.Version <= e.version {
			return
		}
		e.notes = ev.Notes
		e.version = ev.Version

	case transport.CoachJoined:
		e.presence.Add(coachOf(ev.EditorID, ev.DisplayName))

	case transport.CoachLeft:
		e.presence.Remove(ev.EditorID)

	case transport.RSVPChanged:
		e.store.SetAvailability(ev.PlayerID, ev.Status)

	case transport.Conflict:
		e.notifier.Conflict(ev.Message)
		e.phase = PhaseConflicted

	case transport.RemoteError:
		e.notifier.TransportError(errors.New(ev.Message))
	}
}

func (e *Editor) teardown() {
	if e.timer != nil {
		e.timer.Stop()
	}
	if err := e.tr.Close(); err != nil {
		e.log.Debug("transport close", zap.Error(err))
	}
	e.cancel()
}

// deliver sends an internal message unless the editor is already torn down.
func (e *Editor) deliver(m Msg) {
	select {
	case e.inbox <- m:
	case <-e.ctx.Done():
	}
}

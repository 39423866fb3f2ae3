// Package room runs one collaborative editing session per (match, team): it
// owns the authoritative lineup, assigns versions, fans events out to joined
// editors, and writes through to storage on every accepted mutation.
package room

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/storage"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

const persistTimeout = 5 * time.Second

type Msg interface{ isRoomMsg() }

type Join struct {
	EditorID    string
	DisplayName string
	IsCoach     bool
	Outbox      chan types.Envelope
	Reply       chan types.JoinedRoom
}

type Leave struct{ EditorID string }

// UpdatePosition is a channel-mode mutation: accepted unconditionally, the
// new version rides on the broadcast.
type UpdatePosition struct {
	EditorID string
	PlayerID int
	Slot     string
	Order    int
}

type RemovePlayer struct {
	EditorID string
	PlayerID int
	// Reply is optional; REST wants the verdict, websocket clients take it
	// from the broadcast.
	Reply chan Result
}

type SaveNotes struct {
	EditorID string
	Notes    string
}

// SaveLineup is the REST full-state save. It is rejected when
// ExpectedVersion no longer matches; otherwise each position is applied as
// its own versioned mutation so channel clients can replay them in order.
type SaveLineup struct {
	EditorID        string
	Positions       []lineup.PositionEntry
	Notes           string
	ExpectedVersion int
	Reply           chan Result
}

// RSVPChanged fans an availability change out to the room. Informational;
// does not touch the lineup or its version.
type RSVPChanged struct {
	PlayerID int
	Status   lineup.Availability
}

type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()           {}
func (Leave) isRoomMsg()          {}
func (UpdatePosition) isRoomMsg() {}
func (RemovePlayer) isRoomMsg()   {}
func (SaveNotes) isRoomMsg()      {}
func (SaveLineup) isRoomMsg()     {}
func (RSVPChanged) isRoomMsg()    {}
func (GetState) isRoomMsg()       {}
func (Shutdown) isRoomMsg()       {}

type Result struct {
	Version        int
	Conflict       bool
	CurrentVersion int
	NotFound       bool
}

// View reflects internal state for tests without data races.
type View struct {
	Version    int
	NumClients int
	Positions  []lineup.PositionEntry
	Notes      string
}

type client struct {
	outbox  chan types.Envelope
	name    string
	isCoach bool
}

type Room struct {
	inbox   chan Msg
	store   *lineup.Store
	notes   string
	version int
	clients map[string]client

	matchID int
	teamID  int
	persist storage.Store
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a room seeded from a stored record (nil means a fresh lineup at
// version 1, matching what the original portal hands to a first join).
func New(parent context.Context, matchID, teamID int, rec *storage.Record, persist storage.Store, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)

	st := lineup.NewStore()
	version := 1
	notes := ""
	if rec != nil {
		st.Reset(rec.Positions)
		version = rec.Version
		notes = rec.Notes
	}

	r := &Room{
		inbox:   make(chan Msg, 64),
		store:   st,
		notes:   notes,
		version: version,
		clients: make(map[string]client),
		matchID: matchID,
		teamID:  teamID,
		persist: persist,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)

			case Leave:
				r.handleLeave(msg.EditorID)

			case UpdatePosition:
				r.store.Place(msg.PlayerID, msg.Slot, msg.Order)
				r.version++
				r.persistState()
				r.broadcast(types.NewEnvelope(types.EvtPositionUpdated, types.PositionUpdated{
					MatchID:       r.matchID,
					TeamID:        r.teamID,
					PlayerID:      msg.PlayerID,
					Position:      msg.Slot,
					Order:         msg.Order,
					Version:       r.version,
					UpdatedBy:     msg.EditorID,
					UpdatedByName: r.clients[msg.EditorID].name,
					Timestamp:     now(),
				}), "")

			case RemovePlayer:
				if !r.store.Remove(msg.PlayerID) {
					if msg.Reply != nil {
						msg.Reply <- Result{NotFound: true, CurrentVersion: r.version}
					}
					break
				}
				r.version++
				r.persistState()
				r.broadcast(types.NewEnvelope(types.EvtPlayerRemoved, types.PlayerRemoved{
					MatchID:   r.matchID,
					TeamID:    r.teamID,
					PlayerID:  msg.PlayerID,
					Version:   r.version,
					UpdatedBy: msg.EditorID,
					Timestamp: now(),
				}), "")
				if msg.Reply != nil {
					msg.Reply <- Result{Version: r.version}
				}

			case SaveNotes:
				r.notes = msg.Notes
				r.version++
				r.persistState()
				r.broadcast(types.NewEnvelope(types.EvtNotesUpdated, types.NotesUpdated{
					MatchID:   r.matchID,
					TeamID:    r.teamID,
					Notes:     msg.Notes,
					Version:   r.version,
					UpdatedBy: msg.EditorID,
					Timestamp: now(),
				}), "")

			case SaveLineup:
				r.handleSaveLineup(msg)

			case RSVPChanged:
				r.broadcast(types.NewEnvelope(types.EvtRSVPChanged, types.RSVPChanged{
					MatchID:   r.matchID,
					TeamID:    r.teamID,
					PlayerID:  msg.PlayerID,
					NewStatus: string(msg.Status),
					Timestamp: now(),
				}), "")

			case GetState:
				msg.Reply <- View{
					Version:    r.version,
					NumClients: len(r.clients),
					Positions:  r.store.Assignments(),
					Notes:      r.notes,
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	r.clients[msg.EditorID] = client{outbox: msg.Outbox, name: msg.DisplayName, isCoach: msg.IsCoach}

	msg.Reply <- types.JoinedRoom{
		MatchID:       r.matchID,
		TeamID:        r.teamID,
		Room:          RoomKey(r.matchID, r.teamID),
		Positions:     r.store.Assignments(),
		Notes:         r.notes,
		Version:       r.version,
		ActiveCoaches: r.activeCoaches(),
		IsCoach:       msg.IsCoach,
	}

	// Everyone else learns about the newcomer.
	r.broadcast(types.NewEnvelope(types.EvtCoachJoined, types.CoachJoined{
		EditorID:    msg.EditorID,
		DisplayName: msg.DisplayName,
		IsCoach:     msg.IsCoach,
		Timestamp:   now(),
	}), msg.EditorID)
}

func (r *Room) handleLeave(editorID string) {
	c, ok := r.clients[editorID]
	if !ok {
		return
	}
	delete(r.clients, editorID)
	close(c.outbox)
	r.broadcast(types.NewEnvelope(types.EvtCoachLeft, types.CoachLeft{
		EditorID:    editorID,
		DisplayName: c.name,
		Timestamp:   now(),
	}), "")
}

// handleSaveLineup applies a REST full save as a sequence of versioned
// mutations so that channel clients can replay them one by one. The payload
// is the whole lineup: players absent from it are removed.
func (r *Room) handleSaveLineup(msg SaveLineup) {
	// Version 0 means the client opted out of optimistic locking; the portal
	// accepts those saves unconditionally.
	if msg.ExpectedVersion != 0 && msg.ExpectedVersion != r.version {
		msg.Reply <- Result{Conflict: true, CurrentVersion: r.version}
		return
	}

	// Entries without a position label are no-op drags everywhere else; they
	// must not burn versions here either.
	placements := make([]lineup.PositionEntry, 0, len(msg.Positions))
	submitted := make(map[int]bool, len(msg.Positions))
	for _, entry := range msg.Positions {
		if entry.Slot == "" {
			continue
		}
		placements = append(placements, entry)
		submitted[entry.PlayerID] = true
	}

	for _, entry := range r.store.Assignments() {
		if submitted[entry.PlayerID] {
			continue
		}
		r.store.Remove(entry.PlayerID)
		r.version++
		r.broadcast(types.NewEnvelope(types.EvtPlayerRemoved, types.PlayerRemoved{
			MatchID:   r.matchID,
			TeamID:    r.teamID,
			PlayerID:  entry.PlayerID,
			Version:   r.version,
			UpdatedBy: msg.EditorID,
			Timestamp: now(),
		}), "")
	}

	for _, entry := range placements {
		r.store.Place(entry.PlayerID, entry.Slot, entry.Order)
		r.version++
		r.broadcast(types.NewEnvelope(types.EvtPositionUpdated, types.PositionUpdated{
			MatchID:   r.matchID,
			TeamID:    r.teamID,
			PlayerID:  entry.PlayerID,
			Position:  entry.Slot,
			Order:     entry.Order,
			Version:   r.version,
			UpdatedBy: msg.EditorID,
			Timestamp: now(),
		}), "")
	}
	if msg.Notes != r.notes {
		r.notes = msg.Notes
		r.version++
		r.broadcast(types.NewEnvelope(types.EvtNotesUpdated, types.NotesUpdated{
			MatchID:   r.matchID,
			TeamID:    r.teamID,
			Notes:     msg.Notes,
			Version:   r.version,
			UpdatedBy: msg.EditorID,
			Timestamp: now(),
		}), "")
	}
	r.persistState()
	msg.Reply <- Result{Version: r.version}
}

func (r *Room) activeCoaches() []types.Coach {
	coaches := make([]types.Coach, 0, len(r.clients))
	for id, c := range r.clients {
		coaches = append(coaches, types.Coach{EditorID: id, DisplayName: c.name})
	}
	return coaches
}

// broadcast sends to every client except the one named by skip. Slow clients
// are dropped rather than allowed to stall the room.
func (r *Room) broadcast(env types.Envelope, skip string) {
	for id, c := range r.clients {
		if id == skip {
			continue
		}
		select {
		case c.outbox <- env:
		default:
			r.log.Warn("dropping slow client", zap.String("editor_id", id))
			close(c.outbox)
			delete(r.clients, id)
		}
	}
}

func (r *Room) persistState() {
	if r.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, persistTimeout)
	defer cancel()
	err := r.persist.Save(ctx, &storage.Record{
		MatchID:   r.matchID,
		TeamID:    r.teamID,
		Positions: r.store.Assignments(),
		Notes:     r.notes,
		Version:   r.version,
	})
	if err != nil {
		r.log.Error("persist lineup failed",
			zap.Int("match_id", r.matchID),
			zap.Int("team_id", r.teamID),
			zap.Error(err))
	}
}

func (r *Room) shutdown() {
	for id, c := range r.clients {
		close(c.outbox)
		delete(r.clients, id)
	}
	r.cancel()
}

// RoomKey matches the original portal's room naming.
func RoomKey(matchID, teamID int) string {
	return fmt.Sprintf("lineup_match_%d_team_%d", matchID, teamID)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

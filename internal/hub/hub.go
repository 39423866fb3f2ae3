// Package hub owns the registry of live editing rooms, one per (match, team).
// Rooms are created lazily on first interest, seeded from storage.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/room"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/storage"
)

type Key struct {
	MatchID int
	TeamID  int
}

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the room for a key, creating and seeding it if needed.
type EnsureRoom struct {
	Key   Key
	Reply chan *room.Room
}

type GetRoom struct {
	Key   Key
	Reply chan *room.Room
}

type RemoveRoom struct{ Key Key }

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[Key]*room.Room
	persist storage.Store
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, persist storage.Store, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[Key]*room.Room),
		persist: persist,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Storage exposes the persistence layer for read-only snapshot paths that
// should not spin up a room.
func (h *Hub) Storage() storage.Store { return h.persist }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.Key]; rm != nil {
					msg.Reply <- rm
					break
				}
				msg.Reply <- h.create(msg.Key)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Key] // may be nil

			case RemoveRoom:
				if rm := h.rooms[msg.Key]; rm != nil {
					rm.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.Key)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(key Key) *room.Room {
	var rec *storage.Record
	if h.persist != nil {
		loaded, err := h.persist.Load(h.ctx, key.MatchID, key.TeamID)
		switch {
		case err == nil:
			rec = loaded
		case err != storage.ErrNotFound:
			h.log.Error("load lineup failed",
				zap.Int("match_id", key.MatchID),
				zap.Int("team_id", key.TeamID),
				zap.Error(err))
		}
	}

	rm := room.New(h.ctx, key.MatchID, key.TeamID, rec, h.persist,
		h.log.Named("room").With(zap.Int("match_id", key.MatchID), zap.Int("team_id", key.TeamID)))
	h.rooms[key] = rm
	return rm
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Inbox() <- room.Shutdown{}
	}
	clear(h.rooms)
	h.cancel()
}

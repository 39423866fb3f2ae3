// Package ws exposes the channel-mode endpoint: one websocket per editor
// session, speaking the Envelope protocol from pkg/types.
package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/hub"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/room"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 3 * time.Second
)

// Authorizer decides whether an editor may mutate a team's lineup. Real
// authentication belongs to the portal; the reference server just needs the
// hook so the client-side permission gate has something to reflect.
type Authorizer func(editorID string, teamID int) bool

// AllowAll treats every editor as a coach. Development default.
func AllowAll(string, int) bool { return true }

func Handler(h *hub.Hub, authz Authorizer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		join, ok := readJoin(r.Context(), conn)
		if !ok {
			return
		}
		if join.EditorID == "" {
			join.EditorID = randID(6)
		}
		isCoach := authz(join.EditorID, join.TeamID)

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{Key: hub.Key{MatchID: join.MatchID, TeamID: join.TeamID}, Reply: reply}
		rm := <-reply

		out := make(chan types.Envelope, 16)
		joined := make(chan types.JoinedRoom, 1)
		rm.Inbox() <- room.Join{
			EditorID:    join.EditorID,
			DisplayName: join.DisplayName,
			IsCoach:     isCoach,
			Outbox:      out,
			Reply:       joined,
		}
		defer func() { rm.Inbox() <- room.Leave{EditorID: join.EditorID} }()

		welcome := <-joined
		if err := write(r.Context(), conn, types.NewEnvelope(types.EvtJoinedRoom, welcome)); err != nil {
			return
		}

		// Writer goroutine: drains the room outbox until Leave closes it.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for env := range out {
				if err := write(writeCtx, conn, env); err != nil {
					return
				}
			}
		}()

		readLoop(r.Context(), conn, rm, join, isCoach, log)
	}
}

func readJoin(ctx context.Context, conn *websocket.Conn) (types.JoinRoom, bool) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	var join types.JoinRoom
	_, data, err := conn.Read(ctx)
	if err != nil {
		return join, false
	}
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event != types.EvtJoinRoom {
		_ = write(ctx, conn, types.NewEnvelope(types.EvtError, types.Error{Message: "expected join_room"}))
		return join, false
	}
	if err := json.Unmarshal(env.Data, &join); err != nil || join.MatchID <= 0 || join.TeamID <= 0 {
		_ = write(ctx, conn, types.NewEnvelope(types.EvtError, types.Error{Message: "match_id and team_id required"}))
		return join, false
	}
	return join, true
}

func readLoop(ctx context.Context, conn *websocket.Conn, rm *room.Room, join types.JoinRoom, isCoach bool, log *zap.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = write(ctx, conn, types.NewEnvelope(types.EvtError, types.Error{Message: "bad json"}))
			continue
		}

		if env.Event != types.EvtJoinRoom && !isCoach {
			_ = write(ctx, conn, types.NewEnvelope(types.EvtError,
				types.Error{Message: "you are not authorized to edit this lineup"}))
			continue
		}

		switch env.Event {
		case types.EvtUpdatePosition:
			var p types.UpdatePosition
			if err := json.Unmarshal(env.Data, &p); err != nil || p.Position == "" {
				_ = write(ctx, conn, types.NewEnvelope(types.EvtError, types.Error{Message: "bad update_position"}))
				continue
			}
			rm.Inbox() <- room.UpdatePosition{
				EditorID: join.EditorID,
				PlayerID: p.PlayerID,
				Slot:     p.Position,
				Order:    p.Order,
			}

		case types.EvtRemovePosition:
			var p types.RemovePosition
			if err := json.Unmarshal(env.Data, &p); err != nil {
				_ = write(ctx, conn, types.NewEnvelope(types.EvtError, types.Error{Message: "bad remove_position"}))
				continue
			}
			rm.Inbox() <- room.RemovePlayer{EditorID: join.EditorID, PlayerID: p.PlayerID}

		case types.EvtSaveNotes:
			var p types.SaveNotes
			if err := json.Unmarshal(env.Data, &p); err != nil {
				_ = write(ctx, conn, types.NewEnvelope(types.EvtError, types.Error{Message: "bad save_notes"}))
				continue
			}
			rm.Inbox() <- room.SaveNotes{EditorID: join.EditorID, Notes: p.Notes}

		default:
			_ = write(ctx, conn, types.NewEnvelope(types.EvtError, types.Error{Message: "unknown event"}))
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, env types.Envelope) error {
	payload, _ := json.Marshal(env)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

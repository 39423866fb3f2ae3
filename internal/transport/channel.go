package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 3 * time.Second
)

// Channel is the websocket adapter. Sends are fire-and-forget: the server
// pushes the sender's own confirmation (with the new version) and other
// editors' mutations back over the same connection.
type Channel struct {
	conn   *websocket.Conn
	events chan Event
	log    *zap.Logger

	matchID int
	teamID  int
}

// DialChannel connects, performs the join_room handshake, and starts the
// reader. The returned Welcome carries the authoritative snapshot.
func DialChannel(ctx context.Context, wsURL string, join types.JoinRoom, log *zap.Logger) (*Channel, *Welcome, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial channel: %w", err)
	}

	c := &Channel{
		conn:    conn,
		events:  make(chan Event, 16),
		log:     log,
		matchID: join.MatchID,
		teamID:  join.TeamID,
	}

	welcome, err := c.handshake(ctx, join)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, nil, err
	}

	go c.readLoop()
	return c, welcome, nil
}

func (c *Channel) handshake(ctx context.Context, join types.JoinRoom) (*Welcome, error) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	if err := c.write(ctx, types.NewEnvelope(types.EvtJoinRoom, join)); err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}

	// The first frame must be joined_room or error; anything else is a
	// protocol violation.
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("join room: bad frame: %w", err)
	}
	switch env.Event {
	case types.EvtJoinedRoom:
		var jr types.JoinedRoom
		if err := json.Unmarshal(env.Data, &jr); err != nil {
			return nil, fmt.Errorf("join room: bad payload: %w", err)
		}
		return &Welcome{
			Positions:     jr.Positions,
			Notes:         jr.Notes,
			Version:       jr.Version,
			ActiveCoaches: jr.ActiveCoaches,
			IsCoach:       jr.IsCoach,
		}, nil
	case types.EvtError:
		var e types.Error
		_ = json.Unmarshal(env.Data, &e)
		return nil, fmt.Errorf("join room rejected: %s", e.Message)
	default:
		return nil, fmt.Errorf("join room: unexpected event %q", env.Event)
	}
}

// Save emits one update_position per changed entry plus save_notes when the
// notes changed. Always returns a nil result; the confirmation is pushed back
// on Events.
func (c *Channel) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	for _, entry := range req.Changed {
		msg := types.UpdatePosition{
			MatchID:  c.matchID,
			TeamID:   c.teamID,
			PlayerID: entry.PlayerID,
			Position: entry.Slot,
			Order:    entry.Order,
		}
		if err := c.write(ctx, types.NewEnvelope(types.EvtUpdatePosition, msg)); err != nil {
			return nil, err
		}
	}
	if req.NotesChanged {
		msg := types.SaveNotes{MatchID: c.matchID, TeamID: c.teamID, Notes: req.Notes}
		if err := c.write(ctx, types.NewEnvelope(types.EvtSaveNotes, msg)); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (c *Channel) Remove(ctx context.Context, playerID, expectedVersion int) (*SaveResult, error) {
	msg := types.RemovePosition{MatchID: c.matchID, TeamID: c.teamID, PlayerID: playerID}
	if err := c.write(ctx, types.NewEnvelope(types.EvtRemovePosition, msg)); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Channel) Events() <-chan Event { return c.events }

func (c *Channel) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Channel) write(ctx context.Context, env types.Envelope) error {
	payload, _ := json.Marshal(env)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *Channel) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("channel read ended", zap.Error(err))
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("dropping bad frame", zap.Error(err))
			continue
		}
		if ev, ok := decodeServerEvent(env); ok {
			c.events <- ev
		}
	}
}

// decodeServerEvent maps a server envelope onto the Event union. Unknown
// event names are skipped so old clients survive new server events.
func decodeServerEvent(env types.Envelope) (Event, bool) {
	switch env.Event {
	case types.EvtPositionUpdated:
		var p types.PositionUpdated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		return PositionUpdated{
			PlayerID:  p.PlayerID,
			Slot:      p.Position,
			Order:     p.Order,
			Version:   p.Version,
			UpdatedBy: p.UpdatedBy,
		}, true
	case types.EvtPlayerRemoved:
		var p types.PlayerRemoved
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		return PlayerRemoved{PlayerID: p.PlayerID, Version: p.Version, UpdatedBy: p.UpdatedBy}, true
	case types.EvtNotesUpdated:
		var p types.NotesUpdated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		return NotesUpdated{Notes: p.Notes, Version: p.Version, UpdatedBy: p.UpdatedBy}, true
	case types.EvtCoachJoined:
		var p types.CoachJoined
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		return CoachJoined{EditorID: p.EditorID, DisplayName: p.DisplayName}, true
	case types.EvtCoachLeft:
		var p types.CoachLeft
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		return CoachLeft{EditorID: p.EditorID, DisplayName: p.DisplayName}, true
	case types.EvtRSVPChanged:
		var p types.RSVPChanged
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		status, ok := lineup.ParseAvailability(p.NewStatus)
		if !ok {
			return nil, false
		}
		return RSVPChanged{PlayerID: p.PlayerID, Status: status}, true
	case types.EvtError:
		var p types.Error
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		if p.Conflict {
			return Conflict{Message: p.Message, Version: p.Version}, true
		}
		return RemoteError{Message: p.Message}, true
	default:
		return nil, false
	}
}

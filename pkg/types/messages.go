// Package types defines the wire protocol shared by the lineup sync client
// and the lineupd reference server. Every websocket frame is an Envelope; the
// Event field selects which payload struct Data decodes into.
package types

import (
	"encoding/json"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
)

// Client -> Server events.
const (
	EvtJoinRoom       = "join_room"
	EvtUpdatePosition = "update_position"
	EvtRemovePosition = "remove_position"
	EvtSaveNotes      = "save_notes"
)

// Server -> Client events.
const (
	EvtJoinedRoom      = "joined_room"
	EvtPositionUpdated = "position_updated"
	EvtPlayerRemoved   = "player_removed"
	EvtNotesUpdated    = "notes_updated"
	EvtCoachJoined     = "coach_joined"
	EvtCoachLeft       = "coach_left"
	EvtRSVPChanged     = "rsvp_changed"
	EvtError           = "error"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload and wraps it. The payload structs in this
// package cannot fail to marshal, so the error is swallowed.
func NewEnvelope(event string, payload any) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Event: event, Data: data}
}

type JoinRoom struct {
	MatchID     int    `json:"match_id"`
	TeamID      int    `json:"team_id"`
	EditorID    string `json:"editor_id"`
	DisplayName string `json:"display_name"`
}

type Coach struct {
	EditorID    string `json:"editor_id"`
	DisplayName string `json:"display_name"`
	JoinedAt    string `json:"joined_at,omitempty"`
}

// JoinedRoom is the handshake reply: the authoritative snapshot plus whoever
// else is editing right now.
type JoinedRoom struct {
	MatchID       int                    `json:"match_id"`
	TeamID        int                    `json:"team_id"`
	Room          string                 `json:"room"`
	Positions     []lineup.PositionEntry `json:"positions"`
	Notes         string                 `json:"notes"`
	Version       int                    `json:"version"`
	ActiveCoaches []Coach                `json:"active_coaches"`
	IsCoach       bool                   `json:"is_coach"`
}

type UpdatePosition struct {
	MatchID  int    `json:"match_id"`
	TeamID   int    `json:"team_id"`
	PlayerID int    `json:"player_id"`
	Position string `json:"position"`
	Order    int    `json:"order"`
}

type PositionUpdated struct {
	MatchID       int    `json:"match_id"`
	TeamID        int    `json:"team_id"`
	PlayerID      int    `json:"player_id"`
	Position      string `json:"position"`
	Order         int    `json:"order"`
	Version       int    `json:"version"`
	UpdatedBy     string `json:"updated_by"`
	UpdatedByName string `json:"updated_by_name,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

type RemovePosition struct {
	MatchID  int `json:"match_id"`
	TeamID   int `json:"team_id"`
	PlayerID int `json:"player_id"`
}

type PlayerRemoved struct {
	MatchID   int    `json:"match_id"`
	TeamID    int    `json:"team_id"`
	PlayerID  int    `json:"player_id"`
	Version   int    `json:"version"`
	UpdatedBy string `json:"updated_by"`
	Timestamp string `json:"timestamp,omitempty"`
}

type SaveNotes struct {
	MatchID int    `json:"match_id"`
	TeamID  int    `json:"team_id"`
	Notes   string `json:"notes"`
}

type NotesUpdated struct {
	MatchID   int    `json:"match_id"`
	TeamID    int    `json:"team_id"`
	Notes     string `json:"notes"`
	Version   int    `json:"version"`
	UpdatedBy string `json:"updated_by"`
	Timestamp string `json:"timestamp,omitempty"`
}

type CoachJoined struct {
	EditorID    string `json:"editor_id"`
	DisplayName string `json:"display_name"`
	IsCoach     bool   `json:"is_coach"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type CoachLeft struct {
	EditorID    string `json:"editor_id"`
	DisplayName string `json:"display_name"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type RSVPChanged struct {
	MatchID    int    `json:"match_id"`
	TeamID     int    `json:"team_id"`
	PlayerID   int    `json:"player_id"`
	PlayerName string `json:"player_name,omitempty"`
	NewStatus  string `json:"new_status"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type Error struct {
	Message  string `json:"message"`
	Conflict bool   `json:"conflict,omitempty"`
	Version  int    `json:"current_version,omitempty"`
}

// REST bodies. PUT /lineup carries the whole optimistic state plus the
// version the client believes is current.
type SaveLineupRequest struct {
	Positions []lineup.PositionEntry `json:"positions"`
	Notes     string                 `json:"notes"`
	Version   int                    `json:"version"`
}

type SaveLineupResponse struct {
	Success  bool   `json:"success"`
	Version  int    `json:"version,omitempty"`
	Conflict bool   `json:"conflict,omitempty"`
	Message  string `json:"message,omitempty"`
}

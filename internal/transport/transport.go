// Package transport moves lineup mutations between the editor and the server.
// Two adapters implement the same interface: Channel (persistent websocket,
// fire-and-forget sends, confirmations and other editors' changes pushed back)
// and REST (discrete request/response, no push path). Dial picks whichever is
// available at construction time so the reconciler never knows the difference.
package transport

import (
	"context"
	"errors"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

var ErrClosed = errors.New("transport closed")

// SaveRequest is one debounced flush of local edits. Positions carries the
// full optimistic state (what REST submits); Changed is the subset touched
// since the last flush (what Channel emits as individual events).
type SaveRequest struct {
	Positions       []lineup.PositionEntry
	Changed         []lineup.PositionEntry
	Notes           string
	NotesChanged    bool
	ExpectedVersion int
}

// SaveResult is a synchronous server verdict. Channel-mode calls return a nil
// result instead: the confirmation arrives later on Events with the new
// version, or as a Conflict event.
type SaveResult struct {
	Version  int
	Conflict bool
	Message  string
}

// Welcome is what joining yields: the authoritative snapshot plus presence.
type Welcome struct {
	Positions     []lineup.PositionEntry
	Notes         string
	Version       int
	ActiveCoaches []types.Coach
	IsCoach       bool
}

type Transport interface {
	Save(ctx context.Context, req SaveRequest) (*SaveResult, error)
	Remove(ctx context.Context, playerID, expectedVersion int) (*SaveResult, error)
	// Events returns the remote push stream. It is nil in REST mode; other
	// editors' changes are then only observed on reload.
	Events() <-chan Event
	Close() error
}

// Event is a remote push decoded into one of the variant structs below.
type Event interface{ isTransportEvent() }

type PositionUpdated struct {
	PlayerID  int
	Slot      string
	Order     int
	Version   int
	UpdatedBy string
}

type PlayerRemoved struct {
	PlayerID  int
	Version   int
	UpdatedBy string
}

type NotesUpdated struct {
	Notes     string
	Version   int
	UpdatedBy string
}

type CoachJoined struct {
	EditorID    string
	DisplayName string
}

type CoachLeft struct {
	EditorID    string
	DisplayName string
}

type RSVPChanged struct {
	PlayerID int
	Status   lineup.Availability
}

// Conflict is the channel-mode rejection of a stale mutation.
type Conflict struct {
	Message string
	Version int
}

// RemoteError is any other server-reported failure.
type RemoteError struct {
	Message string
}

func (PositionUpdated) isTransportEvent() {}
func (PlayerRemoved) isTransportEvent()   {}
func (NotesUpdated) isTransportEvent()    {}
func (CoachJoined) isTransportEvent()     {}
func (CoachLeft) isTransportEvent()       {}
func (RSVPChanged) isTransportEvent()     {}
func (Conflict) isTransportEvent()        {}
func (RemoteError) isTransportEvent()     {}

package editor

import (
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/transport"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

type Msg interface{ isEditorMsg() }

// Place moves a player onto a slot, optimistically and debounced.
type Place struct {
	PlayerID int
	Slot     string
	Order    int
}

// Remove takes a player off the pitch. Sent to the server immediately, not
// debounced.
type Remove struct{ PlayerID int }

// SetNotes replaces the free-text lineup notes, debounced with positions.
type SetNotes struct{ Notes string }

// GetView reflects internal state without data races; used by tests and the
// UI layer's render pass.
type GetView struct{ Reply chan View }

type Teardown struct{}

// internal messages
type remoteEvent struct{ ev transport.Event }

type flushTimer struct{ gen int }

type saveDone struct {
	res *transport.SaveResult
	err error
}

func (Place) isEditorMsg()       {}
func (Remove) isEditorMsg()      {}
func (SetNotes) isEditorMsg()    {}
func (GetView) isEditorMsg()     {}
func (Teardown) isEditorMsg()    {}
func (remoteEvent) isEditorMsg() {}
func (flushTimer) isEditorMsg()  {}
func (saveDone) isEditorMsg()    {}

// Phase is the reconciler state for the current mutation attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePending    Phase = "pending"
	PhaseConflicted Phase = "conflicted"
)

type View struct {
	Version     int
	Phase       Phase
	Assignments []lineup.PositionEntry
	Roster      []lineup.Player
	Notes       string
	Coaches     []types.Coach
	IsCoach     bool
}

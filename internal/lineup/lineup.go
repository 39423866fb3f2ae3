// Package lineup holds the domain model for a per-match team lineup: players,
// roster slots, and the versioned snapshot the server treats as authoritative.
package lineup

import "errors"

var ErrPlayerNotInLineup = errors.New("player not in lineup")
var ErrVersionConflict = errors.New("lineup version conflict")
var ErrNotCoach = errors.New("only coaches can edit the lineup")

// Availability mirrors the RSVP status shown next to each player. It is
// informational: the editor displays it but never changes it.
type Availability string

const (
	AvailabilityYes         Availability = "yes"
	AvailabilityMaybe       Availability = "maybe"
	AvailabilityNo          Availability = "no"
	AvailabilityUnavailable Availability = "unavailable"
)

func ParseAvailability(s string) (Availability, bool) {
	switch Availability(s) {
	case AvailabilityYes, AvailabilityMaybe, AvailabilityNo, AvailabilityUnavailable:
		return Availability(s), true
	default:
		return "", false
	}
}

type Player struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	Availability Availability `json:"availability"`
}

// PositionEntry assigns one player to one roster slot. Slot is a free-form
// position label ("gk", "lw", "bench-3"); Order breaks ties inside a slot.
type PositionEntry struct {
	PlayerID int    `json:"player_id"`
	Slot     string `json:"position"`
	Order    int    `json:"order"`
}

// Snapshot is the full serializable lineup state. Version is assigned by the
// server and is non-decreasing for the lifetime of the lineup.
type Snapshot struct {
	Positions []PositionEntry `json:"positions"`
	Notes     string          `json:"notes"`
	Version   int             `json:"version"`
}

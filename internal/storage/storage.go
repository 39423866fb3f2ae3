// Package storage persists authoritative lineups for the lineupd reference
// server. Rooms write through on every accepted mutation and load on first
// join.
package storage

import (
	"context"
	"errors"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
)

var ErrNotFound = errors.New("lineup not found")

// Record is one persisted lineup row.
type Record struct {
	MatchID   int
	TeamID    int
	Positions []lineup.PositionEntry
	Notes     string
	Version   int
}

type Store interface {
	Load(ctx context.Context, matchID, teamID int) (*Record, error)
	// Save upserts keyed on (match, team).
	Save(ctx context.Context, rec *Record) error
}

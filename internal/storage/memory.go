package storage

import (
	"context"
	"sync"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
)

type key struct{ matchID, teamID int }

// Memory keeps lineups in a map. Default for dev and tests; lineups live as
// long as the process.
type Memory struct {
	mu      sync.Mutex
	records map[key]*Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[key]*Record)}
}

func (m *Memory) Load(_ context.Context, matchID, teamID int) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key{matchID, teamID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	cp.Positions = append([]lineup.PositionEntry(nil), rec.Positions...)
	return &cp, nil
}

func (m *Memory) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Positions = append([]lineup.PositionEntry(nil), rec.Positions...)
	m.records[key{rec.MatchID, rec.TeamID}] = &cp
	return nil
}

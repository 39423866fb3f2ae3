package lineup

import "sort"

// Store is the in-memory position mapping one editor session works against.
// Keying by player id makes the at-most-one-slot invariant structural: placing
// a player again overwrites their previous slot. The Store does no slot
// capacity checking; two players can both sit in "gk" and the server is the
// one to care, if it cares at all.
//
// Store is not safe for concurrent use. It is owned by a single goroutine
// (the editor loop client-side, the room loop server-side).
type Store struct {
	entries map[int]PositionEntry
	roster  map[int]Player
}

func NewStore() *Store {
	return &Store{
		entries: make(map[int]PositionEntry),
		roster:  make(map[int]Player),
	}
}

// Reset replaces all assignments with the given snapshot positions, e.g. on
// the join handshake.
func (s *Store) Reset(positions []PositionEntry) {
	s.entries = make(map[int]PositionEntry, len(positions))
	for _, p := range positions {
		if p.Slot == "" {
			continue
		}
		s.entries[p.PlayerID] = p
	}
}

// Place assigns playerID to slot at order, removing it from any prior slot.
// An empty slot is a malformed drop target and is ignored.
func (s *Store) Place(playerID int, slot string, order int) {
	if slot == "" {
		return
	}
	s.entries[playerID] = PositionEntry{PlayerID: playerID, Slot: slot, Order: order}
}

// Remove clears the player's slot. Removing an absent player is a no-op.
func (s *Store) Remove(playerID int) bool {
	if _, ok := s.entries[playerID]; !ok {
		return false
	}
	delete(s.entries, playerID)
	return true
}

// SlotOf reports the player's current slot, if any.
func (s *Store) SlotOf(playerID int) (string, bool) {
	e, ok := s.entries[playerID]
	return e.Slot, ok
}

// Assignments returns every (player, slot, order) triple in a stable order
// suitable for serialization: by order, then slot, then player id.
func (s *Store) Assignments() []PositionEntry {
	out := make([]PositionEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

func (s *Store) Len() int { return len(s.entries) }

// SetRoster seeds the player directory shown alongside the pitch.
func (s *Store) SetRoster(players []Player) {
	s.roster = make(map[int]Player, len(players))
	for _, p := range players {
		s.roster[p.ID] = p
	}
}

// Roster lists the known players sorted by id.
func (s *Store) Roster() []Player {
	out := make([]Player, 0, len(s.roster))
	for _, p := range s.roster {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) PlayerByID(id int) (Player, bool) {
	p, ok := s.roster[id]
	return p, ok
}

// SetAvailability updates a player's RSVP indicator. Unknown players are
// ignored; the roster is seeded at join and RSVPs for players outside it are
// someone else's problem.
func (s *Store) SetAvailability(playerID int, a Availability) {
	p, ok := s.roster[playerID]
	if !ok {
		return
	}
	p.Availability = a
	s.roster[playerID] = p
}

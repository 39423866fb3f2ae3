package editor

import (
	"sort"

	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

// Presence tracks the other editors currently in the room. Display only; it
// has no say in who may mutate what. Owned by the editor loop, so no locking.
type Presence struct {
	editors map[string]types.Coach
}

func NewPresence(initial []types.Coach) *Presence {
	p := &Presence{editors: make(map[string]types.Coach, len(initial))}
	for _, c := range initial {
		p.editors[c.EditorID] = c
	}
	return p
}

func (p *Presence) Add(c types.Coach) {
	p.editors[c.EditorID] = c
}

func (p *Presence) Remove(editorID string) {
	delete(p.editors, editorID)
}

// List returns the current editors sorted by display name for stable
// rendering.
func (p *Presence) List() []types.Coach {
	out := make([]types.Coach, 0, len(p.editors))
	for _, c := range p.editors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].EditorID < out[j].EditorID
	})
	return out
}

func (p *Presence) Len() int { return len(p.editors) }

func coachOf(editorID, displayName string) types.Coach {
	return types.Coach{EditorID: editorID, DisplayName: displayName}
}

package army

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// State is the persisted form of a grid.
type State struct {
	ArmyValue int    `json:"armyValue"`
	Units     []Unit `json:"units"`
}

// Export snapshots the grid. Units are listed in row-major order.
func (g *Grid) Export() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	units := g.unitsLocked()
	if units == nil {
		units = []Unit{}
	}
	return State{ArmyValue: g.value, Units: units}
}

// Import replaces the grid contents with st. Entries that are out of
// bounds, malformed, or collide with an earlier entry's id or cell are
// skipped. A unit of a type missing from the catalog, or one that cannot
// attack, counts as malformed. The stored armyValue is ignored and recomputed. It returns the
// number of units placed.
func (g *Grid) Import(st State) int {
	g.mu.Lock()
	g.cells = emptyCells(g.size)
	seen := make(map[string]bool, len(st.Units))
	placed := 0
	for _, u := range st.Units {
		p := u.Position()
		switch {
		case u.ID == "" || u.Type == "" || u.Level < 1 || u.Stats.Attack <= 0:
			log.Warn().Str("unit", u.ID).Msg("Skipping malformed unit on import")
			continue
		case !g.known(u.Type):
			log.Warn().Str("unit", u.ID).Str("type", u.Type).Msg("Skipping unit of unknown type on import")
			continue
		case !g.inBounds(p):
			log.Warn().Str("unit", u.ID).Stringer("pos", p).Msg("Skipping out-of-range unit on import")
			continue
		case seen[u.ID] || g.cells[p.R][p.C] != nil:
			log.Warn().Str("unit", u.ID).Stringer("pos", p).Msg("Skipping duplicate unit on import")
			continue
		}
		unit := u
		g.place(&unit, p)
		seen[u.ID] = true
		placed++
	}
	g.recalculate()
	fire := g.notify(Event{Type: EventArmyImported})
	g.mu.Unlock()

	fire()
	return placed
}

func (g *Grid) known(typeID string) bool {
	_, ok := g.catalog.Get(typeID)
	return ok
}

// ParseState decodes a saved army leniently: unit entries that fail to
// decode are dropped instead of failing the whole document. Garbage input
// yields an empty state.
func ParseState(raw []byte) State {
	var doc struct {
		ArmyValue int               `json:"armyValue"`
		Units     []json.RawMessage `json:"units"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable army state")
		return State{Units: []Unit{}}
	}
	st := State{ArmyValue: doc.ArmyValue, Units: make([]Unit, 0, len(doc.Units))}
	for _, entry := range doc.Units {
		var u Unit
		if err := json.Unmarshal(entry, &u); err != nil {
			continue
		}
		st.Units = append(st.Units, u)
	}
	return st
}

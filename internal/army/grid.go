package army

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"basileus/internal/catalog"

	"github.com/rs/zerolog/log"
)

const DefaultSize = 5

var (
	ErrGridFull        = errors.New("army: grid full")
	ErrUnknownType     = errors.New("army: unknown unit type")
	ErrInvalidPosition = errors.New("army: position out of bounds")
	ErrEmptyCell       = errors.New("army: no unit in cell")
	ErrUnitNotFound    = errors.New("army: unit not found")
	ErrNotMergeable    = errors.New("army: units differ in type or level")
)

// Wallet is the slice of the resource ledger a purchase needs. Charge
// must take amount and store next as the saved army in one step: either
// both happen or neither does.
type Wallet interface {
	Charge(ctx context.Context, amount int, next State) error
}

// MoveKind says what a MoveUnit call ended up doing.
type MoveKind string

const (
	MoveRelocated MoveKind = "relocated"
	MoveMerged    MoveKind = "merged"
	MoveSwapped   MoveKind = "swapped"
	MoveNone      MoveKind = "none"
)

// MoveResult describes a completed move.
type MoveResult struct {
	Kind MoveKind `json:"kind"`
	Unit Unit     `json:"unit"`
	// Displaced is the unit that went back to the origin cell on a swap.
	Displaced *Unit `json:"displaced,omitempty"`
}

// Grid is the N×N roster matrix. All mutations hold mu for their whole
// duration so no caller can observe a half-applied change.
type Grid struct {
	mu        sync.Mutex
	size      int
	cells     [][]*Unit
	value     int
	catalog   *catalog.Catalog
	listeners []Listener
}

func NewGrid(size int, cat *catalog.Catalog) *Grid {
	if size <= 0 {
		size = DefaultSize
	}
	g := &Grid{size: size, catalog: cat}
	g.cells = emptyCells(size)
	return g
}

func emptyCells(size int) [][]*Unit {
	cells := make([][]*Unit, size)
	for r := range cells {
		cells[r] = make([]*Unit, size)
	}
	return cells
}

func (g *Grid) Size() int { return g.size }

func (g *Grid) inBounds(p Position) bool {
	return p.R >= 0 && p.R < g.size && p.C >= 0 && p.C < g.size
}

// emptySlot returns the first free cell in row-major order.
func (g *Grid) emptySlot() (Position, bool) {
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			if g.cells[r][c] == nil {
				return Position{R: r, C: c}, true
			}
		}
	}
	return Position{}, false
}

func (g *Grid) place(u *Unit, p Position) {
	u.R, u.C = p.R, p.C
	g.cells[p.R][p.C] = u
}

// AddUnit places a fresh level-1 unit of typeID in the first free cell.
func (g *Grid) AddUnit(typeID string) (Unit, error) {
	g.mu.Lock()
	u, err := g.addLocked(typeID)
	if err != nil {
		g.mu.Unlock()
		return Unit{}, err
	}
	fire := g.notify(Event{Type: EventUnitAdded, Unit: u})
	g.mu.Unlock()

	fire()
	return u, nil
}

func (g *Grid) addLocked(typeID string) (Unit, error) {
	def, ok := g.catalog.Get(typeID)
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownType, typeID)
	}
	slot, ok := g.emptySlot()
	if !ok {
		return Unit{}, ErrGridFull
	}
	u := NewUnit(def)
	g.place(&u, slot)
	g.recalculate()
	return u, nil
}

// Purchase charges the type's cost to the wallet and adds the unit. The
// wallet sees the army as it will be with the unit placed, and the unit
// only stays if the charge succeeds. The grid stays locked throughout.
func (g *Grid) Purchase(ctx context.Context, w Wallet, typeID string) (Unit, error) {
	g.mu.Lock()
	def, ok := g.catalog.Get(typeID)
	if !ok {
		g.mu.Unlock()
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownType, typeID)
	}
	u, err := g.addLocked(typeID)
	if err != nil {
		g.mu.Unlock()
		return Unit{}, err
	}
	next := State{ArmyValue: g.value, Units: g.unitsLocked()}
	if err := w.Charge(ctx, def.Cost, next); err != nil {
		g.cells[u.R][u.C] = nil
		g.recalculate()
		g.mu.Unlock()
		return Unit{}, err
	}
	fire := g.notify(Event{Type: EventUnitAdded, Unit: u})
	g.mu.Unlock()

	log.Debug().Str("unit", u.ID).Str("type", u.Type).Int("cost", def.Cost).Msg("Unit purchased")
	fire()
	return u, nil
}

// MoveUnit relocates, merges or swaps the unit at from with whatever sits at to.
func (g *Grid) MoveUnit(from, to Position) (MoveResult, error) {
	g.mu.Lock()
	if !g.inBounds(from) || !g.inBounds(to) {
		g.mu.Unlock()
		return MoveResult{}, ErrInvalidPosition
	}
	unit := g.cells[from.R][from.C]
	if unit == nil {
		g.mu.Unlock()
		return MoveResult{}, ErrEmptyCell
	}
	if from == to {
		res := MoveResult{Kind: MoveNone, Unit: *unit}
		g.mu.Unlock()
		return res, nil
	}

	var res MoveResult
	var ev Event
	target := g.cells[to.R][to.C]
	switch {
	case target == nil:
		g.cells[from.R][from.C] = nil
		g.place(unit, to)
		res = MoveResult{Kind: MoveRelocated, Unit: *unit}
		ev = Event{Type: EventUnitMoved, Unit: *unit, From: &from}
	case target.CanMerge(*unit):
		donor := *unit
		g.mergeLocked(target, unit)
		g.cells[from.R][from.C] = nil
		res = MoveResult{Kind: MoveMerged, Unit: *target}
		ev = Event{Type: EventUnitMerged, Unit: *target, From: &from, Other: &donor}
	default:
		g.place(unit, to)
		g.place(target, from)
		displaced := *target
		res = MoveResult{Kind: MoveSwapped, Unit: *unit, Displaced: &displaced}
		ev = Event{Type: EventUnitSwapped, Unit: *unit, From: &from, Other: &displaced}
	}
	g.recalculate()
	fire := g.notify(ev)
	g.mu.Unlock()

	fire()
	return res, nil
}

// MergeUnits merges the unit at source into the unit at target. Unlike
// MoveUnit it never falls back to a relocation or swap.
func (g *Grid) MergeUnits(target, source Position) (Unit, error) {
	g.mu.Lock()
	if !g.inBounds(target) || !g.inBounds(source) || target == source {
		g.mu.Unlock()
		return Unit{}, ErrInvalidPosition
	}
	t, s := g.cells[target.R][target.C], g.cells[source.R][source.C]
	if t == nil || s == nil {
		g.mu.Unlock()
		return Unit{}, ErrEmptyCell
	}
	if !t.CanMerge(*s) {
		g.mu.Unlock()
		return Unit{}, ErrNotMergeable
	}
	donor := *s
	g.mergeLocked(t, s)
	g.cells[source.R][source.C] = nil
	g.recalculate()
	merged := *t
	fire := g.notify(Event{Type: EventUnitMerged, Unit: merged, From: &source, Other: &donor})
	g.mu.Unlock()

	fire()
	return merged, nil
}

// mergeLocked promotes target and discards source. Callers hold mu and
// must clear the source cell.
func (g *Grid) mergeLocked(target, source *Unit) {
	*target = Merged(*target)
	log.Debug().
		Str("unit", target.ID).
		Str("donor", source.ID).
		Int("level", target.Level).
		Msg("Units merged")
}

// RemoveUnit clears the cell at p.
func (g *Grid) RemoveUnit(p Position) (Unit, error) {
	g.mu.Lock()
	if !g.inBounds(p) {
		g.mu.Unlock()
		return Unit{}, ErrInvalidPosition
	}
	u := g.cells[p.R][p.C]
	if u == nil {
		g.mu.Unlock()
		return Unit{}, ErrEmptyCell
	}
	g.cells[p.R][p.C] = nil
	g.recalculate()
	removed := *u
	fire := g.notify(Event{Type: EventUnitRemoved, Unit: removed})
	g.mu.Unlock()

	fire()
	return removed, nil
}

// RemoveByID clears whichever cell holds the unit with the given id.
func (g *Grid) RemoveByID(id string) (Unit, error) {
	g.mu.Lock()
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			u := g.cells[r][c]
			if u == nil || u.ID != id {
				continue
			}
			g.cells[r][c] = nil
			g.recalculate()
			removed := *u
			fire := g.notify(Event{Type: EventUnitRemoved, Unit: removed})
			g.mu.Unlock()
			fire()
			return removed, nil
		}
	}
	g.mu.Unlock()
	return Unit{}, ErrUnitNotFound
}

// At returns a copy of the unit in cell p.
func (g *Grid) At(p Position) (Unit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inBounds(p) || g.cells[p.R][p.C] == nil {
		return Unit{}, false
	}
	return *g.cells[p.R][p.C], true
}

// Units returns copies of every resident unit in row-major order.
func (g *Grid) Units() []Unit {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unitsLocked()
}

func (g *Grid) unitsLocked() []Unit {
	var out []Unit
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			if u := g.cells[r][c]; u != nil {
				out = append(out, *u)
			}
		}
	}
	return out
}

func (g *Grid) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, row := range g.cells {
		for _, u := range row {
			if u != nil {
				n++
			}
		}
	}
	return n
}

// Value is the army value as of the last mutation.
func (g *Grid) Value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func (g *Grid) recalculate() {
	v := 0
	for _, row := range g.cells {
		for _, u := range row {
			if u != nil {
				v += u.Value()
			}
		}
	}
	g.value = v
}

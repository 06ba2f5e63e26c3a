package combat

import (
	"fmt"

	"basileus/internal/army"
	"basileus/internal/catalog"
)

// Simulation constants. One tick is one fixed step; the scheduler that
// drives Step decides how much wall time a tick takes.
const (
	AttackRange   = 1.5
	MoveStep      = 0.1
	CooldownTicks = 30
	HitFlashTicks = 6
	PushBack      = 0.05
)

// NoTarget marks a combatant that has not locked onto anyone yet.
const NoTarget = -1

type Side int

const (
	Own Side = iota
	Opposing
)

func (s Side) String() string {
	if s == Own {
		return "own"
	}
	return "opposing"
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "own":
		*s = Own
	case "opposing":
		*s = Opposing
	default:
		return fmt.Errorf("combat: unknown side %q", b)
	}
	return nil
}

type Phase int

const (
	Running Phase = iota
	Ended
)

func (p Phase) String() string {
	if p == Ended {
		return "ended"
	}
	return "running"
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*p = Running
	case "ended":
		*p = Ended
	default:
		return fmt.Errorf("combat: unknown phase %q", b)
	}
	return nil
}

// Combatant is a unit's battle-scoped copy plus its live state.
// TargetID is only a lookup key into the combatant list; a target that
// died simply stops resolving.
type Combatant struct {
	ID     int           `json:"id"`
	UnitID string        `json:"unitId"`
	Type   string        `json:"type"`
	Level  int           `json:"level"`
	Stats  catalog.Stats `json:"stats"`
	R      int           `json:"r"`
	C      int           `json:"c"`

	Side     Side    `json:"side"`
	HP       int     `json:"hp"`
	MaxHP    int     `json:"maxHp"`
	Attack   int     `json:"attack"`
	Range    float64 `json:"range"`
	Pos      Vec2    `json:"pos"`
	Facing   float64 `json:"facing"`
	Cooldown int     `json:"cooldown"`
	HitTimer int     `json:"hitTimer"`
	TargetID int     `json:"targetId"`
	Alive    bool    `json:"alive"`
}

// FromUnit builds a fresh combatant for u at pos.
func FromUnit(id int, u army.Unit, side Side, pos Vec2) Combatant {
	return Combatant{
		ID:       id,
		UnitID:   u.ID,
		Type:     u.Type,
		Level:    u.Level,
		Stats:    u.Stats,
		R:        u.R,
		C:        u.C,
		Side:     side,
		HP:       u.Stats.Health,
		MaxHP:    u.Stats.Health,
		Attack:   u.Stats.Attack,
		Range:    AttackRange,
		Pos:      pos,
		TargetID: NoTarget,
		Alive:    u.Stats.Health > 0,
	}
}

// Unit converts the combatant back into the roster entry it came from.
func (c Combatant) Unit() army.Unit {
	return army.Unit{ID: c.UnitID, Type: c.Type, Level: c.Level, Stats: c.Stats, R: c.R, C: c.C}
}

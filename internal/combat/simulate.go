package combat

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrNoAttack    = errors.New("combat: every combatant needs positive attack")
	ErrDuplicateID = errors.New("combat: duplicate combatant id")
	ErrTickLimit   = errors.New("combat: tick limit reached before the battle ended")
)

// State is a full battle snapshot. Step never mutates a State; it returns
// the next one.
type State struct {
	Tick       int         `json:"tick"`
	Phase      Phase       `json:"phase"`
	Victory    bool        `json:"victory"`
	Combatants []Combatant `json:"combatants"`
}

// NewState validates the combatants and orders them by id. Positive attack
// everywhere is what guarantees the battle ends.
func NewState(combatants []Combatant) (State, error) {
	cs := make([]Combatant, len(combatants))
	copy(cs, combatants)
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })

	for i, c := range cs {
		if c.Attack <= 0 {
			return State{}, fmt.Errorf("%w: combatant %d (%s)", ErrNoAttack, c.ID, c.Type)
		}
		if i > 0 && cs[i-1].ID == c.ID {
			return State{}, fmt.Errorf("%w: %d", ErrDuplicateID, c.ID)
		}
	}
	return State{Combatants: cs}, nil
}

func (s State) clone() State {
	next := s
	next.Combatants = make([]Combatant, len(s.Combatants))
	copy(next.Combatants, s.Combatants)
	return next
}

// Alive counts living combatants per side.
func (s State) Alive() (own, opposing int) {
	for _, c := range s.Combatants {
		if !c.Alive {
			continue
		}
		if c.Side == Own {
			own++
		} else {
			opposing++
		}
	}
	return own, opposing
}

// Find resolves a combatant id. Dead combatants do not resolve.
func (s State) Find(id int) (Combatant, bool) {
	for _, c := range s.Combatants {
		if c.ID == id && c.Alive {
			return c, true
		}
	}
	return Combatant{}, false
}

// Casualties lists own-side combatants that have died.
func (s State) Casualties() []Combatant {
	var out []Combatant
	for _, c := range s.Combatants {
		if c.Side == Own && !c.Alive {
			out = append(out, c)
		}
	}
	return out
}

// Abort ends a running battle as a defeat. An ended battle is returned as is.
func (s State) Abort() State {
	if s.Phase == Ended {
		return s
	}
	next := s.clone()
	next.Phase = Ended
	next.Victory = false
	return next
}

// Step advances the battle by one tick.
//
// Combatants act in ascending id order and damage lands immediately, so a
// combatant killed earlier in the tick does not get to act. Own-side ids
// come first, which decides mutual-kill exchanges in the own side's favour.
//
// The push-back applied after a hit changes the distances the next tick
// targets with. That coupling is intentional.
func Step(prev State) State {
	if prev.Phase == Ended {
		return prev
	}
	next := prev.clone()

	own, opposing := next.Alive()
	switch {
	case own == 0:
		next.Phase, next.Victory = Ended, false
		return next
	case opposing == 0:
		next.Phase, next.Victory = Ended, true
		return next
	}

	cs := next.Combatants
	for i := range cs {
		self := &cs[i]
		if !self.Alive {
			continue
		}
		if self.HitTimer > 0 {
			self.HitTimer--
		}

		ti := nearestEnemy(cs, i)
		if ti < 0 {
			self.TargetID = NoTarget
			continue
		}
		target := &cs[ti]
		self.TargetID = target.ID

		if self.Pos.Dist(target.Pos) <= self.Range {
			if self.Cooldown <= 0 {
				strike(self, target)
			}
			self.Cooldown--
			continue
		}

		dir := target.Pos.Sub(self.Pos).Norm()
		self.Pos = self.Pos.Add(dir.Scale(MoveStep))
		self.Facing = dir.Heading()
	}
	next.Tick++
	return next
}

func strike(attacker, target *Combatant) {
	target.HP -= attacker.Attack
	target.HitTimer = HitFlashTicks
	if target.HP <= 0 {
		target.HP = 0
		target.Alive = false
	}
	attacker.Cooldown = CooldownTicks
	away := attacker.Pos.Sub(target.Pos).Norm()
	attacker.Pos = attacker.Pos.Add(away.Scale(PushBack))
}

// nearestEnemy returns the index of the closest living opponent of cs[i],
// or -1. Equal distances go to the lowest combatant id.
func nearestEnemy(cs []Combatant, i int) int {
	self := cs[i]
	best := -1
	bestDist := math.Inf(1)
	for j, other := range cs {
		if !other.Alive || other.Side == self.Side {
			continue
		}
		d := self.Pos.Dist(other.Pos)
		if d < bestDist || (d == bestDist && best >= 0 && other.ID < cs[best].ID) {
			best, bestDist = j, d
		}
	}
	return best
}

// Run steps until the battle ends. maxTicks <= 0 means no limit.
func Run(s State, maxTicks int) (State, error) {
	for s.Phase != Ended {
		if maxTicks > 0 && s.Tick >= maxTicks {
			return s, ErrTickLimit
		}
		s = Step(s)
	}
	return s, nil
}

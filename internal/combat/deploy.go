package combat

import (
	"math"
	"math/rand"

	"basileus/internal/army"
)

// Starting zones. Own troops form up on the left of the field, the
// opposing army on the right.
const (
	zoneNear  = 8.0
	zoneFar   = 12.0
	zoneWidth = 10.0
)

// Deploy turns units into combatants scattered across side's starting
// zone. Ids are handed out from firstID upwards in slice order.
func Deploy(units []army.Unit, side Side, firstID int, rng *rand.Rand) []Combatant {
	out := make([]Combatant, 0, len(units))
	for i, u := range units {
		x := zoneNear + rng.Float64()*(zoneFar-zoneNear)
		if side == Own {
			x = -x
		}
		y := (rng.Float64()*2 - 1) * zoneWidth
		c := FromUnit(firstID+i, u, side, Vec2{X: x, Y: y})
		if side == Opposing {
			c.Facing = math.Pi
		}
		out = append(out, c)
	}
	return out
}

// Muster deploys both armies with own-side ids first and builds the
// initial state.
func Muster(own, opposing []army.Unit, rng *rand.Rand) (State, error) {
	cs := Deploy(own, Own, 0, rng)
	cs = append(cs, Deploy(opposing, Opposing, len(own), rng)...)
	return NewState(cs)
}

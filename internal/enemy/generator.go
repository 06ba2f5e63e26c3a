package enemy

import (
	"errors"
	"fmt"
	"math/rand"

	"basileus/internal/army"
	"basileus/internal/catalog"

	"github.com/rs/zerolog/log"
)

// Tolerance is how far over budget a generated army may go.
const Tolerance = 1.2

// MaxUnits caps a generated roster at one full grid.
const MaxUnits = army.DefaultSize * army.DefaultSize

var (
	ErrInvalidPower  = errors.New("enemy: power budget must be positive")
	ErrPowerTooLarge = errors.New("enemy: power budget exceeds a full roster")
)

// Generator builds opposing rosters from the unit catalog. It is not safe
// for concurrent use because it owns its random source.
type Generator struct {
	catalog *catalog.Catalog
	rng     *rand.Rand
}

func New(cat *catalog.Catalog, rng *rand.Rand) *Generator {
	return &Generator{catalog: cat, rng: rng}
}

// Generate draws random unit types until the next draw would push the
// army past power×Tolerance. At that point one baseline unit is added if
// it still fits, and generation stops. No roster grows past MaxUnits, and
// a budget that MaxUnits of the strongest type could not fill is refused.
func (g *Generator) Generate(power float64) ([]army.Unit, error) {
	if power <= 0 {
		return nil, ErrInvalidPower
	}
	limit := power * Tolerance
	if ceiling := g.MaxPower(); power > ceiling {
		return nil, fmt.Errorf("%w: %.0f > %.0f", ErrPowerTooLarge, power, ceiling)
	}
	ids := g.catalog.IDs()
	baseline := g.catalog.Baseline()

	var out []army.Unit
	total := 0
	for len(out) < MaxUnits {
		t, _ := g.catalog.Get(ids[g.rng.Intn(len(ids))])
		if float64(total+t.Power()) <= limit {
			out = append(out, army.NewUnit(t))
			total += t.Power()
			continue
		}
		if float64(total+baseline.Power()) <= limit {
			out = append(out, army.NewUnit(baseline))
			total += baseline.Power()
		}
		break
	}

	// The first draw can overshoot on its own while a cheaper type would
	// have fit. Fall back to the cheapest one so a winnable budget never
	// produces an empty army.
	if len(out) == 0 {
		if cheapest, ok := g.cheapestWithin(limit); ok {
			out = append(out, army.NewUnit(cheapest))
			total = cheapest.Power()
		}
	}

	log.Debug().
		Float64("budget", power).
		Int("power", total).
		Int("units", len(out)).
		Msg("Enemy army generated")
	return out, nil
}

// MaxPower is the largest budget Generate accepts.
func (g *Generator) MaxPower() float64 {
	strongest := 0
	for _, t := range g.catalog.Types() {
		strongest = max(strongest, t.Power())
	}
	return float64(MaxUnits*strongest) / Tolerance
}

func (g *Generator) cheapestWithin(limit float64) (catalog.UnitType, bool) {
	var best catalog.UnitType
	found := false
	for _, t := range g.catalog.Types() {
		if float64(t.Power()) > limit {
			continue
		}
		if !found || t.Power() < best.Power() {
			best, found = t, true
		}
	}
	return best, found
}

// Power sums the level-1 power of units.
func Power(units []army.Unit) int {
	total := 0
	for _, u := range units {
		total += u.Power()
	}
	return total
}

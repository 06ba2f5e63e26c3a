package army

import (
	"fmt"

	"basileus/internal/catalog"

	"github.com/google/uuid"
)

// MergeMultiplier scales attack and health each time two units merge.
const MergeMultiplier = 1.5

// Position addresses one grid cell.
type Position struct {
	R int `json:"r"`
	C int `json:"c"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.R, p.C) }

// Unit is a soldier in the player's roster. R and C mirror the cell that
// holds it while it lives in a grid.
type Unit struct {
	ID    string        `json:"id"`
	Type  string        `json:"type"`
	Level int           `json:"level"`
	Stats catalog.Stats `json:"stats"`
	R     int           `json:"r"`
	C     int           `json:"c"`
}

// NewUnit creates a level-1 unit with the type's base stats.
func NewUnit(t catalog.UnitType) Unit {
	return Unit{
		ID:    uuid.NewString(),
		Type:  t.ID,
		Level: 1,
		Stats: t.Stats,
	}
}

func (u Unit) Position() Position { return Position{R: u.R, C: u.C} }

// Value is the unit's contribution to the army value.
func (u Unit) Value() int { return (u.Stats.Attack + u.Stats.Health) * u.Level }

// Power is the unscaled strength score used for enemy budgets.
func (u Unit) Power() int { return u.Stats.Attack + u.Stats.Health }

// CanMerge reports whether two units may be combined.
func (u Unit) CanMerge(other Unit) bool {
	return u.Type == other.Type && u.Level == other.Level
}

// Merged returns target promoted by one level. The donor is not touched.
func Merged(target Unit) Unit {
	target.Level++
	target.Stats.Attack = int(float64(target.Stats.Attack) * MergeMultiplier)
	target.Stats.Health = int(float64(target.Stats.Health) * MergeMultiplier)
	return target
}

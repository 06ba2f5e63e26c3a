package enemy

import (
	"math/rand"
	"testing"

	"basileus/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Bounds(t *testing.T) {
	cat := catalog.Default()
	baseline := cat.Baseline().Power()

	for seed := int64(1); seed <= 200; seed++ {
		gen := New(cat, rand.New(rand.NewSource(seed)))
		for _, p := range []float64{50, 80, 120, 300, 800, 2000} {
			units, err := gen.Generate(p)
			require.NoError(t, err)
			require.NotEmpty(t, units, "seed %d power %.0f", seed, p)

			total := Power(units)
			assert.LessOrEqual(t, float64(total), p*Tolerance+float64(baseline),
				"seed %d power %.0f", seed, p)
			for _, u := range units {
				assert.Equal(t, 1, u.Level)
				assert.NotEmpty(t, u.ID)
				_, ok := cat.Get(u.Type)
				assert.True(t, ok)
			}
		}
	}
}

func TestGenerate_FirstDrawTooBig(t *testing.T) {
	cat, err := catalog.New("scout", []catalog.UnitType{
		{ID: "scout", Stats: catalog.Stats{Attack: 1, Health: 9}},
		{ID: "giant", Stats: catalog.Stats{Attack: 100, Health: 900}},
	})
	require.NoError(t, err)

	for seed := int64(1); seed <= 50; seed++ {
		units, err := New(cat, rand.New(rand.NewSource(seed))).Generate(10)
		require.NoError(t, err)
		require.NotEmpty(t, units)
		for _, u := range units {
			assert.Equal(t, "scout", u.Type)
		}
	}
}

func TestGenerate_NothingFits(t *testing.T) {
	cat, err := catalog.New("ogre", []catalog.UnitType{
		{ID: "ogre", Stats: catalog.Stats{Attack: 50, Health: 500}},
	})
	require.NoError(t, err)

	units, err := New(cat, rand.New(rand.NewSource(1))).Generate(10)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestGenerate_InvalidPower(t *testing.T) {
	gen := New(catalog.Default(), rand.New(rand.NewSource(1)))
	for _, p := range []float64{0, -5} {
		_, err := gen.Generate(p)
		assert.ErrorIs(t, err, ErrInvalidPower)
	}
}

func TestGenerate_Varies(t *testing.T) {
	gen := New(catalog.Default(), rand.New(rand.NewSource(7)))
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		units, err := gen.Generate(500)
		require.NoError(t, err)
		key := ""
		for _, u := range units {
			key += u.Type + ","
		}
		seen[key] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestGenerate_RosterCapped(t *testing.T) {
	gen := New(catalog.Default(), rand.New(rand.NewSource(3)))
	ceiling := gen.MaxPower()
	assert.InDelta(t, 25*180/Tolerance, ceiling, 1e-9)

	for i := 0; i < 20; i++ {
		units, err := gen.Generate(ceiling)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(units), MaxUnits)
	}

	for _, p := range []float64{ceiling + 1, 1e6} {
		_, err := gen.Generate(p)
		assert.ErrorIs(t, err, ErrPowerTooLarge)
	}
}

func TestGenerate_CheapTypesStopAtFullRoster(t *testing.T) {
	cat, err := catalog.New("scout", []catalog.UnitType{
		{ID: "scout", Stats: catalog.Stats{Attack: 1, Health: 9}},
		{ID: "giant", Stats: catalog.Stats{Attack: 100, Health: 900}},
	})
	require.NoError(t, err)

	for seed := int64(1); seed <= 20; seed++ {
		units, err := New(cat, rand.New(rand.NewSource(seed))).Generate(20000)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(units), MaxUnits)
	}
}

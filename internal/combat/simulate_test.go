package combat

import (
	"encoding/json"
	"math/rand"
	"testing"

	"basileus/internal/army"
	"basileus/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soldier(id string) army.Unit {
	return army.Unit{ID: id, Type: "soldier", Level: 1, Stats: catalog.Stats{Attack: 10, Health: 50, Speed: 5}}
}

func TestStep_DuelWithinRange(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("mine"), Own, Vec2{X: 0}),
		FromUnit(1, soldier("theirs"), Opposing, Vec2{X: 1}),
	})
	require.NoError(t, err)

	exchanges := map[Side]int{}
	for st.Phase != Ended {
		before := st
		st = Step(st)
		require.Less(t, st.Tick, 1000, "duel must finish")
		for i, c := range st.Combatants {
			if c.Cooldown == CooldownTicks-1 && before.Combatants[i].Cooldown <= 0 {
				exchanges[c.Side]++
			}
		}
	}

	assert.True(t, st.Victory, "own side strikes first in a mutual-kill exchange")
	assert.LessOrEqual(t, exchanges[Own], 5)
	assert.LessOrEqual(t, exchanges[Opposing], 5)
	assert.Equal(t, 5, exchanges[Own])
	assert.Equal(t, 4, exchanges[Opposing])

	mine, ok := st.Find(0)
	require.True(t, ok)
	assert.Equal(t, 10, mine.HP)
	_, ok = st.Find(1)
	assert.False(t, ok, "dead combatants do not resolve")
	assert.Empty(t, st.Casualties())
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{X: 0}),
		FromUnit(1, soldier("b"), Opposing, Vec2{X: 1}),
	})
	require.NoError(t, err)

	next := Step(st)
	assert.Equal(t, 0, st.Tick)
	assert.Equal(t, 50, st.Combatants[1].HP)
	assert.Equal(t, 0, st.Combatants[0].Cooldown)
	assert.Equal(t, 1, next.Tick)
	assert.Equal(t, 40, next.Combatants[1].HP)
}

func TestStep_AttackSideEffects(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{X: 0}),
		FromUnit(1, soldier("b"), Opposing, Vec2{X: 1}),
	})
	require.NoError(t, err)

	st = Step(st)
	a, b := st.Combatants[0], st.Combatants[1]
	assert.Equal(t, CooldownTicks-1, a.Cooldown)
	assert.Equal(t, 1, a.TargetID)
	assert.Equal(t, 0, b.TargetID)
	assert.InDelta(t, -PushBack, a.Pos.X, 1e-9, "attacker is pushed away from its target")
	assert.InDelta(t, 1+PushBack, b.Pos.X, 1e-9)
	assert.Equal(t, HitFlashTicks, a.HitTimer)
	assert.Equal(t, HitFlashTicks-1, b.HitTimer, "b ticks its own timer down before acting")

	st = Step(st)
	assert.Equal(t, HitFlashTicks-1, st.Combatants[0].HitTimer)
	assert.Equal(t, CooldownTicks-2, st.Combatants[0].Cooldown)
}

func TestStep_MovesTowardTarget(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{X: 0, Y: 0}),
		FromUnit(1, soldier("b"), Opposing, Vec2{X: 0, Y: 10}),
	})
	require.NoError(t, err)

	st = Step(st)
	a, b := st.Combatants[0], st.Combatants[1]
	assert.InDelta(t, MoveStep, a.Pos.Y, 1e-9)
	assert.InDelta(t, 10-MoveStep, b.Pos.Y, 1e-9)
	assert.InDelta(t, Vec2{Y: 1}.Heading(), a.Facing, 1e-9)
	assert.InDelta(t, Vec2{Y: -1}.Heading(), b.Facing, 1e-9)
	assert.Equal(t, 50, a.HP)
	assert.Equal(t, 0, a.Cooldown, "cooldown only runs while in range")
}

func TestNearestEnemy_TieBreakLowestID(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{}),
		FromUnit(7, soldier("far"), Opposing, Vec2{X: 5}),
		FromUnit(4, soldier("left"), Opposing, Vec2{X: -3}),
		FromUnit(2, soldier("right"), Opposing, Vec2{X: 3}),
		FromUnit(1, soldier("ally"), Own, Vec2{X: 0.5}),
	})
	require.NoError(t, err)

	idx := nearestEnemy(st.Combatants, 0)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 2, st.Combatants[idx].ID)

	// Reversed input order must not change the pick.
	rev := make([]Combatant, len(st.Combatants))
	for i, c := range st.Combatants {
		rev[len(rev)-1-i] = c
	}
	self := -1
	for i, c := range rev {
		if c.ID == 0 {
			self = i
		}
	}
	assert.Equal(t, 2, rev[nearestEnemy(rev, self)].ID)
}

func TestNearestEnemy_SkipsDeadAndAllies(t *testing.T) {
	dead := FromUnit(1, soldier("dead"), Opposing, Vec2{X: 1})
	dead.Alive = false
	cs := []Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{}),
		dead,
		FromUnit(2, soldier("ally"), Own, Vec2{X: 0.1}),
		FromUnit(3, soldier("live"), Opposing, Vec2{X: 9}),
	}
	assert.Equal(t, 3, nearestEnemy(cs, 0))

	cs[3].Alive = false
	assert.Equal(t, -1, nearestEnemy(cs, 0))
}

func TestStep_TerminalChecks(t *testing.T) {
	t.Run("no opposing survivors is a victory", func(t *testing.T) {
		st, err := NewState([]Combatant{FromUnit(0, soldier("a"), Own, Vec2{})})
		require.NoError(t, err)
		st = Step(st)
		assert.Equal(t, Ended, st.Phase)
		assert.True(t, st.Victory)
		assert.Equal(t, 0, st.Tick)
	})

	t.Run("no own survivors is a defeat", func(t *testing.T) {
		st, err := NewState([]Combatant{FromUnit(0, soldier("b"), Opposing, Vec2{})})
		require.NoError(t, err)
		st = Step(st)
		assert.Equal(t, Ended, st.Phase)
		assert.False(t, st.Victory)
	})

	t.Run("both sides empty resolves to defeat", func(t *testing.T) {
		st, err := NewState(nil)
		require.NoError(t, err)
		st = Step(st)
		assert.Equal(t, Ended, st.Phase)
		assert.False(t, st.Victory)
	})

	t.Run("ended state is stable", func(t *testing.T) {
		st, _ := NewState(nil)
		st = Step(st)
		assert.Equal(t, st, Step(st))
	})
}

func TestNewState_Validation(t *testing.T) {
	weak := soldier("weak")
	weak.Stats.Attack = 0
	_, err := NewState([]Combatant{FromUnit(0, weak, Own, Vec2{})})
	assert.ErrorIs(t, err, ErrNoAttack)

	_, err = NewState([]Combatant{
		FromUnit(3, soldier("a"), Own, Vec2{}),
		FromUnit(3, soldier("b"), Opposing, Vec2{}),
	})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestAbort(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{X: 0}),
		FromUnit(1, soldier("b"), Opposing, Vec2{X: 20}),
	})
	require.NoError(t, err)
	st = Step(st)

	aborted := st.Abort()
	assert.Equal(t, Ended, aborted.Phase)
	assert.False(t, aborted.Victory)
	assert.Equal(t, Running, st.Phase)

	won := State{Phase: Ended, Victory: true}
	assert.True(t, won.Abort().Victory, "a finished battle keeps its outcome")
}

func TestRun_Terminates(t *testing.T) {
	cat := catalog.Default()
	types := cat.Types()
	for seed := int64(1); seed <= 30; seed++ {
		rng := rand.New(rand.NewSource(seed))
		roster := func() []army.Unit {
			n := 1 + rng.Intn(25)
			out := make([]army.Unit, 0, n)
			for i := 0; i < n; i++ {
				out = append(out, army.NewUnit(types[rng.Intn(len(types))]))
			}
			return out
		}
		own, opp := roster(), roster()

		st, err := Muster(own, opp, rng)
		require.NoError(t, err)
		final, err := Run(st, 100000)
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, Ended, final.Phase)

		o, p := final.Alive()
		if final.Victory {
			assert.Greater(t, o, 0)
			assert.Equal(t, 0, p)
		} else {
			assert.Equal(t, 0, o)
		}
		for _, c := range final.Casualties() {
			assert.Equal(t, Own, c.Side)
			assert.Equal(t, 0, c.HP)
		}
	}
}

func TestRun_TickLimit(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{X: -100}),
		FromUnit(1, soldier("b"), Opposing, Vec2{X: 100}),
	})
	require.NoError(t, err)

	st, err = Run(st, 10)
	assert.ErrorIs(t, err, ErrTickLimit)
	assert.Equal(t, 10, st.Tick)
}

func TestRun_Deterministic(t *testing.T) {
	own := []army.Unit{soldier("a"), soldier("b"), soldier("c")}
	opp := []army.Unit{soldier("x"), soldier("y")}

	s1, err := Muster(own, opp, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	s2, err := Muster(own, opp, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	r1, err := Run(s1, 0)
	require.NoError(t, err)
	r2, err := Run(s2, 0)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestDeploy_Zones(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	units := []army.Unit{soldier("a"), soldier("b"), soldier("c")}
	units[1].R, units[1].C = 2, 4

	own := Deploy(units, Own, 0, rng)
	opp := Deploy(units, Opposing, 3, rng)

	for i, c := range own {
		assert.Equal(t, i, c.ID)
		assert.True(t, c.Pos.X <= -zoneNear && c.Pos.X >= -zoneFar)
		assert.True(t, c.Pos.Y >= -zoneWidth && c.Pos.Y <= zoneWidth)
		assert.Equal(t, c.MaxHP, c.HP)
		assert.Equal(t, NoTarget, c.TargetID)
	}
	for i, c := range opp {
		assert.Equal(t, 3+i, c.ID)
		assert.True(t, c.Pos.X >= zoneNear && c.Pos.X <= zoneFar)
	}
	assert.Equal(t, units[1], own[1].Unit())
}

func TestState_JSONSnapshot(t *testing.T) {
	st, err := NewState([]Combatant{
		FromUnit(0, soldier("a"), Own, Vec2{X: -9}),
		FromUnit(1, soldier("b"), Opposing, Vec2{X: 9}),
	})
	require.NoError(t, err)
	st = Step(st)

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"phase":"running"`)
	assert.Contains(t, string(raw), `"side":"opposing"`)

	var back State
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, st, back)

	var p Phase
	assert.Error(t, p.UnmarshalText([]byte("paused")))
}

package battle

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"basileus/internal/army"
	"basileus/internal/catalog"
	"basileus/internal/combat"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultTickRate = 30

var ErrEmptySide = errors.New("battle: both sides need at least one unit")

// DeadUnit identifies a fallen own-side unit so the roster can drop it.
type DeadUnit struct {
	ID    string        `json:"id"`
	R     int           `json:"r"`
	C     int           `json:"c"`
	Type  string        `json:"type"`
	Level int           `json:"level"`
	Stats catalog.Stats `json:"stats"`
}

// Result is the outcome of one battle.
type Result struct {
	BattleID  string     `json:"battleId"`
	IsVictory bool       `json:"isVictory"`
	DeadUnits []DeadUnit `json:"deadUnits"`
	Ticks     int        `json:"ticks"`
	Retreated bool       `json:"retreated,omitempty"`
}

// Observer receives per-tick snapshots of running battles. Battles do not
// depend on an observer being attached.
type Observer interface {
	Tick(battleID string, st combat.State)
}

// Observers fans snapshots out to several observers.
type Observers []Observer

func (obs Observers) Tick(battleID string, st combat.State) {
	for _, o := range obs {
		o.Tick(battleID, st)
	}
}

type Config struct {
	// TickRate is simulation ticks per second for scheduled battles.
	TickRate int
	// MaxTicks ends a battle as a defeat once reached. Zero means no limit.
	MaxTicks int
}

// Orchestrator deploys both armies and drives the simulator to the end.
type Orchestrator struct {
	cfg      Config
	observer Observer

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg Config, rng *rand.Rand, obs Observer) *Orchestrator {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	return &Orchestrator{cfg: cfg, rng: rng, observer: obs}
}

func (o *Orchestrator) prepare(own, opposing []army.Unit) (combat.State, error) {
	if len(own) == 0 || len(opposing) == 0 {
		return combat.State{}, ErrEmptySide
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return combat.Muster(own, opposing, o.rng)
}

// Resolve runs a battle to completion without pacing it in real time.
func (o *Orchestrator) Resolve(own, opposing []army.Unit) (Result, error) {
	st, err := o.prepare(own, opposing)
	if err != nil {
		return Result{}, err
	}
	id := uuid.NewString()
	final, err := combat.Run(st, o.cfg.MaxTicks)
	if errors.Is(err, combat.ErrTickLimit) {
		log.Warn().Str("battle", id).Int("ticks", final.Tick).Msg("Battle hit tick limit, counting as defeat")
		final = final.Abort()
	}
	res := resultFrom(id, final, false)
	logResult(res)
	return res, nil
}

// Start launches a battle paced by a ticker at the configured tick rate.
// onDone is called exactly once, from the battle goroutine, when the
// battle ends, is retreated, or ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context, own, opposing []army.Unit, onDone func(Result)) (*Session, error) {
	st, err := o.prepare(own, opposing)
	if err != nil {
		return nil, err
	}
	s := newSession(uuid.NewString())
	log.Info().
		Str("battle", s.ID).
		Int("own", len(own)).
		Int("opposing", len(opposing)).
		Msg("Battle started")

	go o.loop(ctx, s, st, onDone)
	return s, nil
}

func (o *Orchestrator) loop(ctx context.Context, s *Session, st combat.State, onDone func(Result)) {
	ticker := time.NewTicker(time.Second / time.Duration(o.cfg.TickRate))
	defer ticker.Stop()

	retreated := false
	for st.Phase != combat.Ended {
		select {
		case <-ctx.Done():
			st, retreated = st.Abort(), true
		case <-s.retreat:
			st, retreated = st.Abort(), true
		case <-ticker.C:
			st = combat.Step(st)
			if o.cfg.MaxTicks > 0 && st.Tick >= o.cfg.MaxTicks && st.Phase != combat.Ended {
				log.Warn().Str("battle", s.ID).Int("ticks", st.Tick).Msg("Battle hit tick limit, counting as defeat")
				st = st.Abort()
			}
			if o.observer != nil {
				o.observer.Tick(s.ID, st)
			}
		}
	}

	res := resultFrom(s.ID, st, retreated)
	logResult(res)
	s.finish(res, onDone)
}

func resultFrom(id string, st combat.State, retreated bool) Result {
	res := Result{
		BattleID:  id,
		IsVictory: st.Victory,
		DeadUnits: []DeadUnit{},
		Ticks:     st.Tick,
		Retreated: retreated,
	}
	for _, c := range st.Casualties() {
		u := c.Unit()
		res.DeadUnits = append(res.DeadUnits, DeadUnit{
			ID: u.ID, R: u.R, C: u.C, Type: u.Type, Level: u.Level, Stats: u.Stats,
		})
	}
	return res
}

func logResult(res Result) {
	log.Info().
		Str("battle", res.BattleID).
		Bool("victory", res.IsVictory).
		Bool("retreated", res.Retreated).
		Int("dead", len(res.DeadUnits)).
		Int("ticks", res.Ticks).
		Msg("Battle ended")
}

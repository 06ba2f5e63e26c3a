package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"basileus/internal/army"
	"basileus/internal/battle"
	"basileus/internal/catalog"
	"basileus/internal/data"
	"basileus/internal/enemy"

	"github.com/rs/zerolog/log"
)

var (
	ErrBattleInProgress = errors.New("campaign: a battle is already in progress")
	ErrNoBattle         = errors.New("campaign: no battle in progress")
	ErrUnknownQuest     = errors.New("campaign: unknown quest")
	ErrQuestCompleted   = errors.New("campaign: quest already completed")
)

const persistTimeout = 5 * time.Second

// Store is the persistence the campaign needs. data.Store and
// data.MemoryStore both satisfy it.
type Store interface {
	CreatePlayer(ctx context.Context, name string, solidi int) (data.Player, error)
	GetPlayer(ctx context.Context, id string) (data.Player, error)
	Purchase(ctx context.Context, playerID string, cost int, next army.State) error
	SaveArmy(ctx context.Context, playerID string, st army.State) error
	LoadArmy(ctx context.Context, playerID string) (army.State, bool, error)
	RecordBattle(ctx context.Context, rec data.BattleRecord) error
	Battles(ctx context.Context, playerID string, limit int) ([]data.BattleRecord, error)
	ClaimQuest(ctx context.Context, playerID, questID string, reward map[string]int) (bool, error)
	CompletedQuests(ctx context.Context, playerID string) ([]string, error)
}

// Notifier is told about changes worth pushing to connected clients.
type Notifier interface {
	GridChanged(playerID string, ev army.Event)
	BattleStarted(playerID, battleID string)
	BattleFinished(playerID string, out Outcome)
}

type nopNotifier struct{}

func (nopNotifier) GridChanged(string, army.Event) {}
func (nopNotifier) BattleStarted(string, string) {}
func (nopNotifier) BattleFinished(string, Outcome) {}

// Outcome is a battle result after the campaign has applied it.
type Outcome struct {
	battle.Result
	QuestID string         `json:"questId,omitempty"`
	Rewards map[string]int `json:"rewards,omitempty"`
	// Unsaved is set when the army after casualties could not be stored.
	// The live grid is still correct, the stored copy is stale until the
	// next successful save.
	Unsaved bool `json:"unsaved,omitempty"`
}

type Config struct {
	GridSize       int
	StartingSolidi int
}

type Deps struct {
	Store     Store
	Catalog   *catalog.Catalog
	Quests    *QuestBook
	Generator *enemy.Generator
	Battles   *battle.Orchestrator
	Notifier  Notifier
}

// Manager owns one Service per player, created on first use.
type Manager struct {
	ctx      context.Context
	cfg      Config
	store    Store
	catalog  *catalog.Catalog
	quests   *QuestBook
	battles  *battle.Orchestrator
	notifier Notifier

	genMu sync.Mutex
	gen   *enemy.Generator

	mu      sync.Mutex
	players map[string]*Service
}

// NewManager builds the manager. Battles run until they end or ctx is done.
func NewManager(ctx context.Context, cfg Config, d Deps) *Manager {
	if cfg.GridSize <= 0 {
		cfg.GridSize = army.DefaultSize
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	return &Manager{
		ctx:      ctx,
		cfg:      cfg,
		store:    d.Store,
		catalog:  d.Catalog,
		quests:   d.Quests,
		battles:  d.Battles,
		notifier: d.Notifier,
		gen:      d.Generator,
		players:  make(map[string]*Service),
	}
}

func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

func (m *Manager) Quests() *QuestBook { return m.quests }

// Register creates a player with the starting balance and an empty army.
func (m *Manager) Register(ctx context.Context, name string) (data.Player, *Service, error) {
	p, err := m.store.CreatePlayer(ctx, name, m.cfg.StartingSolidi)
	if err != nil {
		return data.Player{}, nil, err
	}
	s := m.newService(p.ID, army.NewGrid(m.cfg.GridSize, m.catalog))
	if err := m.store.SaveArmy(ctx, p.ID, s.grid.Export()); err != nil {
		return data.Player{}, nil, fmt.Errorf("persist army: %w", err)
	}

	m.mu.Lock()
	m.players[p.ID] = s
	m.mu.Unlock()

	log.Info().Str("player", p.ID).Str("name", name).Int("solidi", p.Solidi).Msg("Player registered")
	return p, s, nil
}

// Player returns the service for an existing player, loading the stored
// army the first time.
func (m *Manager) Player(ctx context.Context, id string) (*Service, error) {
	m.mu.Lock()
	s, ok := m.players[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	if _, err := m.store.GetPlayer(ctx, id); err != nil {
		return nil, err
	}
	grid := army.NewGrid(m.cfg.GridSize, m.catalog)
	st, found, err := m.store.LoadArmy(ctx, id)
	if err != nil {
		return nil, err
	}
	if found {
		grid.Import(st)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.players[id]; ok {
		return s, nil
	}
	s = m.newService(id, grid)
	m.players[id] = s
	return s, nil
}

func (m *Manager) newService(playerID string, grid *army.Grid) *Service {
	s := &Service{m: m, playerID: playerID, grid: grid}
	grid.Subscribe(func(ev army.Event) { m.notifier.GridChanged(playerID, ev) })
	return s
}

func (m *Manager) generate(power float64) ([]army.Unit, error) {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	return m.gen.Generate(power)
}

// wallet binds the ledger to one player for army purchases.
type wallet struct {
	store    Store
	playerID string
}

func (w wallet) Charge(ctx context.Context, amount int, next army.State) error {
	return w.store.Purchase(ctx, w.playerID, amount, next)
}

// Service is one player's campaign: their army, their battles and their
// quest progress. Operations on a Service are serialized. The roster is
// locked while a battle is running.
type Service struct {
	m        *Manager
	playerID string
	grid     *army.Grid

	mu      sync.Mutex
	session *battle.Session
}

func (s *Service) PlayerID() string { return s.playerID }

func (s *Service) Army() army.State { return s.grid.Export() }

func (s *Service) Profile(ctx context.Context) (data.Player, error) {
	return s.m.store.GetPlayer(ctx, s.playerID)
}

// ActiveBattle returns the id of the running battle, if any.
func (s *Service) ActiveBattle() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return "", false
	}
	return s.session.ID, true
}

func (s *Service) BuyUnit(ctx context.Context, typeID string) (army.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return army.Unit{}, ErrBattleInProgress
	}
	return s.grid.Purchase(ctx, wallet{store: s.m.store, playerID: s.playerID}, typeID)
}

func (s *Service) MoveUnit(ctx context.Context, from, to army.Position) (army.MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return army.MoveResult{}, ErrBattleInProgress
	}
	res, err := s.grid.MoveUnit(from, to)
	if err != nil || res.Kind == army.MoveNone {
		return res, err
	}
	return res, s.persist(ctx)
}

func (s *Service) RemoveUnit(ctx context.Context, p army.Position) (army.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return army.Unit{}, ErrBattleInProgress
	}
	u, err := s.grid.RemoveUnit(p)
	if err != nil {
		return army.Unit{}, err
	}
	return u, s.persist(ctx)
}

func (s *Service) persist(ctx context.Context) error {
	if err := s.m.store.SaveArmy(ctx, s.playerID, s.grid.Export()); err != nil {
		log.Error().Err(err).Str("player", s.playerID).Msg("Failed to persist army")
		return fmt.Errorf("persist army: %w", err)
	}
	return nil
}

// QuestStatus is a quest plus whether this player has beaten it.
type QuestStatus struct {
	Quest
	Completed bool `json:"completed"`
}

func (s *Service) Quests(ctx context.Context) ([]QuestStatus, error) {
	done, err := s.m.store.CompletedQuests(ctx, s.playerID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(done))
	for _, id := range done {
		completed[id] = true
	}
	list := s.m.quests.List()
	out := make([]QuestStatus, 0, len(list))
	for _, q := range list {
		out = append(out, QuestStatus{Quest: q, Completed: completed[q.ID]})
	}
	return out, nil
}

// History lists the player's most recent battles, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]data.BattleRecord, error) {
	return s.m.store.Battles(ctx, s.playerID, limit)
}

// StartBattle fights a generated army of the given power. There is no
// reward beyond survival.
func (s *Service) StartBattle(ctx context.Context, power float64, onDone func(Outcome)) (string, error) {
	return s.start(ctx, power, "", onDone)
}

// StartQuestBattle fights the quest's enemy. Winning pays the quest reward
// once and marks the quest completed.
func (s *Service) StartQuestBattle(ctx context.Context, questID string, onDone func(Outcome)) (string, error) {
	q, ok := s.m.quests.Get(questID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownQuest, questID)
	}
	log.Info().Str("player", s.playerID).Str("quest", q.ID).Str("enemy", q.Enemy).Msg("Quest battle requested")
	return s.start(ctx, q.Power, q.ID, onDone)
}

func (s *Service) completed(ctx context.Context, questID string) (bool, error) {
	done, err := s.m.store.CompletedQuests(ctx, s.playerID)
	if err != nil {
		return false, err
	}
	for _, id := range done {
		if id == questID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) start(ctx context.Context, power float64, questID string, onDone func(Outcome)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return "", ErrBattleInProgress
	}
	if questID != "" {
		done, err := s.completed(ctx, questID)
		if err != nil {
			return "", err
		}
		if done {
			return "", fmt.Errorf("%w: %s", ErrQuestCompleted, questID)
		}
	}

	own := s.grid.Units()
	if len(own) == 0 {
		return "", battle.ErrEmptySide
	}
	opposing, err := s.m.generate(power)
	if err != nil {
		return "", err
	}

	// finish takes s.mu, so it cannot run before session is recorded.
	sess, err := s.m.battles.Start(s.m.ctx, own, opposing, func(res battle.Result) {
		s.finish(res, power, questID, onDone)
	})
	if err != nil {
		return "", err
	}
	s.session = sess
	s.m.notifier.BattleStarted(s.playerID, sess.ID)
	return sess.ID, nil
}

// Retreat abandons the running battle. It resolves as a defeat.
func (s *Service) Retreat() error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return ErrNoBattle
	}
	sess.Retreat()
	return nil
}

func (s *Service) finish(res battle.Result, power float64, questID string, onDone func(Outcome)) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	s.mu.Lock()
	out := Outcome{Result: res, QuestID: questID}
	for _, d := range res.DeadUnits {
		if _, err := s.grid.RemoveByID(d.ID); err != nil {
			log.Warn().Err(err).Str("player", s.playerID).Str("unit", d.ID).Msg("Dead unit not on grid")
		}
	}
	if res.IsVictory && questID != "" {
		out.Rewards = s.claim(ctx, questID)
	}
	out.Unsaved = s.persist(ctx) != nil
	rec := data.BattleRecord{
		ID:        res.BattleID,
		PlayerID:  s.playerID,
		QuestID:   questID,
		Power:     power,
		Victory:   res.IsVictory,
		Retreated: res.Retreated,
		Dead:      len(res.DeadUnits),
		Ticks:     res.Ticks,
	}
	if err := s.m.store.RecordBattle(ctx, rec); err != nil {
		log.Error().Err(err).Str("battle", res.BattleID).Msg("Failed to record battle")
	}
	s.session = nil
	s.mu.Unlock()

	s.m.notifier.BattleFinished(s.playerID, out)
	if onDone != nil {
		onDone(out)
	}
}

// claim marks the quest done and pays its reward in one store call. If
// that fails nothing is paid and the quest stays open for another try.
func (s *Service) claim(ctx context.Context, questID string) map[string]int {
	q, ok := s.m.quests.Get(questID)
	if !ok {
		return nil
	}
	fresh, err := s.m.store.ClaimQuest(ctx, s.playerID, questID, q.Reward)
	if err != nil {
		log.Error().Err(err).Str("player", s.playerID).Str("quest", questID).Msg("Failed to claim quest reward")
		return nil
	}
	if !fresh {
		return nil
	}

	paid := make(map[string]int, len(q.Reward))
	for r, amt := range q.Reward {
		if amt > 0 {
			paid[r] = amt
		}
	}
	log.Info().Str("player", s.playerID).Str("quest", questID).Interface("reward", paid).Msg("Quest completed")
	return paid
}

// Notifiers fans every notification out to each member in order.
type Notifiers []Notifier

func (ns Notifiers) GridChanged(playerID string, ev army.Event) {
	for _, n := range ns {
		n.GridChanged(playerID, ev)
	}
}

func (ns Notifiers) BattleStarted(playerID, battleID string) {
	for _, n := range ns {
		n.BattleStarted(playerID, battleID)
	}
}

func (ns Notifiers) BattleFinished(playerID string, out Outcome) {
	for _, n := range ns {
		n.BattleFinished(playerID, out)
	}
}

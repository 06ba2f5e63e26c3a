package data

import (
	"context"
	"sort"
	"sync"
	"time"

	"basileus/internal/army"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. It backs local runs without a
// database and the tests.
type MemoryStore struct {
	mu      sync.Mutex
	players map[string]*Player
	armies  map[string]army.State
	battles map[string][]BattleRecord
	quests  map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]*Player),
		armies:  make(map[string]army.State),
		battles: make(map[string][]BattleRecord),
		quests:  make(map[string][]string),
	}
}

func (m *MemoryStore) CreatePlayer(_ context.Context, name string, solidi int) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		Solidi:    solidi,
		Resources: map[string]int{},
		CreatedAt: time.Now().UTC(),
	}
	m.players[p.ID] = p
	return copyPlayer(p), nil
}

func (m *MemoryStore) GetPlayer(_ context.Context, id string) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	return copyPlayer(p), nil
}

func copyPlayer(p *Player) Player {
	out := *p
	out.Resources = make(map[string]int, len(p.Resources))
	for k, v := range p.Resources {
		out.Resources[k] = v
	}
	return out
}

// Purchase debits cost and replaces the stored army under one lock.
func (m *MemoryStore) Purchase(_ context.Context, playerID string, cost int, next army.State) error {
	if cost < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if p.Solidi < cost {
		return ErrInsufficientFunds
	}
	p.Solidi -= cost
	m.armies[playerID] = copyState(next)
	return nil
}

func copyState(st army.State) army.State {
	units := make([]army.Unit, len(st.Units))
	copy(units, st.Units)
	return army.State{ArmyValue: st.ArmyValue, Units: units}
}

func (m *MemoryStore) SaveArmy(_ context.Context, playerID string, st army.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[playerID]; !ok {
		return ErrPlayerNotFound
	}
	m.armies[playerID] = copyState(st)
	return nil
}

func (m *MemoryStore) LoadArmy(_ context.Context, playerID string) (army.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.armies[playerID]
	if !ok {
		return army.State{}, false, nil
	}
	return copyState(st), true, nil
}

func (m *MemoryStore) RecordBattle(_ context.Context, rec BattleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[rec.PlayerID]; !ok {
		return ErrPlayerNotFound
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	m.battles[rec.PlayerID] = append(m.battles[rec.PlayerID], rec)
	return nil
}

func (m *MemoryStore) Battles(_ context.Context, playerID string, limit int) ([]BattleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.battles[playerID]
	out := make([]BattleRecord, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

// ClaimQuest marks the quest done and pays reward under one lock.
func (m *MemoryStore) ClaimQuest(_ context.Context, playerID, questID string, reward map[string]int) (bool, error) {
	if err := validReward(reward); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return false, ErrPlayerNotFound
	}
	for _, id := range m.quests[playerID] {
		if id == questID {
			return false, nil
		}
	}
	m.quests[playerID] = append(m.quests[playerID], questID)
	for _, r := range rewardOrder(reward) {
		if r == Solidi {
			p.Solidi += reward[r]
		} else {
			p.Resources[r] += reward[r]
		}
	}
	return true, nil
}

func (m *MemoryStore) CompletedQuests(_ context.Context, playerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.quests[playerID]))
	copy(out, m.quests[playerID])
	return out, nil
}

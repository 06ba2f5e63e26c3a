package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"basileus/internal/army"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

var (
	ErrInsufficientFunds = errors.New("data: insufficient funds")
	ErrPlayerNotFound    = errors.New("data: player not found")
	ErrInvalidAmount     = errors.New("data: amount must be positive")
)

// Solidi is the currency units are bought with.
const Solidi = "solidi"

// Player is the public-facing player payload.
type Player struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Solidi    int            `json:"solidi"`
	Resources map[string]int `json:"resources"`
	CreatedAt time.Time      `json:"createdAt"`
}

// BattleRecord is one finished battle in a player's history.
type BattleRecord struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	QuestID   string    `json:"questId,omitempty"`
	Power     float64   `json:"power"`
	Victory   bool      `json:"victory"`
	Retreated bool      `json:"retreated"`
	Dead      int       `json:"dead"`
	Ticks     int       `json:"ticks"`
	At        time.Time `json:"at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	solidi     INTEGER NOT NULL DEFAULT 0 CHECK (solidi >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS player_resources (
	player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	resource  TEXT NOT NULL,
	amount    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, resource)
);
CREATE TABLE IF NOT EXISTS armies (
	player_id  TEXT PRIMARY KEY REFERENCES players(id) ON DELETE CASCADE,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS battles (
	id        TEXT PRIMARY KEY,
	player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	quest_id  TEXT,
	power     DOUBLE PRECISION NOT NULL,
	victory   BOOLEAN NOT NULL,
	retreated BOOLEAN NOT NULL DEFAULT FALSE,
	dead      INTEGER NOT NULL,
	ticks     INTEGER NOT NULL,
	fought_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS completed_quests (
	player_id    TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	quest_id     TEXT NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (player_id, quest_id)
);
`

// Store persists players, their ledger, armies and battle history in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore accepts an existing DB handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewStoreFromDB builds the store from a connection string and makes sure
// the schema exists.
func NewStoreFromDB(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s := NewStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreatePlayer registers a new player with a starting balance.
func (s *Store) CreatePlayer(ctx context.Context, name string, solidi int) (Player, error) {
	p := Player{
		ID:        uuid.NewString(),
		Name:      name,
		Solidi:    solidi,
		Resources: map[string]int{},
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO players (id, name, solidi)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, p.ID, p.Name, p.Solidi).Scan(&p.CreatedAt)
	if err != nil {
		return Player{}, err
	}
	return p, nil
}

// GetPlayer returns a single player by ID.
func (s *Store) GetPlayer(ctx context.Context, id string) (Player, error) {
	var p Player
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, solidi, created_at
		FROM players
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Solidi, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Player{}, ErrPlayerNotFound
	}
	if err != nil {
		return Player{}, err
	}

	p.Resources = map[string]int{}
	rows, err := s.db.QueryContext(ctx, `SELECT resource, amount FROM player_resources WHERE player_id = $1`, id)
	if err != nil {
		return Player{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var res string
		var amt int
		if err := rows.Scan(&res, &amt); err != nil {
			return Player{}, err
		}
		p.Resources[res] = amt
	}
	return p, rows.Err()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// debit takes solidi from a player. The balance check and the deduction
// are a single statement, so concurrent purchases cannot overdraw.
func debit(ctx context.Context, q execer, playerID string, amount int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE players
		SET solidi = solidi - $1,
		    updated_at = NOW()
		WHERE id = $2 AND solidi >= $1
	`, amount, playerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := lockPlayer(ctx, q, playerID); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// credit adds an amount of any resource to a player.
func credit(ctx context.Context, q execer, playerID, resource string, amount int) error {
	if resource == Solidi {
		res, err := q.ExecContext(ctx, `
			UPDATE players
			SET solidi = solidi + $1,
			    updated_at = NOW()
			WHERE id = $2
		`, amount, playerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPlayerNotFound
		}
		return nil
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO player_resources (player_id, resource, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, resource) DO UPDATE
		SET amount = player_resources.amount + EXCLUDED.amount
	`, playerID, resource, amount)
	return err
}

func lockPlayer(ctx context.Context, q execer, playerID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM players WHERE id = $1 FOR UPDATE`, playerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlayerNotFound
	}
	return err
}

func saveArmy(ctx context.Context, q execer, playerID string, st army.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO armies (player_id, state)
		VALUES ($1, $2)
		ON CONFLICT (player_id) DO UPDATE
		SET state = EXCLUDED.state,
		    updated_at = NOW()
	`, playerID, raw)
	return err
}

// Purchase debits cost and stores next as the player's army in one
// transaction. On any error neither change is kept. Free units skip the
// debit.
func (s *Store) Purchase(ctx context.Context, playerID string, cost int, next army.State) error {
	if cost < 0 {
		return ErrInvalidAmount
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if cost == 0 {
		err = lockPlayer(ctx, tx, playerID)
	} else {
		err = debit(ctx, tx, playerID, cost)
	}
	if err != nil {
		return err
	}
	if err := saveArmy(ctx, tx, playerID, next); err != nil {
		return fmt.Errorf("save army: %w", err)
	}
	return tx.Commit()
}

// SaveArmy replaces the stored army snapshot.
func (s *Store) SaveArmy(ctx context.Context, playerID string, st army.State) error {
	return saveArmy(ctx, s.db, playerID, st)
}

// LoadArmy returns the stored army, or ok=false when the player has none.
func (s *Store) LoadArmy(ctx context.Context, playerID string) (army.State, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM armies WHERE player_id = $1`, playerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return army.State{}, false, nil
	}
	if err != nil {
		return army.State{}, false, err
	}
	return army.ParseState(raw), true, nil
}

func (s *Store) RecordBattle(ctx context.Context, rec BattleRecord) error {
	var quest sql.NullString
	if rec.QuestID != "" {
		quest = sql.NullString{String: rec.QuestID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO battles (id, player_id, quest_id, power, victory, retreated, dead, ticks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.PlayerID, quest, rec.Power, rec.Victory, rec.Retreated, rec.Dead, rec.Ticks)
	return err
}

// Battles returns the most recent battles first.
func (s *Store) Battles(ctx context.Context, playerID string, limit int) ([]BattleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, COALESCE(quest_id, ''), power, victory, retreated, dead, ticks, fought_at
		FROM battles
		WHERE player_id = $1
		ORDER BY fought_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []BattleRecord{}
	for rows.Next() {
		var r BattleRecord
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.QuestID, &r.Power, &r.Victory, &r.Retreated, &r.Dead, &r.Ticks, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimQuest marks a quest done and pays its reward in one transaction.
// It reports false, and pays nothing, when the quest was already done.
// Zero amounts are skipped.
func (s *Store) ClaimQuest(ctx context.Context, playerID, questID string, reward map[string]int) (bool, error) {
	if err := validReward(reward); err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := lockPlayer(ctx, tx, playerID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO completed_quests (player_id, quest_id)
		VALUES ($1, $2)
		ON CONFLICT (player_id, quest_id) DO NOTHING
	`, playerID, questID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	for _, r := range rewardOrder(reward) {
		if err := credit(ctx, tx, playerID, r, reward[r]); err != nil {
			return false, fmt.Errorf("credit %s: %w", r, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func validReward(reward map[string]int) error {
	for r, amt := range reward {
		if amt < 0 {
			return fmt.Errorf("%w: %s %d", ErrInvalidAmount, r, amt)
		}
	}
	return nil
}

// rewardOrder lists the positive entries of reward by name.
func rewardOrder(reward map[string]int) []string {
	out := make([]string, 0, len(reward))
	for r, amt := range reward {
		if amt > 0 {
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Store) CompletedQuests(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT quest_id FROM completed_quests
		WHERE player_id = $1
		ORDER BY completed_at ASC
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

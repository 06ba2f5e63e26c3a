package campaign

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Quest is a narrative battle: a named enemy of a given power and what
// beating it pays.
type Quest struct {
	ID     string         `yaml:"id" json:"id"`
	Enemy  string         `yaml:"enemy" json:"enemy"`
	Power  float64        `yaml:"power" json:"power"`
	Reward map[string]int `yaml:"reward" json:"reward"`
}

// QuestBook is the read-only table of battle quests.
type QuestBook struct {
	byID  map[string]Quest
	order []string
}

func NewQuestBook(quests []Quest) (*QuestBook, error) {
	b := &QuestBook{byID: make(map[string]Quest, len(quests))}
	for _, q := range quests {
		if q.ID == "" {
			return nil, fmt.Errorf("campaign: quest without id")
		}
		if q.Power <= 0 {
			return nil, fmt.Errorf("campaign: quest %s: power must be positive", q.ID)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("campaign: duplicate quest %s", q.ID)
		}
		b.byID[q.ID] = q
		b.order = append(b.order, q.ID)
	}
	return b, nil
}

// LoadQuests reads a YAML quest table of the form `quests: [...]`.
func LoadQuests(path string) (*QuestBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f struct {
		Quests []Quest `yaml:"quests"`
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("campaign: parse %s: %w", path, err)
	}
	return NewQuestBook(f.Quests)
}

func DefaultQuests() *QuestBook {
	b, err := NewQuestBook([]Quest{
		{ID: "sq_3_1", Enemy: "Bandit Scout", Power: 50, Reward: map[string]int{"solidi": 50}},
		{ID: "sq_3_3", Enemy: "Bandit Camp", Power: 80, Reward: map[string]int{"solidi": 100}},
		{ID: "sq_5_1", Enemy: "Road Highwayman", Power: 120, Reward: map[string]int{"solidi": 80}},
		{ID: "sq_6_2", Enemy: "Wolf Pack", Power: 150, Reward: map[string]int{"solidi": 100}},
		{ID: "sq_7_2", Enemy: "Mine Kobolds", Power: 180, Reward: map[string]int{"iron": 100}},
		{ID: "sq_8_3", Enemy: "Dark Knight", Power: 300, Reward: map[string]int{"solidi": 200}},
		{ID: "sq_9_1", Enemy: "Goblin Vanguard", Power: 250, Reward: map[string]int{"solidi": 100}},
		{ID: "sq_9_2", Enemy: "Goblin Raiders", Power: 300, Reward: map[string]int{"solidi": 150}},
		{ID: "sq_9_3", Enemy: "Goblin King", Power: 500, Reward: map[string]int{"solidi": 300}},
		{ID: "sq_11_2", Enemy: "Skeleton Guards", Power: 400, Reward: map[string]int{"solidi": 200}},
		{ID: "sq_12_3", Enemy: "Plague Rats", Power: 200, Reward: map[string]int{"solidi": 100}},
		{ID: "sq_14_2", Enemy: "Dragon Cultists", Power: 800, Reward: map[string]int{"solidi": 400}},
	})
	if err != nil {
		panic(err)
	}
	return b
}

func (b *QuestBook) Get(id string) (Quest, bool) {
	q, ok := b.byID[id]
	return q, ok
}

// List returns quests in table order.
func (b *QuestBook) List() []Quest {
	out := make([]Quest, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.byID[id])
	}
	return out
}

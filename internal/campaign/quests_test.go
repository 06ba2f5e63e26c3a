package campaign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQuests(t *testing.T) {
	b := DefaultQuests()
	list := b.List()
	require.Len(t, list, 12)
	assert.Equal(t, "sq_3_1", list[0].ID)

	q, ok := b.Get("sq_8_3")
	require.True(t, ok)
	assert.Equal(t, "Dark Knight", q.Enemy)
	assert.Equal(t, 300.0, q.Power)
	assert.Equal(t, 200, q.Reward["solidi"])
}

func TestLoadQuests(t *testing.T) {
	b, err := LoadQuests(filepath.Join("..", "..", "data", "quests.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultQuests().List(), b.List())
}

func TestNewQuestBook_Validation(t *testing.T) {
	_, err := NewQuestBook([]Quest{{ID: "a", Power: 0}})
	assert.Error(t, err)
	_, err = NewQuestBook([]Quest{{ID: "a", Power: 1}, {ID: "a", Power: 2}})
	assert.Error(t, err)
	_, err = NewQuestBook([]Quest{{Power: 1}})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quests: [{id: x, power: -1}]"), 0o644))
	_, err = LoadQuests(path)
	assert.Error(t, err)
}

package livecache

import (
	"testing"

	"basileus/internal/combat"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "battle:b1:snapshot", snapshotKey("b1"))
	assert.Equal(t, "battle:b1:result", resultKey("b1"))
}

func TestShouldSnapshot(t *testing.T) {
	assert.True(t, shouldSnapshot(combat.State{Tick: 0}))
	assert.False(t, shouldSnapshot(combat.State{Tick: 3}))
	assert.True(t, shouldSnapshot(combat.State{Tick: SnapshotEvery * 4}))
	assert.True(t, shouldSnapshot(combat.State{Tick: 7, Phase: combat.Ended}))
}

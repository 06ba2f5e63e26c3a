package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, 18000, cfg.MaxTicks)
	assert.Equal(t, 5, cfg.GridSize)
	assert.Equal(t, 500, cfg.StartingSolidi)
	assert.Equal(t, 10*time.Minute, cfg.SnapshotTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Dev)
}

func TestLoad_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := "port: \"9000\"\ntick_rate: 60\nsnapshot_ttl: 30s\nquests_path: data/quests.yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basileus.yaml"), []byte(file), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 60, cfg.TickRate)
	assert.Equal(t, 30*time.Second, cfg.SnapshotTTL)
	assert.Equal(t, "data/quests.yaml", cfg.QuestsPath)
	assert.Equal(t, 500, cfg.StartingSolidi)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basileus.yaml"), []byte("starting_solidi: 100\n"), 0644))
	t.Setenv("BASILEUS_STARTING_SOLIDI", "250")
	t.Setenv("BASILEUS_DATABASE_URL", "postgres://localhost/basileus")
	t.Setenv("BASILEUS_DEV", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.StartingSolidi)
	assert.Equal(t, "postgres://localhost/basileus", cfg.DatabaseURL)
	assert.True(t, cfg.Dev)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("BASILEUS_TICK_RATE", "0")
	_, err := Load("")
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basileus.yaml"), []byte("port: [oops"), 0644))
	t.Setenv("BASILEUS_TICK_RATE", "30")
	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds server settings. Values come from defaults, then an optional
// basileus.yaml, then BASILEUS_* environment variables.
type Config struct {
	Port           string        `mapstructure:"port"`
	DatabaseURL    string        `mapstructure:"database_url"`
	RedisURL       string        `mapstructure:"redis_url"`
	CatalogPath    string        `mapstructure:"catalog_path"`
	QuestsPath     string        `mapstructure:"quests_path"`
	TickRate       int           `mapstructure:"tick_rate"`
	MaxTicks       int           `mapstructure:"max_ticks"`
	GridSize       int           `mapstructure:"grid_size"`
	StartingSolidi int           `mapstructure:"starting_solidi"`
	SnapshotTTL    time.Duration `mapstructure:"snapshot_ttl"`
	Seed           int64         `mapstructure:"seed"`
	LogLevel       string        `mapstructure:"log_level"`
	Dev            bool          `mapstructure:"dev"`
}

// Load reads configuration. configDir may be empty; a missing config file
// is not an error.
func Load(configDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	// Empty database and redis urls select the in-memory store and no live cache.
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("catalog_path", "")
	v.SetDefault("quests_path", "")
	v.SetDefault("tick_rate", 30)
	v.SetDefault("max_ticks", 18000)
	v.SetDefault("grid_size", 5)
	v.SetDefault("starting_solidi", 500)
	v.SetDefault("snapshot_ttl", "10m")
	v.SetDefault("seed", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("dev", false)

	v.SetEnvPrefix("BASILEUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configDir != "" {
		v.SetConfigName("basileus")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.TickRate <= 0 {
		return nil, fmt.Errorf("config: tick_rate must be positive, got %d", cfg.TickRate)
	}
	if cfg.GridSize <= 0 {
		return nil, fmt.Errorf("config: grid_size must be positive, got %d", cfg.GridSize)
	}
	return &cfg, nil
}

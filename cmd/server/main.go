package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basileus/internal/arena"
	"basileus/internal/battle"
	"basileus/internal/campaign"
	"basileus/internal/catalog"
	"basileus/internal/config"
	"basileus/internal/data"
	"basileus/internal/enemy"
	"basileus/internal/livecache"
	"basileus/internal/lobby"
	"basileus/internal/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.LogLevel, cfg.Dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Static game data
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to load unit catalog")
		}
	}
	quests := campaign.DefaultQuests()
	if cfg.QuestsPath != "" {
		if quests, err = campaign.LoadQuests(cfg.QuestsPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.QuestsPath).Msg("Failed to load quests")
		}
	}

	// 2. Persistence
	var store campaign.Store
	if cfg.DatabaseURL != "" {
		pg, err := data.NewStoreFromDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer pg.Close()
		store = pg
	} else {
		log.Warn().Msg("No database configured, players live in memory only")
		store = data.NewMemoryStore()
	}

	// 3. Realtime fan-out
	hub := arena.NewHub()
	observers := battle.Observers{hub}
	notifiers := campaign.Notifiers{hub}
	var lookup lobby.BattleLookup
	if cfg.RedisURL != "" {
		cache, err := livecache.NewCache(cfg.RedisURL, cfg.SnapshotTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer cache.Close()
		observers = append(observers, cache)
		notifiers = append(notifiers, cache)
		lookup = cache
	}

	// 4. Battles
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	orchestrator := battle.New(battle.Config{TickRate: cfg.TickRate, MaxTicks: cfg.MaxTicks}, rand.New(rand.NewSource(seed)), observers)
	manager := campaign.NewManager(ctx, campaign.Config{
		GridSize:       cfg.GridSize,
		StartingSolidi: cfg.StartingSolidi,
	}, campaign.Deps{
		Store:     store,
		Catalog:   cat,
		Quests:    quests,
		Generator: enemy.New(cat, rand.New(rand.NewSource(seed+1))),
		Battles:   orchestrator,
		Notifier:  notifiers,
	})

	// 5. Routes
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           lobby.NewRouter(manager, hub, lookup),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Int("units", cat.Len()).Int("tickRate", cfg.TickRate).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"eraforge/internal/config"
	"eraforge/internal/genesis"
	"eraforge/internal/oracle"
	"eraforge/internal/session"
	"eraforge/internal/store"
	"eraforge/internal/store/postgres"
	"eraforge/internal/store/sqlite"
	"eraforge/internal/telemetry"
	"eraforge/internal/turn"
)

// app is the wired runtime shared by the commands that play the game.
type app struct {
	cfg     *config.ProjectConfig
	log     *slog.Logger
	store   store.Store
	oracle  *oracle.Oracle
	engine  *turn.Engine
	genesis *genesis.Service
	game    *session.Manager

	closers []func(context.Context) error
}

func loadConfig(path string, logOut io.Writer) (*config.ProjectConfig, *slog.Logger, error) {
	cfg, err := config.LoadProjectConfig(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := telemetry.NewLogger(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN)
	case "sqlite":
		return sqlite.New(ctx, cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func openClient(ctx context.Context, cfg *config.ProjectConfig) (oracle.Client, func(context.Context) error, error) {
	key, err := cfg.OracleAPIKey()
	if err != nil {
		return nil, nil, err
	}
	temperature := *cfg.Oracle.Temperature
	switch cfg.Oracle.Provider {
	case "openai":
		return oracle.NewOpenAIClient(key, cfg.Oracle.Model, temperature, cfg.Oracle.BaseURL), nil, nil
	case "gemini":
		client, err := oracle.NewGeminiClient(ctx, key, cfg.Oracle.Model, float32(temperature))
		if err != nil {
			return nil, nil, err
		}
		return client, func(context.Context) error { return client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported oracle provider %q", cfg.Oracle.Provider)
	}
}

// openStoreOnly loads the config and connects to the database for the
// read-only commands that never reach the oracle.
func openStoreOnly(ctx context.Context, path string) (store.Store, *slog.Logger, error) {
	cfg, logger, err := loadConfig(path, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return st, logger, nil
}

// newApp wires store, oracle, engine and sessions. Logs go to logOut.
func newApp(ctx context.Context, path string, logOut io.Writer) (*app, error) {
	cfg, logger, err := loadConfig(path, logOut)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger}

	shutdown, err := telemetry.SetupTracing(ctx, "eraforge", telemetry.TracingConfig{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	st, err := openStore(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	if err := st.EnsureSchema(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	client, closeClient, err := openClient(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if closeClient != nil {
		a.closers = append(a.closers, closeClient)
	}

	a.oracle, err = oracle.New(client, cfg.Oracle.Timeout, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.oracle.SetMaxTokens(cfg.Oracle.MaxTokens)

	news := *cfg.Game.News
	a.engine = turn.NewEngine(st, a.oracle, turn.Options{Logger: logger, News: news})
	a.genesis, err = genesis.New(st, a.oracle, genesis.Options{
		MinYear:            *cfg.Game.MinYear,
		MaxYear:            *cfg.Game.MaxYear,
		StartingBalance:    cfg.Economy.Balance,
		StartingMultiplier: cfg.Economy.Multiplier,
		News:               news,
		Logger:             logger,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.game = session.NewManager(a.genesis, a.engine, logger)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

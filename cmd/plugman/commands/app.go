package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/winxky/cordova-plugman/pkg/config"
	"github.com/winxky/cordova-plugman/pkg/engine"
	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/platforms"
	"github.com/winxky/cordova-plugman/pkg/policy"
	"github.com/winxky/cordova-plugman/pkg/stores"
	"github.com/winxky/cordova-plugman/pkg/telemetry"
)

// app wires the configuration, telemetry, ledger and orchestrator for one
// command invocation.
type app struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
	orch  *engine.Orchestrator
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return cfg, nil
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tel, err := telemetry.NewTelemetry(cfg.Telemetry(version))
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	store, err := openLedger(ctx, cfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(tel.Logger),
		engine.WithMetrics(tel.Metrics),
		engine.WithTracer(tel.Tracer),
	}
	opts = append(opts, engine.WithLockDir(cfg.LockDir()))
	if cfg.Actor != "" {
		opts = append(opts, engine.WithActor(cfg.Actor))
	}

	gate, err := newPolicyEngine(ctx, cfg, *tel.Logger.Zerolog())
	if err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	if gate != nil {
		opts = append(opts, engine.WithPolicy(gate))
	}
	orch := engine.NewOrchestrator(platforms.Default(), manifest.NewLoader(), store, opts...)

	log.Debug().
		Str("config", cfg.Path).
		Str("ledger", cfg.LedgerPath()).
		Str("plugins_dir", cfg.PluginsDir).
		Msg("Configuration loaded")

	return &app{cfg: cfg, tel: tel, store: store, orch: orch}, nil
}

func openLedger(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:         cfg.LedgerPath(),
		MaxOpenConns: cfg.Ledger.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newPolicyEngine builds the install policy gate, or returns nil when the
// gate is switched off.
func newPolicyEngine(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*policy.Engine, error) {
	if !cfg.Policy.Enabled {
		return nil, nil
	}

	eng, err := policy.NewEngine(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(cfg.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Policy.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// Close releases the ledger and flushes telemetry.
func (a *app) Close() error {
	return errors.Join(
		a.store.Close(),
		a.tel.Shutdown(context.Background()),
	)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/outranker/qrimzn-bridge/internal/bridge"
	"github.com/outranker/qrimzn-bridge/internal/config"
	"github.com/outranker/qrimzn-bridge/internal/installer"
	"github.com/outranker/qrimzn-bridge/internal/logging"
	"github.com/outranker/qrimzn-bridge/internal/runner"
	"github.com/outranker/qrimzn-bridge/internal/state"
)

// app bundles what every command needs after config is loaded.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *state.Store
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFrom(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

// buildApp loads config, the logger and the state store.
// The caller is responsible for calling close.
func buildApp(flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	store, err := state.Open(cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	return &app{cfg: cfg, log: log, store: store}, nil
}

func (a *app) close() {
	a.store.Close()
}

// installer builds an Installer that records installs in the state db.
func (a *app) installer() (*installer.Installer, error) {
	return installer.New(a.cfg, &runner.OSRunner{},
		installer.WithRecorder(a.store),
		installer.WithLogger(a.log),
	)
}

// bridge builds a Bridge that records every call in the history table.
func (a *app) bridge() *bridge.Bridge {
	return bridge.New(a.cfg.BinaryPath(runtime.GOOS), &runner.OSRunner{},
		bridge.WithLogger(a.log),
		bridge.WithEnvOverlay(a.cfg.Child.Env),
		bridge.WithObserver(&historyObserver{store: a.store, log: a.log}),
	)
}

// historyObserver persists bridge calls as invocation records.
type historyObserver struct {
	store *state.Store
	log   logrus.FieldLogger
}

func (h *historyObserver) ObserveCall(rec bridge.CallRecord) {
	inv := &state.Invocation{
		CallID:      rec.ID,
		Kind:        string(rec.Kind),
		Args:        rec.Args,
		Outcome:     string(rec.Phase),
		ErrorKind:   bridge.ErrorKind(rec.Err),
		ExitCode:    rec.ExitCode,
		InputBytes:  rec.InputBytes,
		OutputBytes: rec.OutputBytes,
		Warnings:    rec.Warnings,
		Duration:    rec.Duration,
		StartedAt:   rec.Started,
	}
	if err := h.store.RecordInvocation(context.Background(), inv); err != nil {
		h.log.WithError(err).WithField("call_id", rec.ID).Warn("recording invocation")
	}
}

// explain adds a next step to errors the user can act on.
func explain(err error) error {
	if errors.Is(err, bridge.ErrBinaryNotFound) {
		return fmt.Errorf("%w; run 'qrimzn install' first", err)
	}
	return err
}

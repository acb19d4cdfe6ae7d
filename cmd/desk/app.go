package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/config"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/lifecycle"
	"github.com/Veraticus/chargedesk/internal/notify"
	"github.com/Veraticus/chargedesk/internal/service"
	"github.com/Veraticus/chargedesk/internal/sheets"
	"github.com/Veraticus/chargedesk/internal/storage"
)

// app is everything a command needs, wired from configuration.
type app struct {
	config *config.Desk
	desk   *engine.Desk
	users  *auth.Directory
	store  *storage.SQLiteStorage
	logger *slog.Logger
}

// Close releases the local database, if one was opened.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}
}

// openApp loads configuration and connects to the configured record store.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadDesk()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.Default()
	a := &app{config: cfg, logger: logger}

	var records, users service.Table
	switch cfg.Backend {
	case config.BackendSheets:
		table, err := sheets.NewTable(ctx, cfg.Sheets, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Google Sheets: %w", err)
		}
		records, users = table, table.Worksheet(cfg.Sheets.UsersWorksheet)
	case config.BackendSQLite:
		store, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		records, users = store.Table(cfg.Sheets.Worksheet), store.Table(cfg.Sheets.UsersWorksheet)
	}

	notifier, err := buildNotifier(ctx, cfg.Notify, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	machine := lifecycle.NewMachine(cfg.Policy, notifier, logger)
	desk, err := engine.New(records, machine, cfg.Engine, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create desk: %w", err)
	}
	a.desk = desk
	a.users = auth.NewDirectory(users, cfg.Engine.Agents, logger)

	return a, nil
}

// openStore opens and migrates the local database.
func (a *app) openStore(ctx context.Context) (*storage.SQLiteStorage, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := storage.NewSQLiteStorage(a.config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	a.store = store
	return store, nil
}

// buildNotifier fans out to every configured push service. With none
// configured, notifications are only logged.
func buildNotifier(ctx context.Context, cfg config.Notify, logger *slog.Logger) (service.Notifier, error) {
	var fanout notify.Fanout

	if cfg.PushbulletToken != "" {
		pb, err := notify.NewPushbullet(cfg.PushbulletToken, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to configure Pushbullet: %w", err)
		}
		fanout = append(fanout, pb)
	}

	if cfg.FCMCredentials != "" {
		fcm, err := notify.NewFCM(ctx, cfg.FCMCredentials, cfg.FCMTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to configure Firebase messaging: %w", err)
		}
		fanout = append(fanout, fcm)
	}

	if len(fanout) == 0 {
		logger.Debug("No push service configured, notifications will only be logged")
		return notify.Log{Logger: logger}, nil
	}
	return fanout, nil
}

// errAborted is returned when the user declines a confirmation.
var errAborted = errors.New("aborted")

// Package app wires a workspace together: config file, database,
// store, repo and scheduling engine, in the order every command needs
// them.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"planwise/internal/config"
	"planwise/internal/events"
	"planwise/internal/logging"
	"planwise/internal/repo"
	"planwise/internal/scheduler"
	"planwise/internal/store"
)

// App is the assembled runtime for one workspace.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Repo      repo.Repo
	Engine    scheduler.Engine
	Events    events.Writer
	Log       *slog.Logger
}

// Open resolves the workspace config, opens and migrates the database
// and builds the engine on top. Close releases the database.
func Open(workspace, logLevel string) (*App, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := store.Open(store.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log := logging.New(os.Stderr, logLevel)
	r := repo.Repo{Store: store.NewSQLite(db)}
	return &App{
		Workspace: workspace,
		Config:    cfg,
		DB:        db,
		Repo:      r,
		Engine:    scheduler.New(r, cfg, log),
		Events:    events.Writer{DB: db},
		Log:       log,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

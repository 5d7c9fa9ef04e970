//go:build sqlite && !postgres

package main

import (
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
	sqlitestore "tripplanner/internal/storage/sqlite"
)

// selectStore returns a SQLite-backed store when built with the 'sqlite' tag.
// Configure with SQLITE_DSN (e.g., file:tripplanner.db).
func selectStore(logger observability.Logger, cfg config) storage.Store {
	st, err := sqlitestore.New(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", "error", err)
		return storage.NewMemoryStore()
	}
	logger.Info("using sqlite store", "dsn", cfg.SQLiteDSN)
	return st
}

func migrationStatus(cfg config) string {
	s, err := sqlitestore.Status(cfg.SQLiteDSN)
	if err != nil {
		return ""
	}
	return s
}

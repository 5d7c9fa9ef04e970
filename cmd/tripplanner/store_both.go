//go:build sqlite && postgres

package main

import (
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
	pgstore "tripplanner/internal/storage/postgres"
	sqlitestore "tripplanner/internal/storage/sqlite"
)

// selectStore picks PostgreSQL if DATABASE_URL is set, otherwise SQLite.
func selectStore(logger observability.Logger, cfg config) storage.Store {
	if cfg.DatabaseURL != "" {
		st, err := pgstore.New(cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres init failed; falling back to sqlite", "error", err)
		} else {
			logger.Info("using postgres store")
			return st
		}
	}
	st, err := sqlitestore.New(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", "error", err)
		return storage.NewMemoryStore()
	}
	logger.Info("using sqlite store", "dsn", cfg.SQLiteDSN)
	return st
}

func migrationStatus(cfg config) string {
	if cfg.DatabaseURL != "" {
		if s, err := pgstore.Status(cfg.DatabaseURL); err == nil {
			return s
		}
	}
	s, err := sqlitestore.Status(cfg.SQLiteDSN)
	if err != nil {
		return ""
	}
	return s
}

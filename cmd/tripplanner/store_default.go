//go:build !sqlite && !postgres

package main

import (
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
)

// selectStore returns the in-memory store when built without the 'sqlite'
// or 'postgres' tags. A configured database is reported so the missing tag
// is noticed.
func selectStore(logger observability.Logger, cfg config) storage.Store {
	if cfg.DatabaseURL != "" {
		logger.Warn("DATABASE_URL set, but binary not built with -tags postgres; using in-memory store")
	}
	logger.Info("using in-memory store")
	return storage.NewMemoryStore()
}

// migrationStatus is empty for in-memory builds.
func migrationStatus(config) string { return "" }

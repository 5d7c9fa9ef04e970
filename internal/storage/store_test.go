package storage_test

import (
	"testing"

	"tripplanner/internal/storage"
	"tripplanner/internal/storage/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return storage.NewMemoryStore()
	})
}

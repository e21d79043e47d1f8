package sqlite

import "github.com/poiesic/quarry/storage"

// NewMemoryStore creates an in-memory store for testing.
// Caller must close the store when done.
func NewMemoryStore() (storage.Store, error) {
	return NewStore(MemoryPath)
}

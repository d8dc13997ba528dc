package storage

import (
	"fmt"
	"log/slog"
)

const DefaultStoreKind = "memory"

// Kinds lists the supported backends.
var Kinds = []string{"memory", "sqlite", "badger"}

// NewStore builds an uninitialized store. path is the sqlite database file or
// the badger directory; an empty badger path selects an in-memory database.
func NewStore(kind, path string, logger *slog.Logger) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	case "badger":
		return NewBadgerStore(path, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

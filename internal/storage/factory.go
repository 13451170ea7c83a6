package storage

import (
	"errors"
	"fmt"
)

var ErrUnsupportedStore = errors.New("unsupported store backend")

// NewStore builds an uninitialized store. path is the database file for the
// sqlite and bolt backends and is ignored for memory.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	case "bolt", "bbolt":
		return NewBoltStore(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

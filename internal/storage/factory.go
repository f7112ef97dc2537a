package storage

import "fmt"

// Builders wires backend constructors without importing their packages,
// avoiding an import cycle between storage and its implementations.
type Builders struct {
	File     func() (Backend, error)
	SQLite   func() (Backend, error)
	Postgres func() (Backend, error)
}

// NewBackend creates a storage backend based on the configured type.
func NewBackend(storageType string, b Builders) (Backend, error) {
	switch storageType {
	case "file":
		if b.File == nil {
			return nil, fmt.Errorf("file backend not available")
		}
		return b.File()
	case "sqlite":
		if b.SQLite == nil {
			return nil, fmt.Errorf("sqlite backend not available")
		}
		return b.SQLite()
	case "postgres":
		if b.Postgres == nil {
			return nil, fmt.Errorf("postgres backend not available")
		}
		return b.Postgres()
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}

package runstore

import "fmt"

// NewStore selects a backend by name: "none", "memory" or "sqlite"
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "none":
		return NullStore{}, nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			return nil, fmt.Errorf("sqlite run store needs a path")
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported run store backend: %s", kind)
	}
}

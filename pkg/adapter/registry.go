package adapter

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// Factory builds an unconnected adapter. logger may be nil.
type Factory func(logger *slog.Logger) Adapter

// The registry holds the database backends known by name: "mysql" serves the
// table index, "postgres" the advisory lock backend. Backends add themselves
// from init, so importing an adapter package is what makes it selectable in
// configuration.
var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under name, replacing any earlier
// registration.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	factories[name] = factory
	factoriesMu.Unlock()
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// IsRegistered reports whether name is a known backend.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered backend names in sorted order.
func ListAdapters() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// NewAdapter builds the backend named by cfg.Type. The adapter still has to
// be connected.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("index type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// UnknownAdapterError names a backend type nothing registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %v); check index.type in leaptable.yaml", e.Type, e.Available)
}

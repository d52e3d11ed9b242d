package nodestore

import (
	"fmt"
	"sync"
)

// BackendFactory builds a backend from configuration.
type BackendFactory func(config *Config) (Backend, error)

var (
	backendMu        sync.RWMutex
	backendFactories = make(map[string]BackendFactory)
)

// RegisterBackend adds a backend factory under a name. Built-in backends
// register themselves in init.
func RegisterBackend(name string, factory BackendFactory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendFactories[name] = factory
}

// CreateBackend instantiates a registered backend.
func CreateBackend(name string, config *Config) (Backend, error) {
	backendMu.RLock()
	factory, ok := backendFactories[name]
	backendMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, name)
	}
	return factory(config)
}

// AvailableBackends lists registered backend names.
func AvailableBackends() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()

	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	return names
}

package capture

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// BackendOptions carries backend-specific settings from configuration.
type BackendOptions struct {
	ReplayDir  string
	ReplayLoop bool
}

// BackendFactory builds an unopened Device.
type BackendFactory func(opts BackendOptions) (Device, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]BackendFactory{
		"synthetic": func(BackendOptions) (Device, error) { return &SyntheticDevice{}, nil },
		"replay": func(opts BackendOptions) (Device, error) {
			if strings.TrimSpace(opts.ReplayDir) == "" {
				return nil, fmt.Errorf("replay backend: directory not set")
			}
			return &ReplayDevice{Dir: opts.ReplayDir, Loop: opts.ReplayLoop}, nil
		},
	}
)

// RegisterBackend makes a device backend available by name. Backends with
// native dependencies register themselves from an init function so only
// binaries that import them pay for the dependency.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(strings.TrimSpace(name))] = factory
}

// NewDevice builds a device for the named backend.
func NewDevice(name string, opts BackendOptions) (Device, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "synthetic"
	}
	backendsMu.RLock()
	factory, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("capture backend %q not available (registered: %s)", name, strings.Join(Backends(), ", "))
	}
	return factory(opts)
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

package strategy

import (
	"fmt"
	"sync"

	"github.com/yourusername/quantgrid/internal/models"
)

// Constructor builds a strategy instance from its configuration
type Constructor func(cfg Config) (Strategy, error)

// Registry maps strategy names to constructors. Workers reconstruct
// strategies from serialized configs through a registry, so every strategy
// used in a grid must be registered under its config name.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates a registry pre-populated with the built-in strategies
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(NameSMACross, NewSMACross)
	r.Register(NameRSIReversion, NewRSIReversion)
	return r
}

// Register adds a constructor under the given name, replacing any previous one
func (r *Registry) Register(name string, build Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = build
}

// Build constructs a strategy from its config
func (r *Registry) Build(cfg Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	build, ok := r.constructors[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownStrategy, cfg.Name)
	}
	return build(cfg)
}

// Names returns the registered strategy names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	return names
}

// intParam reads an integer parameter with a default. JSON round trips
// deliver numbers as float64, so both forms are accepted.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// floatParam reads a float parameter with a default
func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

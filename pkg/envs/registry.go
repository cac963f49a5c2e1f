// Package envs maps textual environment identifiers to constructors. The
// engine simulates environments itself; what a constructor produces here is
// the spec the engine needs to build its own instances for a job.
package envs

import (
	"fmt"
	"sort"
	"sync"
)

// SpaceKind distinguishes discrete from box-shaped spaces.
type SpaceKind string

const (
	SpaceDiscrete SpaceKind = "discrete"
	SpaceBox      SpaceKind = "box"
)

// Space describes an observation or action space.
type Space struct {
	Kind  SpaceKind `json:"kind"`
	Shape []int     `json:"shape,omitempty"` // box spaces
	N     int       `json:"n,omitempty"`     // discrete spaces
	Low   float64   `json:"low,omitempty"`
	High  float64   `json:"high,omitempty"`
}

// Spec is the engine-facing description of one environment.
type Spec struct {
	ID              string `json:"id"`
	EntryPoint      string `json:"entry_point"`
	Observation     Space  `json:"observation"`
	Action          Space  `json:"action"`
	MaxEpisodeSteps int    `json:"max_episode_steps"`
}

// Constructor builds the spec for one environment instance.
type Constructor func() (*Spec, error)

// Registry holds the known environment constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[string]Constructor),
	}
}

// Register associates an environment id with a constructor.
func (r *Registry) Register(id string, ctor Constructor) error {
	if id == "" {
		return fmt.Errorf("envs: empty environment id")
	}
	if ctor == nil {
		return fmt.Errorf("envs: nil constructor for %q", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[id]; exists {
		return fmt.Errorf("envs: %q is already registered", id)
	}
	r.ctors[id] = ctor
	return nil
}

// Make looks up the constructor for id and invokes it.
func (r *Registry) Make(id string) (*Spec, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("envs: unknown environment %q", id)
	}
	return ctor()
}

// Known returns the registered ids in sorted order.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.ctors))
	for id := range r.ctors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// defaultRegistry backs the package-level functions.
var defaultRegistry = NewRegistry()

// Register adds a constructor to the default registry.
func Register(id string, ctor Constructor) error {
	return defaultRegistry.Register(id, ctor)
}

// Make builds an environment spec from the default registry.
func Make(id string) (*Spec, error) {
	return defaultRegistry.Make(id)
}

// Known lists the default registry's ids.
func Known() []string {
	return defaultRegistry.Known()
}

// Default returns the registry the package-level functions use.
func Default() *Registry {
	return defaultRegistry
}

package plugins

import (
	"fmt"
	"strings"
	"sync"

	"roost/pkg/logging"
)

// Registry holds worker definitions and live instances.
//
// Definitions are kept in insertion order: re-registering an existing id
// replaces the definition in place without moving it, because bulk-start
// iterates definitions in a stable order. Instances live in a concurrent
// map whose insert-if-absent primitive closes the exists-check/insert race
// between two concurrent start calls for the same new instance id.
type Registry struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]Definition

	instances sync.Map // instance id -> Instance
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// RegisterDefinition adds a definition, or replaces it in place when the id
// is already registered.
func (r *Registry) RegisterDefinition(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("cannot register definition with empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.ID]; !exists {
		r.order = append(r.order, def.ID)
	} else {
		logging.Debug("PluginRegistry", "Replacing definition %s in place", def.ID)
	}
	r.defs[def.ID] = def.Clone()
	return nil
}

// GetDefinition returns the definition with the given id.
func (r *Registry) GetDefinition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[id]
	if !ok {
		return Definition{}, false
	}
	return def.Clone(), true
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.defs[id].Clone())
	}
	return result
}

// RegisterInstance stores the instance under its id unless one is already
// present. It returns the instance now registered under that id and
// whether it was already there (the idempotence signal — callers racing
// the same id must treat the existing instance as the winner).
func (r *Registry) RegisterInstance(instance Instance) (Instance, bool) {
	actual, loaded := r.instances.LoadOrStore(instance.ID(), instance)
	return actual.(Instance), loaded
}

// RemoveInstance deletes the instance with the given id. Removing an
// unknown id is a no-op.
func (r *Registry) RemoveInstance(id string) {
	r.instances.Delete(id)
}

// GetInstance returns the live instance with the given id.
func (r *Registry) GetInstance(id string) (Instance, bool) {
	v, ok := r.instances.Load(id)
	if !ok {
		return nil, false
	}
	return v.(Instance), true
}

// GetInstancesByDefinitionID returns every live instance belonging to the
// definition: the singleton instance with the exact id plus all per-device
// instances keyed id:deviceId.
func (r *Registry) GetInstancesByDefinitionID(definitionID string) []Instance {
	var result []Instance
	prefix := definitionID + ":"
	r.instances.Range(func(key, value interface{}) bool {
		id := key.(string)
		if id == definitionID || strings.HasPrefix(id, prefix) {
			result = append(result, value.(Instance))
		}
		return true
	})
	return result
}

// Instances returns all live instances in no particular order.
func (r *Registry) Instances() []Instance {
	var result []Instance
	r.instances.Range(func(_, value interface{}) bool {
		result = append(result, value.(Instance))
		return true
	})
	return result
}

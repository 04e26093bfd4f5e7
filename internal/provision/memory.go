// internal/provision/memory.go
package provision

import (
	"context"
	"fmt"
	"sync"
)

// MemoryEngine keeps instances in process. It is used when no Redis instance
// queue is configured, and in tests.
type MemoryEngine struct {
	mu        sync.Mutex
	templates map[string]Template
	nextID    uint32
	instances map[uint32]InstanceSpec
}

// NewMemoryEngine returns an engine loaded with DefaultTemplates.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		templates: DefaultTemplates(),
		nextID:    firstInstanceID,
		instances: make(map[uint32]InstanceSpec),
	}
}

func (e *MemoryEngine) Template(ctx context.Context, activity string) (Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.templates[activity]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrNoTemplate, activity)
	}
	return t, nil
}

// RemoveTemplate makes activity unavailable.
func (e *MemoryEngine) RemoveTemplate(activity string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.templates, activity)
}

func (e *MemoryEngine) AllocateInstanceID(ctx context.Context) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	return id, nil
}

func (e *MemoryEngine) BeginWaitingForPlayers(ctx context.Context, spec InstanceSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.instances[spec.InstanceID]; exists {
		return fmt.Errorf("instance %d already exists", spec.InstanceID)
	}
	e.instances[spec.InstanceID] = spec
	return nil
}

// Teardown forgets the instance. Unknown ids are ignored.
func (e *MemoryEngine) Teardown(ctx context.Context, instanceID uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.instances, instanceID)
	return nil
}

// Instance returns the InstanceSpec registered for id.
func (e *MemoryEngine) Instance(id uint32) (InstanceSpec, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	spec, ok := e.instances[id]
	return spec, ok
}

// Package registry implements the Task Registry: an in-process index
// of in-flight workflow goroutines keyed by (topic, entity id, order
// id, task name), supporting group cancellation by entity id. This
// generalizes the original's three separate dicts
// (lcm_ns_tasks/lcm_vim_tasks/lcm_sdn_tasks) into one topic-keyed
// registry.
package registry

import (
	"context"
	"sync"
)

// Key identifies a single tracked task.
type Key struct {
	Topic    string
	EntityID string
	OrderID  int64
	Name     string
}

// entry pairs a task's cancel function with a done channel so callers
// can tell whether a cancellation actually stopped a still-running
// task.
type entry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks in-flight tasks and lets a caller cancel every task
// registered under a given (topic, entity id), mirroring cancel_tasks.
type Registry struct {
	mu       sync.Mutex
	byEntity map[string]map[int64]map[string]*entry
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		byEntity: make(map[string]map[int64]map[string]*entry),
	}
}

func entityKey(topic, entityID string) string { return topic + "\x00" + entityID }

// Register adds a task under key, deriving a child context from
// parent so the task observes cancellation via ctx.Done(). It returns
// the derived context to run the task with; the caller must call done
// when the task finishes (success, failure, or cancellation) so the
// registry can forget it.
func (r *Registry) Register(parent context.Context, key Key) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)
	e := &entry{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	ek := entityKey(key.Topic, key.EntityID)
	byOrder, ok := r.byEntity[ek]
	if !ok {
		byOrder = make(map[int64]map[string]*entry)
		r.byEntity[ek] = byOrder
	}
	byName, ok := byOrder[key.OrderID]
	if !ok {
		byName = make(map[string]*entry)
		byOrder[key.OrderID] = byName
	}
	byName[key.Name] = e
	r.mu.Unlock()

	return ctx, func() {
		close(e.done)
		r.mu.Lock()
		defer r.mu.Unlock()
		if byOrder, ok := r.byEntity[ek]; ok {
			if byName, ok := byOrder[key.OrderID]; ok {
				delete(byName, key.Name)
				if len(byName) == 0 {
					delete(byOrder, key.OrderID)
				}
			}
			if len(byOrder) == 0 {
				delete(r.byEntity, ek)
			}
		}
	}
}

// CancelAll cancels every task currently registered for (topic,
// entityID) and clears them from the registry, matching
// cancel_tasks's semantics exactly: it calls each task's cancel
// function and then empties the tracked set for that entity,
// regardless of whether the cancellation actually took effect before
// the task had already finished on its own.
func (r *Registry) CancelAll(topic, entityID string) {
	r.mu.Lock()
	ek := entityKey(topic, entityID)
	byOrder := r.byEntity[ek]
	delete(r.byEntity, ek)
	r.mu.Unlock()

	for _, byName := range byOrder {
		for _, e := range byName {
			e.cancel()
		}
	}
}

// Count returns the number of tasks currently tracked, across every
// topic and entity, for the active-tasks gauge.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, byOrder := range r.byEntity {
		for _, byName := range byOrder {
			n += len(byName)
		}
	}
	return n
}

// Snapshot returns the task names currently tracked for (topic,
// entityID), for the adminapi "show" endpoint.
func (r *Registry) Snapshot(topic, entityID string) map[int64][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64][]string)
	for orderID, byName := range r.byEntity[entityKey(topic, entityID)] {
		for name := range byName {
			out[orderID] = append(out[orderID], name)
		}
	}
	return out
}

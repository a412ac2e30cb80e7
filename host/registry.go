package host

import (
	"fmt"

	"github.com/vnetsim/vnetsim-core/event"
)

// Registry is the single owner of every Host in a simulation, keyed by
// stable HostID. Everything else refers to hosts by ID and indexes into
// the registry, never by holding its own owning handle.
type Registry struct {
	byID map[event.HostID]*Host
	// order preserves add_host call order for All, so the initial
	// worker-shuffle assignment is deterministic given a seed.
	order []event.HostID
}

// NewRegistry creates an empty host registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[event.HostID]*Host)}
}

// Add registers h. Errors if a host with the same derived ID (i.e. the
// same name) already exists; registration happens before the simulation
// starts, so the caller treats this as fatal.
func (r *Registry) Add(h *Host) error {
	if _, exists := r.byID[h.ID]; exists {
		return fmt.Errorf("host registry: duplicate host name %q", h.Name)
	}
	r.byID[h.ID] = h
	r.order = append(r.order, h.ID)
	return nil
}

// Get looks up a host by ID.
func (r *Registry) Get(id event.HostID) *Host {
	return r.byID[id]
}

// Len reports the number of registered hosts.
func (r *Registry) Len() int {
	return len(r.byID)
}

// All returns every registered host in add_host order.
func (r *Registry) All() []*Host {
	hosts := make([]*Host, 0, len(r.order))
	for _, id := range r.order {
		hosts = append(hosts, r.byID[id])
	}
	return hosts
}

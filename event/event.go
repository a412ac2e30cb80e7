// Package event defines the time-tagged, host-addressed unit of work that
// flows through the simulation core, and the total order used to make
// delivery deterministic.
package event

import (
	"hash/fnv"

	"github.com/vnetsim/vnetsim-core/vtime"
)

// HostID stably identifies a host. It is derived from the host's name so
// that IDs are reproducible across runs without a central allocator.
type HostID uint64

// ExternalSenderID marks an event as having no host sender, e.g. a
// workload generator's external packet arrival. A host name hashes to
// this value only by an FNV-1a coincidence, and host.Registry.Add does not
// check for it.
const ExternalSenderID HostID = 0

// DeriveHostID hashes a host name into a stable HostID. Two hosts with the
// same name collide by construction; callers must reject duplicate names
// at registration (see host.Registry.Add).
func DeriveHostID(name string) HostID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return HostID(h.Sum64())
}

// Event is immutable once pushed into a host queue. Sequence is assigned at
// push time from the sender host's deterministic counter (not the
// receiver's), so that events from the same sender preserve send order at
// the receiver while inter-sender ties remain broken by receiver ID.
type Event struct {
	Time     vtime.SimulationTime
	Sequence uint64
	Sender   *HostID
	Receiver HostID
	Payload  any
}

// Less implements the total order (time, receiver, sequence). No two
// distinct events compare equal under it.
func Less(a, b *Event) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if a.Receiver != b.Receiver {
		return a.Receiver < b.Receiver
	}
	return a.Sequence < b.Sequence
}

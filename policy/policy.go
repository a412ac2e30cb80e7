// Package policy implements the scheduling-policy variants: strategies
// that assign hosts to workers and route pushed events to the right
// place. All variants honor the per-receiver total order from event.Less;
// they differ only in cross-receiver ordering and lock contention
// profile.
package policy

import (
	"fmt"
	"sync/atomic"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// Tag names a scheduling-policy variant, matching the configuration
// surface.
type Tag string

const (
	TagSerial        Tag = "serial"
	TagHost          Tag = "host"
	TagSteal         Tag = "steal"
	TagThreadSingle  Tag = "thread-single"
	TagThreadPerPair Tag = "thread-per-thread"
	TagThreadPerHost Tag = "thread-per-host"
)

// Steal reports whether tag allows a worker with an empty ready queue to
// take over a peer worker's host share for the current round.
func (t Tag) Steal() bool { return t == TagSteal }

// Stats counts the fate of every event pushed through a policy over a
// whole run.
type Stats struct {
	Pushed    uint64
	Clamped   uint64
	Discarded uint64
}

// statCounters is the atomic backing the per-variant Stats implementations
// share.
type statCounters struct {
	pushed    atomic.Uint64
	clamped   atomic.Uint64
	discarded atomic.Uint64
}

func (c *statCounters) record(res hostqueue.PushResult) {
	c.pushed.Add(1)
	switch res {
	case hostqueue.Clamped:
		c.clamped.Add(1)
	case hostqueue.Discarded:
		c.discarded.Add(1)
	}
}

func (c *statCounters) snapshot() Stats {
	return Stats{
		Pushed:    c.pushed.Load(),
		Clamped:   c.clamped.Load(),
		Discarded: c.discarded.Load(),
	}
}

// Policy routes events between hosts and carves the host set into
// per-worker shares. Registry is a host.Registry owner-view passed at
// construction; Policy itself only indexes into it.
type Policy interface {
	// AssignHost binds host h to worker w. Returns an error if h is
	// already assigned; assignment is immutable once set.
	AssignHost(h *host.Host, w hostqueue.WorkerID) error
	// AssignedHosts returns the hosts assigned to worker w, for that
	// worker's own use when draining its share of work.
	AssignedHosts(w hostqueue.WorkerID) []*host.Host
	// Push routes a newly-created event to its receiver, applying the
	// barrier-clamping rule when sender and receiver are on different
	// workers.
	Push(sender, receiver event.HostID, time vtime.SimulationTime, payload any)
	// NextTime returns the smallest pending event time known to the
	// policy across every host it manages, or the Invalid sentinel if
	// nothing is pending.
	NextTime() vtime.SimulationTime
	// Stats reports push/clamp/discard counts accumulated so far.
	Stats() Stats
}

// EventSource is implemented by the variants that route events into
// shared queues (global or per-thread-pair) instead of per-host queues.
// The round scheduler drains these one event at a time rather than
// through the per-host execute loop.
type EventSource interface {
	// PopForWorker removes and returns the earliest event addressed to
	// worker w with time < barrier, or nil if none is ready.
	PopForWorker(w hostqueue.WorkerID, barrier vtime.SimulationTime) *event.Event
}

// Config carries the construction-time parameters shared by every variant.
type Config struct {
	NWorkers       int
	MaxConcurrency int
	EndTime        vtime.SimulationTime
	RoundBarrier   *vtime.SimulationTime // updated by the round scheduler each round
	Registry       *host.Registry
}

// barrierOf reads the current round barrier. A nil RoundBarrier means no
// round has started yet; treat that as barrier 0 so any push before start
// is accepted as-is.
func (c Config) barrierOf() vtime.SimulationTime {
	if c.RoundBarrier == nil {
		return 0
	}
	return *c.RoundBarrier
}

// New constructs the policy named by tag. Construction fails if tag is
// steal and NWorkers exceeds a positive MaxConcurrency (the steal spin
// loop needs a spare core; a MaxConcurrency of 0 sets no cap), or if tag
// is serial with more than one worker.
func New(tag Tag, cfg Config) (Policy, error) {
	switch tag {
	case TagSerial:
		if cfg.NWorkers > 1 {
			return nil, fmt.Errorf("policy: serial is single-threaded, got n_workers=%d", cfg.NWorkers)
		}
		return newSerialPolicy(cfg), nil
	case TagHost:
		return newHostPolicy(cfg), nil
	case TagSteal:
		if cfg.MaxConcurrency > 0 && cfg.NWorkers > cfg.MaxConcurrency {
			return nil, fmt.Errorf("policy: steal requires n_workers (%d) <= max_concurrency (%d)", cfg.NWorkers, cfg.MaxConcurrency)
		}
		return newHostPolicy(cfg), nil
	case TagThreadSingle:
		return newThreadSinglePolicy(cfg), nil
	case TagThreadPerPair:
		return newThreadPerPairPolicy(cfg), nil
	case TagThreadPerHost:
		return newThreadPerHostPolicy(cfg), nil
	default:
		return nil, fmt.Errorf("policy: unknown tag %q", tag)
	}
}

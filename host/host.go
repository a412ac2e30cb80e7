// Package host implements the host facade: the opaque object the core
// drives one execute-call-per-round, wrapping a per-host event queue, a
// lock, a deterministic sequence counter, and the pluggable Handler that
// supplies actual host behavior.
package host

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// Pusher is how a host's Handler emits new events. Implemented by the
// scheduling policy in use (see the policy package); kept as a narrow
// interface here so host does not import policy.
type Pusher interface {
	Push(sender event.HostID, receiver event.HostID, time vtime.SimulationTime, payload any)
}

// ExecContext is handed to a Handler for the duration of one event or boot
// call. It is only valid for that call; do not retain it.
type ExecContext struct {
	Host *Host
	// Now is the EmulatedTime at which the current event fires (or the
	// host's current clock, during Boot).
	Now vtime.EmulatedTime

	push Pusher
}

// Emit schedules payload for delivery to receiver at time, attributed to
// the executing host as sender. Subject to barrier clamping by the policy
// if receiver runs on a different worker.
func (c *ExecContext) Emit(receiver event.HostID, time vtime.SimulationTime, payload any) {
	c.push.Push(c.Host.ID, receiver, time, payload)
}

// Handler supplies the behavior a host executes. The core never interprets
// payloads; Handler.Handle does.
type Handler interface {
	// Boot runs once, during the host's first execute call.
	Boot(ctx *ExecContext)
	// Handle runs the payload of a single popped event.
	Handle(ctx *ExecContext, payload any)
}

// Stats accumulates the per-host counters surfaced after finish: events
// processed, faults, and, if the host exited, the time at which it did.
type Stats struct {
	Processed    int
	FaultCount   int
	Exited       bool
	ExitedAtTime vtime.SimulationTime
}

// Host is the facade the round scheduler and workers operate on. Exactly
// one worker owns a Host's queue for the round; cross-worker pushes go
// through Queue, which is independently locked.
type Host struct {
	ID      event.HostID
	Name    string
	Queue   *hostqueue.Queue
	Handler Handler

	// CorrelationID is a run-unique identifier for this host, attached to
	// its log lines so a fault can be traced back to one host across a run
	// without relying on Name staying unique across re-runs.
	CorrelationID uuid.UUID

	// roundLock is the "lock host" step of the worker inner loop: the
	// worker that owns this host for the round holds it across execute
	// calls and the following NextEventTime read. Reentrant, so a Handler
	// that calls back into a lock-taking host operation mid-event does
	// not deadlock. Queue carries its own mutex for cross-worker pushes.
	roundLock recursiveMutex

	// Worker is set exactly once, before the first round, and never
	// changes afterward: hosts do not migrate between workers.
	Worker       hostqueue.WorkerID
	workerIsSet  bool
	seq          uint64
	clock        vtime.SimulationTime
	booted       bool
	exiting      bool
	exitedAtTime vtime.SimulationTime
	processed    int
	faultCount   int
}

// New creates a host with the given stable name and behavior.
func New(name string, h Handler) *Host {
	return &Host{
		ID:            event.DeriveHostID(name),
		Name:          name,
		Queue:         hostqueue.New(),
		Handler:       h,
		CorrelationID: uuid.New(),
	}
}

// AssignWorker binds the host to a worker for the remainder of the
// simulation. Returns an error if called twice.
func (h *Host) AssignWorker(w hostqueue.WorkerID) error {
	if h.workerIsSet {
		return fmt.Errorf("host %q: worker already assigned (%d), cannot reassign to %d", h.Name, h.Worker, w)
	}
	h.Worker = w
	h.workerIsSet = true
	return nil
}

// NextSequence returns the next value of this host's monotonic send
// counter. Called by the policy when this host is the sender of a pushed
// event: sequence numbers come from the sender, not the receiver, so
// events from one sender preserve send order at any receiver.
func (h *Host) NextSequence() uint64 {
	h.seq++
	return h.seq
}

// ensureBooted runs the Handler's one-time Boot on the first execute call.
func (h *Host) ensureBooted(push Pusher) {
	if h.booted {
		return
	}
	h.booted = true
	h.runGuarded(func(ctx *ExecContext) { h.Handler.Boot(ctx) }, vtime.ToEmulated(h.clock), push)
}

// Boot runs the Handler's one-time startup if it has not already run.
// The round scheduler calls this for every host during its boot task;
// execute calls also boot lazily, so either order is safe.
func (h *Host) Boot(push Pusher) {
	if h.exiting {
		return
	}
	h.ensureBooted(push)
}

// Execute drains every event in the queue with time < barrier, in order,
// running each one's payload, and returns how many ran. A no-op if the
// host has exited; a faulting event is logged and dropped, not fatal.
//
// Postcondition: the queue's earliest remaining event, if any, has
// time >= barrier, and the host's clock is the last executed event's time.
func (h *Host) Execute(barrier vtime.SimulationTime, push Pusher) int {
	n := 0
	for h.ExecuteNext(barrier, push) {
		n++
	}
	return n
}

// ExecuteNext runs the single earliest queued event if its time is before
// barrier, reporting whether one ran. The round scheduler uses this to
// interleave a worker's hosts in merged time order, so that an event a
// host emits mid-round to a same-worker peer that already ran its earlier
// events still fires this round, and never behind the receiver's clock.
func (h *Host) ExecuteNext(barrier vtime.SimulationTime, push Pusher) bool {
	if h.exiting {
		return false
	}
	h.ensureBooted(push)
	head := h.Queue.Peek()
	if head == nil || head.Time >= barrier {
		return false
	}
	e := h.Queue.Pop()
	h.runEvent(e, push)
	return true
}

// runEvent advances the host clock to e.Time and runs e's payload. An
// event behind the host's clock means the queue invariant was broken
// upstream; that is unrecoverable, so it panics rather than reorders.
func (h *Host) runEvent(e *event.Event, push Pusher) {
	if e.Time < h.clock {
		panic(fmt.Sprintf("host %q: event at t=%d is behind the host clock t=%d", h.Name, e.Time, h.clock))
	}
	h.clock = e.Time
	h.processed++
	payload := e.Payload
	h.runGuarded(func(ctx *ExecContext) { h.Handler.Handle(ctx, payload) }, vtime.ToEmulated(e.Time), push)
}

// RunEvent executes one event that was routed outside the host's own
// queue: the global-queue and per-thread-queue policies deliver events
// directly instead of enqueueing them per host. Boot and exit handling
// match ExecuteNext.
func (h *Host) RunEvent(e *event.Event, push Pusher) {
	if h.exiting {
		return
	}
	h.ensureBooted(push)
	h.runEvent(e, push)
}

// runGuarded calls fn, converting a panic from Handler code into a logged,
// counted fault rather than letting it crash the round.
func (h *Host) runGuarded(fn func(ctx *ExecContext), now vtime.EmulatedTime, push Pusher) {
	defer func() {
		if r := recover(); r != nil {
			h.faultCount++
			logrus.Warnf("[host %s %s] event execution faulted and was dropped: %v", h.Name, h.CorrelationID, r)
		}
	}()
	fn(&ExecContext{Host: h, Now: now, push: push})
}

// Lock acquires the host for the round: the worker that owns this host's
// share holds this across execute calls and the following NextEventTime
// read. Reentrant: the goroutine already holding the lock may Lock again
// and must balance every Lock with an Unlock.
func (h *Host) Lock() { h.roundLock.Lock() }

// Unlock releases one Lock acquisition by the owning goroutine.
func (h *Host) Unlock() { h.roundLock.Unlock() }

// NextEventTime returns the queue head's absolute time, or the Invalid
// sentinel if the queue is empty.
func (h *Host) NextEventTime() vtime.EmulatedTime {
	head := h.Queue.Peek()
	if head == nil {
		return vtime.EmulatedTime(vtime.Invalid)
	}
	return vtime.ToEmulated(head.Time)
}

// MarkExiting declares the host's managed processes dead. Subsequent
// execute calls become no-ops.
func (h *Host) MarkExiting(at vtime.SimulationTime) {
	h.exiting = true
	h.exitedAtTime = at
}

// Stats reports this host's counters for post-finish reporting.
func (h *Host) Stats() Stats {
	return Stats{
		Processed:    h.processed,
		FaultCount:   h.faultCount,
		Exited:       h.exiting,
		ExitedAtTime: h.exitedAtTime,
	}
}

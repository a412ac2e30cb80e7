package policy

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// serialHeap is the single global priority queue the "serial" tag uses,
// in contrast to hostPolicy's one-queue-per-host scheme.
type serialHeap []*event.Event

func (h serialHeap) Len() int            { return len(h) }
func (h serialHeap) Less(i, j int) bool  { return event.Less(h[i], h[j]) }
func (h serialHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *serialHeap) Push(x interface{}) { *h = append(*h, x.(*event.Event)) }
func (h *serialHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// serialPolicy implements the "serial" tag: one global locked priority
// queue, popped in global time order by a single worker. Unlike
// hostPolicy it does not give each host its own queue; construction
// rejects more than one worker.
type serialPolicy struct {
	cfg      Config
	mu       sync.Mutex
	heap     serialHeap
	hosts    []*host.Host
	extSeq   atomic.Uint64
	counters statCounters
}

func newSerialPolicy(cfg Config) *serialPolicy {
	p := &serialPolicy{cfg: cfg, heap: make(serialHeap, 0)}
	heap.Init(&p.heap)
	return p
}

func (p *serialPolicy) AssignHost(h *host.Host, w hostqueue.WorkerID) error {
	if err := h.AssignWorker(w); err != nil {
		return err
	}
	p.hosts = append(p.hosts, h)
	return nil
}

func (p *serialPolicy) AssignedHosts(w hostqueue.WorkerID) []*host.Host {
	return p.hosts
}

func (p *serialPolicy) Push(sender, receiver event.HostID, time vtime.SimulationTime, payload any) {
	if time >= p.cfg.EndTime {
		p.counters.record(hostqueue.Discarded)
		return
	}
	var seq uint64
	var senderPtr *event.HostID
	if sender == event.ExternalSenderID {
		seq = p.extSeq.Add(1)
	} else if senderHost := p.cfg.Registry.Get(sender); senderHost != nil {
		seq = senderHost.NextSequence()
		s := sender
		senderPtr = &s
	} else {
		seq = p.extSeq.Add(1)
	}
	e := &event.Event{Time: time, Sequence: seq, Sender: senderPtr, Receiver: receiver, Payload: payload}
	p.mu.Lock()
	heap.Push(&p.heap, e)
	p.mu.Unlock()
	p.counters.record(hostqueue.Accepted)
}

// Pop removes and returns the globally earliest event, or nil if empty.
func (p *serialPolicy) Pop() *event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&p.heap).(*event.Event)
}

// PopForWorker returns the globally earliest event with time < barrier,
// or nil if none is ready. The worker argument is ignored: there is only
// one queue and one worker in serial mode.
func (p *serialPolicy) PopForWorker(_ hostqueue.WorkerID, barrier vtime.SimulationTime) *event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heap.Len() == 0 || p.heap[0].Time >= barrier {
		return nil
	}
	return heap.Pop(&p.heap).(*event.Event)
}

func (p *serialPolicy) NextTime() vtime.SimulationTime {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heap.Len() == 0 {
		return vtime.SimulationTime(vtime.Invalid)
	}
	return p.heap[0].Time
}

func (p *serialPolicy) Stats() Stats {
	return p.counters.snapshot()
}

package host

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/vtime"
)

type recordingHandler struct {
	booted  bool
	handled []any
	emit    func(ctx *ExecContext)
}

func (r *recordingHandler) Boot(ctx *ExecContext) { r.booted = true }
func (r *recordingHandler) Handle(ctx *ExecContext, payload any) {
	r.handled = append(r.handled, payload)
	if r.emit != nil {
		r.emit(ctx)
	}
}

type noopPusher struct{}

func (noopPusher) Push(sender, receiver event.HostID, time vtime.SimulationTime, payload any) {}

func TestExecuteBootsOnce(t *testing.T) {
	rh := &recordingHandler{}
	h := New("alice", rh)
	h.Execute(100, noopPusher{})
	require.True(t, rh.booted)
	rh.booted = false
	h.Execute(200, noopPusher{})
	require.False(t, rh.booted, "boot must only run on the first execute")
}

func TestExecuteDrainsEventsBeforeBarrierInOrder(t *testing.T) {
	rh := &recordingHandler{}
	h := New("alice", rh)
	h.Queue.Push(&event.Event{Time: 10, Receiver: h.ID, Payload: "a"}, 0, 0, 1000, 100000)
	h.Queue.Push(&event.Event{Time: 5, Receiver: h.ID, Payload: "b"}, 0, 0, 1000, 100000)
	h.Queue.Push(&event.Event{Time: 50, Receiver: h.ID, Payload: "c"}, 0, 0, 1000, 100000)

	h.Execute(20, noopPusher{})

	require.Equal(t, []any{"b", "a"}, rh.handled, "only events with time < barrier run, in time order")
	require.Equal(t, 1, h.Queue.Len(), "event at t=50 remains queued")
}

func TestExecuteIsNoopAfterExiting(t *testing.T) {
	rh := &recordingHandler{}
	h := New("alice", rh)
	h.Queue.Push(&event.Event{Time: 5, Receiver: h.ID, Payload: "a"}, 0, 0, 1000, 100000)
	h.MarkExiting(0)
	h.Execute(20, noopPusher{})
	require.Empty(t, rh.handled)
	require.True(t, h.Stats().Exited)
}

func TestFaultingHandlerIsLoggedAndDropped(t *testing.T) {
	rh := &recordingHandler{emit: func(ctx *ExecContext) { panic("boom") }}
	h := New("alice", rh)
	h.Queue.Push(&event.Event{Time: 5, Receiver: h.ID, Payload: "a"}, 0, 0, 1000, 100000)
	h.Queue.Push(&event.Event{Time: 6, Receiver: h.ID, Payload: "b"}, 0, 0, 1000, 100000)

	require.NotPanics(t, func() { h.Execute(20, noopPusher{}) })
	require.Equal(t, 2, h.Stats().FaultCount)
	require.Equal(t, []any{"a", "b"}, rh.handled, "host continues with the next event after a fault")
}

func TestNextEventTimeReportsInvalidWhenEmpty(t *testing.T) {
	h := New("alice", &recordingHandler{})
	require.Equal(t, vtime.Invalid, uint64(h.NextEventTime()))
	h.Queue.Push(&event.Event{Time: 5, Receiver: h.ID}, 0, 0, 1000, 100000)
	require.Equal(t, vtime.ToEmulated(5), h.NextEventTime())
}

func TestAssignWorkerIsImmutable(t *testing.T) {
	h := New("alice", &recordingHandler{})
	require.NoError(t, h.AssignWorker(hostqueue.WorkerID(2)))
	err := h.AssignWorker(hostqueue.WorkerID(3))
	require.Error(t, err)
	require.Equal(t, hostqueue.WorkerID(2), h.Worker)
}

func TestLockUnlockGuardsQueueAccess(t *testing.T) {
	h := New("alice", &recordingHandler{})
	h.Queue.Push(&event.Event{Time: 5, Receiver: h.ID}, 0, 0, 1000, 100000)

	h.Lock()
	head := h.Queue.Peek()
	h.Unlock()

	require.NotNil(t, head)
	require.Equal(t, vtime.SimulationTime(5), head.Time)
}

func TestBootRunsStartupExactlyOnce(t *testing.T) {
	rh := &recordingHandler{}
	h := New("alice", rh)
	h.Boot(noopPusher{})
	require.True(t, rh.booted)
	rh.booted = false
	h.Boot(noopPusher{})
	h.Execute(100, noopPusher{})
	require.False(t, rh.booted, "startup never reruns, from Boot or Execute")
}

func TestRunEventAdvancesClockAndCounts(t *testing.T) {
	rh := &recordingHandler{}
	h := New("alice", rh)
	h.RunEvent(&event.Event{Time: 7, Receiver: h.ID, Payload: "x"}, noopPusher{})
	require.Equal(t, []any{"x"}, rh.handled)
	require.Equal(t, 1, h.Stats().Processed)
}

func TestRunEventPanicsWhenBehindHostClock(t *testing.T) {
	rh := &recordingHandler{}
	h := New("alice", rh)
	h.RunEvent(&event.Event{Time: 50, Receiver: h.ID}, noopPusher{})
	require.Panics(t, func() {
		h.RunEvent(&event.Event{Time: 10, Receiver: h.ID}, noopPusher{})
	}, "an event behind the host clock is a broken queue invariant")
}

func TestExecuteNextRunsAtMostOneEvent(t *testing.T) {
	rh := &recordingHandler{}
	h := New("alice", rh)
	h.Queue.Push(&event.Event{Time: 5, Receiver: h.ID, Payload: "a"}, 0, 0, 1000, 100000)
	h.Queue.Push(&event.Event{Time: 6, Receiver: h.ID, Payload: "b"}, 0, 0, 1000, 100000)

	require.True(t, h.ExecuteNext(20, noopPusher{}))
	require.Equal(t, []any{"a"}, rh.handled)
	require.True(t, h.ExecuteNext(20, noopPusher{}))
	require.False(t, h.ExecuteNext(20, noopPusher{}), "queue drained below the barrier")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(New("alice", &recordingHandler{})))
	err := r.Add(New("alice", &recordingHandler{}))
	require.Error(t, err)
	require.Equal(t, 1, r.Len())
}

package round

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/policy"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// selfTickingHandler schedules itself a tick 10ns after boot, and after
// each tick it fires, reschedules another tick 10ns later, up to a fixed
// number of ticks.
type selfTickingHandler struct {
	maxTicks int
	handled  []vtime.SimulationTime
}

func (h *selfTickingHandler) Boot(ctx *host.ExecContext) {
	ctx.Emit(ctx.Host.ID, 10, nil)
}

func (h *selfTickingHandler) Handle(ctx *host.ExecContext, payload any) {
	now := vtime.ToSimulation(ctx.Now)
	h.handled = append(h.handled, now)
	if len(h.handled) < h.maxTicks {
		ctx.Emit(ctx.Host.ID, now+10, nil)
	}
}

func buildScheduler(t *testing.T, nWorkers int, handler *selfTickingHandler, onFinish OnFinish) (*Scheduler, *vtime.SimulationTime) {
	t.Helper()
	registry := host.NewRegistry()
	require.NoError(t, registry.Add(host.New("alice", handler)))

	barrier := new(vtime.SimulationTime)
	cfg := policy.Config{
		NWorkers:     nWorkers,
		EndTime:      1_000_000,
		RoundBarrier: barrier,
		Registry:     registry,
	}
	pol, err := policy.New(policy.TagHost, cfg)
	require.NoError(t, err)

	s := New(registry, pol, Options{
		NWorkers: nWorkers,
		NCPUs:    1,
		Barrier:  barrier,
		EndTime:  cfg.EndTime,
		OnFinish: onFinish,
	})
	return s, barrier
}

func TestLifecycleRejectsOutOfOrderCalls(t *testing.T) {
	s, _ := buildScheduler(t, 1, &selfTickingHandler{maxTicks: 1}, nil)
	require.Error(t, s.BootHosts(), "cannot boot before Start")
	require.Error(t, s.ContinueRound(0, 10), "cannot continue before Start/BootHosts")

	require.NoError(t, s.Start())
	require.Equal(t, HostsAssigned, s.State())
	require.Error(t, s.Start(), "Start is not idempotent")

	require.NoError(t, s.BootHosts())
	require.Equal(t, Ready, s.State())
	require.Error(t, s.BootHosts(), "BootHosts runs once")

	_, err := s.AwaitRound()
	require.Error(t, err, "cannot await before ContinueRound")
}

func TestRoundDrainsScheduledEventsAndReportsMinNext(t *testing.T) {
	handler := &selfTickingHandler{maxTicks: 3}
	s, _ := buildScheduler(t, 1, handler, nil)
	defer s.Finish()

	require.NoError(t, s.Start())
	require.NoError(t, s.BootHosts())

	require.NoError(t, s.ContinueRound(0, 5))
	min, err := s.AwaitRound()
	require.NoError(t, err)
	require.Equal(t, vtime.SimulationTime(10), min, "tick at t=10 not yet reached by barrier 5")
	require.Empty(t, handler.handled)

	require.NoError(t, s.ContinueRound(5, 20))
	min, err = s.AwaitRound()
	require.NoError(t, err)
	require.Equal(t, []vtime.SimulationTime{10}, handler.handled)
	require.Equal(t, vtime.SimulationTime(20), min, "rescheduled tick lands exactly on the barrier, so it stays queued")

	require.NoError(t, s.ContinueRound(20, 21))
	min, err = s.AwaitRound()
	require.NoError(t, err)
	require.Equal(t, []vtime.SimulationTime{10, 20}, handler.handled)
	require.Equal(t, vtime.SimulationTime(30), min, "rescheduled tick at t=30 lands past this round's barrier")
	require.Equal(t, 3, s.Rounds())
}

func TestStandaloneModeWithZeroWorkers(t *testing.T) {
	handler := &selfTickingHandler{maxTicks: 2}
	s, _ := buildScheduler(t, 0, handler, nil)
	defer s.Finish()

	require.NoError(t, s.Start())
	require.NoError(t, s.BootHosts())
	require.NoError(t, s.ContinueRound(0, 11))
	min, err := s.AwaitRound()
	require.NoError(t, err)
	require.Equal(t, []vtime.SimulationTime{10}, handler.handled)
	require.Equal(t, vtime.SimulationTime(20), min)
}

func TestFinishRunsOnFinishHookFromWorkerContext(t *testing.T) {
	var calls atomic.Int32
	s, _ := buildScheduler(t, 2, &selfTickingHandler{maxTicks: 1}, func() { calls.Add(1) })
	require.NoError(t, s.Start())
	require.NoError(t, s.BootHosts())
	require.NoError(t, s.Finish())
	require.EqualValues(t, 2, calls.Load(), "hook runs once per worker")
	require.Equal(t, Finished, s.State())
}

// sendToPeerHandler ticks itself once at bootAt, and on its first handled
// event emits one message to peer at sendAt. It records everything it
// handles.
type sendToPeerHandler struct {
	peer    func() *host.Host
	sendAt  vtime.SimulationTime
	bootAt  vtime.SimulationTime
	handled []vtime.SimulationTime
}

func (h *sendToPeerHandler) Boot(ctx *host.ExecContext) {
	if h.bootAt != 0 {
		ctx.Emit(ctx.Host.ID, h.bootAt, "tick")
	}
}

func (h *sendToPeerHandler) Handle(ctx *host.ExecContext, payload any) {
	h.handled = append(h.handled, vtime.ToSimulation(ctx.Now))
	if h.sendAt != 0 && h.peer != nil {
		ctx.Emit(h.peer().ID, h.sendAt, "from-peer")
		h.sendAt = 0
	}
}

// A same-worker send into the current window must be observed in the same
// round, even when the receiver's earlier events already ran.
func TestSameWorkerInWindowDeliveryLandsInSameRound(t *testing.T) {
	registry := host.NewRegistry()
	var bob *host.Host
	aliceH := &sendToPeerHandler{peer: func() *host.Host { return bob }, bootAt: 30, sendAt: 50}
	bobH := &sendToPeerHandler{bootAt: 10}
	alice := host.New("alice", aliceH)
	bob = host.New("bob", bobH)
	require.NoError(t, registry.Add(alice))
	require.NoError(t, registry.Add(bob))

	barrier := new(vtime.SimulationTime)
	cfg := policy.Config{NWorkers: 1, EndTime: 1000, RoundBarrier: barrier, Registry: registry}
	pol, err := policy.New(policy.TagHost, cfg)
	require.NoError(t, err)

	s := New(registry, pol, Options{NWorkers: 1, NCPUs: 1, Barrier: barrier, EndTime: 1000})
	defer s.Finish()
	require.NoError(t, s.Start())
	require.NoError(t, s.BootHosts())

	// Window [0, 100): bob ticks at 10, alice ticks at 30 and sends to
	// bob at 50. Merged time order means bob's t=50 delivery happens
	// this round, after alice's t=30 tick.
	require.NoError(t, s.ContinueRound(0, 100))
	_, err = s.AwaitRound()
	require.NoError(t, err)
	require.Equal(t, []vtime.SimulationTime{30}, aliceH.handled)
	require.Equal(t, []vtime.SimulationTime{10, 50}, bobH.handled)
}

func TestShuffleAssignmentIsDeterministicPerSeed(t *testing.T) {
	assignments := func(seed int64) map[string]hostqueue.WorkerID {
		registry := host.NewRegistry()
		for i := 0; i < 8; i++ {
			require.NoError(t, registry.Add(host.New(fmt.Sprintf("host-%d", i), &selfTickingHandler{maxTicks: 1})))
		}
		barrier := new(vtime.SimulationTime)
		cfg := policy.Config{NWorkers: 4, EndTime: 1000, RoundBarrier: barrier, Registry: registry}
		pol, err := policy.New(policy.TagHost, cfg)
		require.NoError(t, err)
		s := New(registry, pol, Options{
			NWorkers:   4,
			NCPUs:      1,
			ShuffleRNG: rand.New(rand.NewSource(seed)),
			Barrier:    barrier,
			EndTime:    1000,
		})
		require.NoError(t, s.Start())
		out := make(map[string]hostqueue.WorkerID)
		for _, h := range registry.All() {
			out[h.Name] = h.Worker
		}
		require.NoError(t, s.BootHosts())
		require.NoError(t, s.Finish())
		return out
	}

	first := assignments(42)
	second := assignments(42)
	require.Equal(t, first, second, "same seed, same host-to-worker map")
}

func TestManyHostsSingleLateEventTerminates(t *testing.T) {
	registry := host.NewRegistry()
	handlers := make([]*sendToPeerHandler, 0, 100)
	for i := 0; i < 100; i++ {
		h := &sendToPeerHandler{bootAt: 999_999}
		handlers = append(handlers, h)
		require.NoError(t, registry.Add(host.New(fmt.Sprintf("host-%03d", i), h)))
	}

	barrier := new(vtime.SimulationTime)
	endTime := vtime.SimulationTime(1_000_000)
	cfg := policy.Config{NWorkers: 4, EndTime: endTime, RoundBarrier: barrier, Registry: registry}
	pol, err := policy.New(policy.TagSteal, cfg)
	require.NoError(t, err)

	s := New(registry, pol, Options{NWorkers: 4, NCPUs: 2, Steal: true, Barrier: barrier, EndTime: endTime})
	require.NoError(t, s.Start())
	require.NoError(t, s.BootHosts())

	wEnd := vtime.SimulationTime(1)
	for {
		require.NoError(t, s.ContinueRound(0, wEnd))
		min, err := s.AwaitRound()
		require.NoError(t, err)
		if !min.IsValid() || min >= endTime {
			break
		}
		wEnd = min + 1
		if wEnd > endTime {
			wEnd = endTime
		}
	}
	require.NoError(t, s.Finish())

	for _, h := range handlers {
		require.Equal(t, []vtime.SimulationTime{999_999}, h.handled)
	}
}

package workload

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/vtime"
)

type recordingPusher struct {
	times []vtime.SimulationTime
}

func (p *recordingPusher) Push(sender, receiver event.HostID, time vtime.SimulationTime, payload any) {
	p.times = append(p.times, time)
}

func TestGenerateStopsAtEndTime(t *testing.T) {
	p := &recordingPusher{}
	g := New(p, event.HostID(1), 0.01, 1000, rand.NewSource(1))

	n := g.Generate(func(i int) any { return i })

	require.Equal(t, n, len(p.times))
	for _, tm := range p.times {
		require.Less(t, uint64(tm), uint64(1000))
	}
}

func TestGenerateTimesAreStrictlyIncreasing(t *testing.T) {
	p := &recordingPusher{}
	g := New(p, event.HostID(1), 0.05, 2000, rand.NewSource(42))
	g.Generate(func(i int) any { return nil })

	for i := 1; i < len(p.times); i++ {
		require.Greater(t, uint64(p.times[i]), uint64(p.times[i-1]))
	}
}

func TestGenerateIsDeterministicForSameSeed(t *testing.T) {
	p1 := &recordingPusher{}
	New(p1, event.HostID(1), 0.02, 1000, rand.NewSource(7)).Generate(func(i int) any { return nil })

	p2 := &recordingPusher{}
	New(p2, event.HostID(1), 0.02, 1000, rand.NewSource(7)).Generate(func(i int) any { return nil })

	require.Equal(t, p1.times, p2.times)
}

func TestSendsExternalSenderID(t *testing.T) {
	var sender event.HostID = 99
	p := &recordingPusherCapturingSender{}
	New(p, event.HostID(1), 0.05, 500, rand.NewSource(3)).Generate(func(i int) any { return nil })
	if len(p.senders) > 0 {
		sender = p.senders[0]
	}
	require.Equal(t, event.ExternalSenderID, sender)
}

type recordingPusherCapturingSender struct {
	senders []event.HostID
}

func (p *recordingPusherCapturingSender) Push(sender, receiver event.HostID, time vtime.SimulationTime, payload any) {
	p.senders = append(p.senders, sender)
}

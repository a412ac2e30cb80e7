// Package controller implements the top-level window-growth loop: it owns
// no scheduling state itself, just the arithmetic that grows each round's
// barrier as far as causal safety allows before handing control back to
// the round scheduler.
//
// Each window spans at least the network's minimum path latency. A packet
// leaving any host at time t cannot be observed anywhere before
// t + min_latency, so no causality edge can cross a window of that
// length, and workers may run their hosts fully independently inside it.
package controller

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vnetsim/vnetsim-core/round"
	"github.com/vnetsim/vnetsim-core/topology"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// Metrics summarizes a finished run.
type Metrics struct {
	// Rounds is the number of execution windows the run took.
	Rounds int
	// FinalWindowEnd is the barrier of the last round run.
	FinalWindowEnd vtime.SimulationTime
	// Wall is how long the run took in wall-clock time.
	Wall time.Duration
}

// Controller drives a round.Scheduler from CREATED through FINISHED.
type Controller struct {
	sched      *round.Scheduler
	minLatency vtime.SimulationTime
	endTime    vtime.SimulationTime
	metrics    Metrics
}

// New builds a Controller. If topo has no edges (no latency bound
// exists), the controller runs the whole simulation as a single round
// ending at endTime, since there is nothing to stage the window growth
// against.
func New(sched *round.Scheduler, topo *topology.Graph, endTime vtime.SimulationTime) *Controller {
	minLatency, ok := topo.MinPathLatency()
	if !ok {
		minLatency = endTime
	}
	return &Controller{sched: sched, minLatency: minLatency, endTime: endTime}
}

// Run executes the full lifecycle: assign hosts, boot them, then
// repeatedly grow the round window until the reported next-event time
// reaches end_time or nothing is pending, then finish.
//
// The first window is [0, min_latency): during the boot phase no events
// exist yet across hosts, and this window still lets every host's startup
// events fire; the loop then re-enters until the reported minimum is the
// sentinel or past end_time.
func (c *Controller) Run() error {
	started := time.Now()
	if err := c.sched.Start(); err != nil {
		return err
	}
	if err := c.sched.BootHosts(); err != nil {
		return err
	}

	wStart := vtime.SimulationTime(0)
	wEnd := c.clamp(c.minLatency)
	for {
		if err := c.sched.ContinueRound(wStart, wEnd); err != nil {
			return err
		}
		minNext, err := c.sched.AwaitRound()
		if err != nil {
			return err
		}
		if !minNext.IsValid() || minNext >= c.endTime {
			break
		}
		wStart = wEnd
		wEnd = c.clamp(max(minNext, wStart+c.minLatency))
	}
	c.metrics = Metrics{
		Rounds:         c.sched.Rounds(),
		FinalWindowEnd: wEnd,
		Wall:           time.Since(started),
	}
	logrus.Debugf("controller: finished after %d rounds, window reached %d", c.metrics.Rounds, wEnd)
	return c.sched.Finish()
}

// Metrics reports the summary of the last Run. Zero before Run completes.
func (c *Controller) Metrics() Metrics {
	return c.metrics
}

func (c *Controller) clamp(t vtime.SimulationTime) vtime.SimulationTime {
	if t > c.endTime {
		return c.endTime
	}
	return t
}

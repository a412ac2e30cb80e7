// Package demohost provides a Handler driven by a fixed script of
// (time, payload) entries: a reusable host behavior for demos and tests
// that need something concrete to run end-to-end.
package demohost

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// ScriptEntry is one scheduled self-event: fire payload at time At.
type ScriptEntry struct {
	At      vtime.SimulationTime
	Payload any
}

// Handled records one payload this host processed, with the time it fired.
type Handled struct {
	At      vtime.SimulationTime
	Payload any
}

// ScriptedHost emits every entry in its script to itself during Boot, and
// simply records what it later handles. It never sends to other hosts;
// compose it with a custom Handler when cross-host traffic is needed.
type ScriptedHost struct {
	Name    string
	Script  []ScriptEntry
	Handled []Handled
}

// New builds a ScriptedHost that will self-schedule every entry in script
// during Boot.
func New(name string, script []ScriptEntry) *ScriptedHost {
	return &ScriptedHost{Name: name, Script: script}
}

// Boot schedules every script entry against the host's own ID.
func (s *ScriptedHost) Boot(ctx *host.ExecContext) {
	for _, e := range s.Script {
		ctx.Emit(ctx.Host.ID, e.At, e.Payload)
	}
}

// Handle records the payload and the simulation time it fired at.
func (s *ScriptedHost) Handle(ctx *host.ExecContext, payload any) {
	at := vtime.ToSimulation(ctx.Now)
	s.Handled = append(s.Handled, Handled{At: at, Payload: payload})
	logrus.Debugf("[demohost %s] handled %s at t=%d", s.Name, describe(payload), at)
}

func describe(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", payload)
}

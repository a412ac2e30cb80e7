package vtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToEmulated(t *testing.T) {
	require.Equal(t, Offset, ToEmulated(0))
	require.Equal(t, Offset+500, ToEmulated(500))
}

func TestSub(t *testing.T) {
	a := ToEmulated(1000)
	b := ToEmulated(400)
	require.Equal(t, SimulationTime(600), Sub(a, b))
}

func TestSubPanicsOnBackwardsTime(t *testing.T) {
	require.Panics(t, func() {
		Sub(ToEmulated(100), ToEmulated(200))
	})
}

func TestAddRoundTrips(t *testing.T) {
	start := ToEmulated(0)
	moved := Add(start, 250)
	require.Equal(t, SimulationTime(250), Sub(moved, start))
}

func TestToSimulationRoundTrips(t *testing.T) {
	require.Equal(t, SimulationTime(777), ToSimulation(ToEmulated(777)))
}

func TestToSimulationMapsInvalidToInvalid(t *testing.T) {
	require.Equal(t, SimulationTime(Invalid), ToSimulation(EmulatedTime(Invalid)))
}

func TestInvalidSentinelDisjoint(t *testing.T) {
	require.True(t, SimMax.IsValid())
	require.False(t, SimulationTime(Invalid).IsValid())
	require.False(t, EmulatedTime(Invalid).IsValid())
	require.False(t, EmulatedTime(0).IsValid(), "below Offset is not a valid EmulatedTime")
}

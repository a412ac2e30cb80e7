//go:build linux

package lp

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// PinCurrentThread binds the calling OS thread to cpuID. Pinning is
// advisory: failures (missing CAP_SYS_NICE, sandboxed containers,
// single-core hosts) are logged and otherwise ignored, never fatal.
func PinCurrentThread(cpuID int) {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &set); err != nil {
		logrus.Debugf("lp: SchedSetaffinity(cpu=%d) failed, continuing unpinned: %v", cpuID, err)
	}
}

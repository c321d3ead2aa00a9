//go:build linux

package scheduler

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAllCoresFollowsAffinityMask(t *testing.T) {
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))

	cpus, err := PlacementAllCores.cpus()
	require.NoError(t, err)
	require.Len(t, cpus, set.Count())
	for _, cpu := range cpus {
		assert.True(t, set.IsSet(cpu), "cpu %d is outside the affinity mask", cpu)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() { _ = unix.SchedSetaffinity(0, &set) }()
	for _, cpu := range cpus {
		assert.NoError(t, bindThread(cpu))
	}
}

func TestPhysicalCoresAreAllowed(t *testing.T) {
	cpus, err := PlacementPhysicalCores.cpus()
	if err != nil {
		t.Skipf("no cpu topology: %v", err)
	}
	allowed, err := allowedCPUs()
	require.NoError(t, err)
	assert.Subset(t, allowed, cpus)
}

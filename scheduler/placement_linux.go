//go:build linux

package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const cpuSysfs = "/sys/devices/system/cpu"

// allowedCPUs lists the CPUs in the process affinity mask, which is smaller
// than 0..NumCPU-1 inside a cpuset.
func allowedCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("scheduler: read cpu affinity: %w", err)
	}
	n := set.Count()
	cpus := make([]int, 0, n)
	for cpu := 0; len(cpus) < n; cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

// physicalCores returns the first logical CPU of every (package, core) pair
// listed in sysfs that the process is allowed to run on.
func physicalCores() ([]int, error) {
	allowed, err := allowedCPUs()
	if err != nil {
		return nil, err
	}
	permitted := make(map[int]bool, len(allowed))
	for _, cpu := range allowed {
		permitted[cpu] = true
	}

	dirs, err := filepath.Glob(filepath.Join(cpuSysfs, "cpu[0-9]*"))
	if err != nil {
		return nil, err
	}

	type core struct{ pkg, id int }
	first := make(map[core]int)
	for _, dir := range dirs {
		cpu, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "cpu"))
		if err != nil || !permitted[cpu] {
			continue
		}
		id, err := readInt(filepath.Join(dir, "topology", "core_id"))
		if err != nil {
			continue
		}
		pkg, err := readInt(filepath.Join(dir, "topology", "physical_package_id"))
		if err != nil {
			continue
		}
		k := core{pkg: pkg, id: id}
		if prev, ok := first[k]; !ok || cpu < prev {
			first[k] = cpu
		}
	}
	if len(first) == 0 {
		return nil, fmt.Errorf("scheduler: no cpu topology under %s", cpuSysfs)
	}

	cpus := make([]int, 0, len(first))
	for _, cpu := range first {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	return cpus, nil
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// bindThread pins the calling OS thread to cpu. The caller must hold
// runtime.LockOSThread.
func bindThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

package monitor

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/nikiz24/monitor/v2/instrument"
	"github.com/nikiz24/monitor/v2/metric"
)

// collectSystem reads runtime memory, goroutine and GC statistics plus the
// process RSS and open descriptor count where the platform exposes them.
func collectSystem() metric.Value {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	v := metric.NewValue()
	for _, f := range []metric.Field[uint64]{
		{Name: "memory_alloc_bytes", Value: ms.Alloc},
		{Name: "memory_sys_bytes", Value: ms.Sys},
		{Name: "memory_heap_alloc_bytes", Value: ms.HeapAlloc},
		{Name: "memory_heap_inuse_bytes", Value: ms.HeapInuse},
		{Name: "memory_heap_sys_bytes", Value: ms.HeapSys},
		{Name: "memory_stack_inuse_bytes", Value: ms.StackInuse},
		{Name: "memory_stack_sys_bytes", Value: ms.StackSys},
		{Name: "goroutines_num", Value: uint64(runtime.NumGoroutine())},
		{Name: "gc_runs_total", Value: uint64(ms.NumGC)},
		{Name: "gc_pause_total_ns", Value: ms.PauseTotalNs},
	} {
		_ = v.PushUint(f.Value, f.Name)
	}

	// Add RSS memory usage
	if rss := getProcessRSS(); rss > 0 {
		_ = v.PushUint(rss, "memory_rss_bytes")
	}

	// Add file descriptor count
	if fdCount := getOpenFileDescriptors(); fdCount > 0 {
		_ = v.PushUint(fdCount, "file_descriptors_num")
	}
	return v
}

// RegisterSystemMetrics publishes runtime statistics under <namespace>.system
// on every tick of m.
func RegisterSystemMetrics(m *Monitor) error {
	return m.Registry().Add(m.seriesTag("system", nil), instrument.CollectorFunc(collectSystem))
}

// getProcessRSS returns the RSS (Resident Set Size) memory usage in bytes
func getProcessRSS() uint64 {
	// Try to read from /proc/self/status on Linux
	if data, err := os.ReadFile("/proc/self/status"); err == nil {
		lines := strings.Split(string(data), "\n")
		for _, line := range lines {
			if strings.HasPrefix(line, "VmRSS:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
						return kb * 1024 // Convert KB to bytes
					}
				}
			}
		}
	}
	return 0
}

// getOpenFileDescriptors returns the number of open file descriptors
func getOpenFileDescriptors() uint64 {
	// Try to count files in /proc/self/fd on Linux
	if entries, err := os.ReadDir("/proc/self/fd"); err == nil {
		return uint64(len(entries))
	}
	return 0
}

package scheduler

import (
	"fmt"
)

// Placement is the policy used to pin worker threads to CPUs.
type Placement int

const (
	// PlacementNone leaves scheduling to the Go runtime.
	PlacementNone Placement = iota
	// PlacementPhysicalCores pins workers round-robin on one logical CPU per
	// physical core.
	PlacementPhysicalCores
	// PlacementAllCores pins workers round-robin on every logical CPU the
	// process may run on.
	PlacementAllCores
)

func (p Placement) String() string {
	switch p {
	case PlacementNone:
		return "none"
	case PlacementPhysicalCores:
		return "physical-cores"
	case PlacementAllCores:
		return "all-cores"
	default:
		return fmt.Sprintf("placement(%d)", int(p))
	}
}

// ParsePlacement maps a configuration string to a Placement.
func ParsePlacement(s string) (Placement, error) {
	switch s {
	case "", "none":
		return PlacementNone, nil
	case "physical-cores", "physical":
		return PlacementPhysicalCores, nil
	case "all-cores", "all":
		return PlacementAllCores, nil
	default:
		return PlacementNone, fmt.Errorf("%w: %q", errUnknownPlacement, s)
	}
}

// cpus returns the CPU list workers are pinned to, or nil for no pinning.
func (p Placement) cpus() ([]int, error) {
	switch p {
	case PlacementNone:
		return nil, nil
	case PlacementAllCores:
		return allowedCPUs()
	case PlacementPhysicalCores:
		return physicalCores()
	default:
		return nil, fmt.Errorf("%w: %d", errUnknownPlacement, int(p))
	}
}

package scheduler

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNotInPool is returned when the Current target is used from a
	// goroutine that is not one of the scheduler's workers.
	ErrNotInPool = errors.New("scheduler: caller is not a worker of this scheduler")

	// ErrNoSuchContext is returned for an out of range context index.
	ErrNoSuchContext = errors.New("scheduler: no such context")

	// ErrInvalidPeriod is returned by Schedule for non-positive periods.
	ErrInvalidPeriod = errors.New("scheduler: period must be positive")

	errUnknownPlacement = errors.New("scheduler: unknown placement")
)

// ConfigError reports an invalid thread/context combination.
type ConfigError struct {
	Threads  int
	Contexts int
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scheduler: invalid configuration (threads=%d, contexts=%d): %v", e.Threads, e.Contexts, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func validate(threads, contexts int) error {
	var result *multierror.Error
	if threads < 1 {
		result = multierror.Append(result, fmt.Errorf("threads must be at least 1, got %d", threads))
	}
	if contexts < 1 {
		result = multierror.Append(result, fmt.Errorf("contexts must be at least 1, got %d", contexts))
	}
	if contexts > threads && threads > 0 {
		result = multierror.Append(result, fmt.Errorf("contexts (%d) cannot exceed threads (%d)", contexts, threads))
	} else if contexts > 0 && threads > 0 && threads%contexts != 0 {
		result = multierror.Append(result, fmt.Errorf("threads (%d) must be a multiple of contexts (%d)", threads, contexts))
	}
	if err := result.ErrorOrNil(); err != nil {
		return &ConfigError{Threads: threads, Contexts: contexts, Err: err}
	}
	return nil
}

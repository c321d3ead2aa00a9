//go:build !linux

package scheduler

import "errors"

var errPlacementUnsupported = errors.New("scheduler: thread placement is only supported on linux")

func allowedCPUs() ([]int, error) {
	return nil, errPlacementUnsupported
}

func physicalCores() ([]int, error) {
	return nil, errPlacementUnsupported
}

func bindThread(int) error {
	return errPlacementUnsupported
}

//go:build !linux

package driver

// HasGPUDeviceNodes tries to guess if there is an actual GPU installed.
// It is only implemented for linux, elsewhere it always returns false.
func HasGPUDeviceNodes() bool { return false }

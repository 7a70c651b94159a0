package compute

import (
	"sync"
	"sync/atomic"

	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// instance is the process-wide Manager, nil if absent. Readers load it without locking.
	instance atomic.Pointer[Manager]

	// muInstance serializes the creation and destruction of the process-wide Manager, and protects instanceDriver.
	muInstance     sync.Mutex
	instanceDriver driver.Driver
)

// GetInstance returns the process-wide Manager, creating it on first use (or first use after DestroyInstance).
//
// It uses the driver set with SetInstanceDriver, or driver.New() otherwise, and the device type and visible devices
// configured in the environment.
//
// If the creation fails the error is returned and no instance is kept: the next call tries again.
func GetInstance() (*Manager, error) {
	if m := instance.Load(); m != nil {
		return m, nil
	}
	muInstance.Lock()
	defer muInstance.Unlock()
	if m := instance.Load(); m != nil {
		// Created concurrently while we waited for the lock.
		return m, nil
	}
	drv := instanceDriver
	if drv == nil {
		var err error
		drv, err = driver.New()
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create the driver for the process-wide compute.Manager")
		}
	}
	m, err := NewManager(drv).Done()
	if err != nil {
		return nil, err
	}
	instance.Store(m)
	klog.V(1).Infof("process-wide %s created", m)
	return m, nil
}

// DestroyInstance destroys the process-wide Manager, if there is one. A later GetInstance creates a new one.
//
// The instance is discarded even if releasing its resources fails, in which case the error is returned.
// If there is no instance it is a no-op and returns nil.
//
// Queues and devices previously returned by the instance must not be used after this.
func DestroyInstance() error {
	muInstance.Lock()
	defer muInstance.Unlock()
	m := instance.Swap(nil)
	if m == nil {
		klog.V(2).Infof("compute.DestroyInstance(): no process-wide compute.Manager to destroy")
		return nil
	}
	err := m.Destroy()
	klog.V(1).Infof("process-wide compute.Manager %s destroyed", m.ID())
	return err
}

// HasInstance returns whether the process-wide Manager currently exists.
func HasInstance() bool {
	return instance.Load() != nil
}

// SetInstanceDriver sets the driver used to create the process-wide Manager. Use nil to go back to driver.New().
//
// It returns an error if the instance already exists: call DestroyInstance first.
func SetInstanceDriver(drv driver.Driver) error {
	muInstance.Lock()
	defer muInstance.Unlock()
	if m := instance.Load(); m != nil {
		return errors.Errorf("cannot change the driver of the process-wide compute.Manager while it exists (%s), call compute.DestroyInstance() first", m.ID())
	}
	instanceDriver = drv
	return nil
}

// GetCommandQueue returns the queue in the given slot of the process-wide Manager. See Manager.CommandQueue.
//
// It returns nil, and logs an error, if the process-wide Manager doesn't exist: call GetInstance first.
func GetCommandQueue(index int) *CommandQueue {
	m := instance.Load()
	if m == nil {
		klog.Errorf("compute.GetCommandQueue(%d) called without a process-wide compute.Manager, call compute.GetInstance() first", index)
		return nil
	}
	return m.CommandQueue(index)
}

// GetDevice returns the device in the given slot of the process-wide Manager. See Manager.Device.
//
// It returns nil, and logs an error, if the process-wide Manager doesn't exist: call GetInstance first.
func GetDevice(index int) *Device {
	m := instance.Load()
	if m == nil {
		klog.Errorf("compute.GetDevice(%d) called without a process-wide compute.Manager, call compute.GetInstance() first", index)
		return nil
	}
	return m.Device(index)
}

package compute

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context owns a driver context spanning a list of devices.
type Context struct {
	drv      driver.Driver
	id       driver.ContextID
	devices  []*Device
	released atomic.Bool
}

// createContext creates one context spanning all the given devices.
func createContext(drv driver.Driver, devices []*Device) (*Context, error) {
	ids := make([]driver.DeviceID, len(devices))
	for ii, device := range devices {
		ids[ii] = device.id
	}
	id, status := drv.CreateContext(ids)
	if err := Check(drv, status, "CreateContext"); err != nil {
		return nil, errors.WithMessagef(err, "failed to create a context for %d device(s)", len(devices))
	}
	klog.V(1).Infof("created context %#x for %d device(s)", id, len(devices))
	return &Context{drv: drv, id: id, devices: devices}, nil
}

// ID returns the driver handle of the context. It is no longer valid after Release.
func (c *Context) ID() driver.ContextID {
	return c.id
}

// NumDevices returns the number of devices the context spans.
func (c *Context) NumDevices() int {
	return len(c.devices)
}

// IsReleased returns whether Release has already been called.
func (c *Context) IsReleased() bool {
	return c.released.Load()
}

// Release the context in the driver. Only the first call has any effect, later calls return nil.
//
// Queues created in the context should be released first.
func (c *Context) Release() error {
	if c == nil || c.released.Swap(true) {
		return nil
	}
	if err := Check(c.drv, c.drv.ReleaseContext(c.id), "ReleaseContext"); err != nil {
		return errors.WithMessagef(err, "failed to release context %#x", c.id)
	}
	klog.V(2).Infof("released context %#x", c.id)
	return nil
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("Context[%#x, %d device(s)]", c.id, len(c.devices))
}

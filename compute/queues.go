package compute

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CommandQueue owns a driver command queue bound to one device of a Context.
type CommandQueue struct {
	drv      driver.Driver
	id       driver.QueueID
	device   *Device
	slot     int
	released atomic.Bool
}

// createQueues creates one queue per device, in the order of devices.
//
// It is all-or-nothing: if the creation of any queue fails, the queues already created are released in
// reverse order before returning the error. The context is left untouched.
func createQueues(ctx *Context, devices []*Device) (queues []*CommandQueue, err error) {
	drv := ctx.drv
	queues = make([]*CommandQueue, 0, len(devices))
	defer func() {
		if err == nil {
			return
		}
		for ii := len(queues) - 1; ii >= 0; ii-- {
			if releaseErr := queues[ii].Release(); releaseErr != nil {
				klog.Errorf("failed to release queue #%d while rolling back queue creation: %+v", ii, releaseErr)
			}
		}
		queues = nil
	}()

	for slot, device := range devices {
		id, status := drv.CreateCommandQueue(ctx.id, device.id)
		if err = Check(drv, status, "CreateCommandQueue"); err != nil {
			err = errors.WithMessagef(err, "failed to create command queue #%d (of %d) for device %s",
				slot, len(devices), device)
			return
		}
		queues = append(queues, &CommandQueue{drv: drv, id: id, device: device, slot: slot})
	}
	klog.V(1).Infof("created %d command queue(s) in %s", len(queues), ctx)
	return
}

// ID returns the driver handle of the queue. It is no longer valid after Release.
func (q *CommandQueue) ID() driver.QueueID {
	return q.id
}

// Device the queue dispatches work to.
func (q *CommandQueue) Device() *Device {
	return q.device
}

// Slot returns the index of the queue in its Manager, which is also the index of its device.
func (q *CommandQueue) Slot() int {
	return q.slot
}

// IsReleased returns whether Release has already been called.
func (q *CommandQueue) IsReleased() bool {
	return q.released.Load()
}

// Release the queue in the driver. Only the first call has any effect, later calls return nil.
func (q *CommandQueue) Release() error {
	if q == nil || q.released.Swap(true) {
		return nil
	}
	if err := Check(q.drv, q.drv.ReleaseCommandQueue(q.id), "ReleaseCommandQueue"); err != nil {
		return errors.WithMessagef(err, "failed to release command queue #%d (%#x)", q.slot, q.id)
	}
	klog.V(2).Infof("released command queue #%d (%#x)", q.slot, q.id)
	return nil
}

// String implements fmt.Stringer.
func (q *CommandQueue) String() string {
	return fmt.Sprintf("CommandQueue#%d[%#x]", q.slot, q.id)
}

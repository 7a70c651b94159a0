/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package compute

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/gocompute/driver"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Manager owns one context spanning all the selected devices of a driver, and one command queue per device.
//
// Queue i is bound to device i, for i in [0, NumDevices()). Requests for an index out of range are answered
// with slot 0 and reported to the DiagnosticHandler, they never fail.
//
// It is safe for concurrent use. The queues, devices and context it hands out stay valid until Destroy is
// called, even if the Manager itself is no longer referenced: there is no finalizer, teardown is explicit.
type Manager struct {
	id          uuid.UUID
	drv         driver.Driver
	deviceType  driver.DeviceType
	diagnostics DiagnosticHandler

	mu        sync.RWMutex
	destroyed bool
	devices   []*Device
	context   *Context
	queues    []*CommandQueue
}

// ManagerConfig is created with NewManager, and once configured, call Done to create the Manager.
//
// It is meant to be used only once.
type ManagerConfig struct {
	drv            driver.Driver
	deviceType     driver.DeviceType
	visibleDevices []int
	diagnostics    DiagnosticHandler

	// err is reported by Done: it holds invalid environment configuration.
	err error
}

// NewManager returns a ManagerConfig to configure and create a Manager for the given driver.
// Call ManagerConfig.Done to actually create the Manager.
//
// The defaults for the device type and the visible devices are read from the environment, see package
// documentation.
func NewManager(drv driver.Driver) *ManagerConfig {
	mc := &ManagerConfig{
		drv:         drv,
		diagnostics: LogDiagnostic,
	}
	mc.deviceType, mc.err = deviceTypeFromEnv()
	if mc.err == nil {
		mc.visibleDevices, mc.err = visibleDevicesFromEnv()
	}
	return mc
}

// WithDeviceType selects the class of devices to use. It can be a combination, e.g.
// driver.DeviceTypeGPU|driver.DeviceTypeAccelerator.
//
// It overrides the value of $GOCOMPUTE_DEVICE_TYPE. It returns itself to allow cascading configuration calls.
func (mc *ManagerConfig) WithDeviceType(deviceType driver.DeviceType) *ManagerConfig {
	mc.deviceType = deviceType
	return mc
}

// WithVisibleDevices selects the ordinals of the devices to use, into the list of matching devices across
// all platforms. Use nil to use all matching devices.
//
// It overrides the value of $GOCOMPUTE_VISIBLE_DEVICES. It returns itself to allow cascading configuration calls.
func (mc *ManagerConfig) WithVisibleDevices(ordinals []int) *ManagerConfig {
	mc.visibleDevices = slices.Clone(ordinals)
	return mc
}

// WithDiagnostics sets the handler of the diagnostics of the Manager. The default is LogDiagnostic.
// A nil handler discards diagnostics.
//
// It returns itself to allow cascading configuration calls.
func (mc *ManagerConfig) WithDiagnostics(handler DiagnosticHandler) *ManagerConfig {
	if handler == nil {
		handler = func(Diagnostic) {}
	}
	mc.diagnostics = handler
	return mc
}

// Done selects the devices, creates the context and one queue per device, and returns the Manager owning them.
//
// It either creates everything or nothing: on failure, the resources already created are released before
// returning the error. It returns an error wrapping ErrNoComputeDevice if no device was selected.
func (mc *ManagerConfig) Done() (*Manager, error) {
	if mc.drv == nil {
		return nil, errors.New("misconfigured ManagerConfig, or an attempt of using it more than once, which is not supported -- call compute.NewManager() again")
	}
	drv := mc.drv
	defer func() {
		// Invalidate the config.
		mc.drv = nil
	}()
	if mc.err != nil {
		return nil, mc.err
	}
	if mc.deviceType == 0 {
		return nil, errors.New("compute.NewManager() configured with an empty device type")
	}

	// Fatal steps: failure aborts the construction.
	devices, err := selectDevices(drv, mc.deviceType, mc.visibleDevices)
	if err != nil {
		return nil, err
	}
	ctx, err := createContext(drv, devices)
	if err != nil {
		return nil, err
	}
	queues, err := createQueues(ctx, devices)
	if err != nil {
		if releaseErr := ctx.Release(); releaseErr != nil {
			klog.Errorf("failed to release context while aborting compute.Manager creation: %+v", releaseErr)
		}
		return nil, err
	}

	m := &Manager{
		id:          uuid.New(),
		drv:         drv,
		deviceType:  mc.deviceType,
		diagnostics: mc.diagnostics,
		devices:     devices,
		context:     ctx,
		queues:      queues,
	}
	klog.V(1).Infof("created %s", m)
	return m, nil
}

// Destroy releases every command queue, in order, and then the context. The Manager is left empty, even if
// some of the releases fail: all failures are logged, and the first one is returned.
//
// It is idempotent: calling it again is a no-op that returns nil.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return nil
	}
	m.destroyed = true

	var firstErr error
	var numErrs, numReleases int
	record := func(err error) {
		numReleases++
		if err == nil {
			return
		}
		numErrs++
		klog.Errorf("compute.Manager %s: %+v", m.id, err)
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, queue := range m.queues {
		record(queue.Release())
	}
	record(m.context.Release())
	numDevices := len(m.devices)
	m.queues, m.context, m.devices = nil, nil, nil
	if firstErr != nil {
		return errors.WithMessagef(firstErr, "%d of %d release(s) failed while destroying compute.Manager %s",
			numErrs, numReleases, m.id)
	}
	klog.V(1).Infof("destroyed compute.Manager %s (%d device(s))", m.id, numDevices)
	return nil
}

// IsDestroyed returns whether Destroy has been called.
func (m *Manager) IsDestroyed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.destroyed
}

// ID identifies this Manager. Each Manager created gets a new one, so it can be used to tell apart a
// process-wide instance re-created after DestroyInstance.
func (m *Manager) ID() uuid.UUID {
	return m.id
}

// Driver used by the Manager.
func (m *Manager) Driver() driver.Driver {
	return m.drv
}

// DeviceType the Manager was configured with.
func (m *Manager) DeviceType() driver.DeviceType {
	return m.deviceType
}

// NumDevices returns the number of devices, which is also the number of queues. It is 0 after Destroy.
func (m *Manager) NumDevices() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// Devices returns a copy of the list of devices used, in slot order.
func (m *Manager) Devices() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.devices)
}

// CommandQueues returns a copy of the list of command queues, in slot order.
func (m *Manager) CommandQueues() []*CommandQueue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.queues)
}

// Context shared by all devices of the Manager. It is nil after Destroy.
func (m *Manager) Context() *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.context
}

// CommandQueue returns the queue in the given slot.
//
// If index is out of range, a DiagnosticInvalidSlot is reported and the queue of slot 0 is returned instead.
// It returns nil only if the Manager was destroyed.
func (m *Manager) CommandQueue(index int) *CommandQueue {
	m.mu.RLock()
	queue, diag := lookupSlot(m.queues, m.destroyed, "queue", index)
	m.mu.RUnlock()
	if diag != nil {
		m.diagnostics(*diag)
	}
	return queue
}

// Device returns the device in the given slot.
//
// If index is out of range, a DiagnosticInvalidSlot is reported and the device of slot 0 is returned instead.
// It returns nil only if the Manager was destroyed.
func (m *Manager) Device(index int) *Device {
	m.mu.RLock()
	device, diag := lookupSlot(m.devices, m.destroyed, "device", index)
	m.mu.RUnlock()
	if diag != nil {
		m.diagnostics(*diag)
	}
	return device
}

// lookupSlot returns items[index], or items[0] with a diagnostic if index is out of range.
// The diagnostic is returned instead of emitted, so the handler is not called with the lock held.
func lookupSlot[T any](items []T, destroyed bool, resource string, index int) (item T, diag *Diagnostic) {
	if destroyed || len(items) == 0 {
		return item, &Diagnostic{
			Kind:      DiagnosticDestroyed,
			Resource:  resource,
			Requested: index,
			Used:      -1,
			Err:       errors.Wrapf(ErrDestroyed, "requested %s #%d", resource, index),
		}
	}
	if index >= 0 && index < len(items) {
		return items[index], nil
	}
	return items[0], &Diagnostic{
		Kind:      DiagnosticInvalidSlot,
		Resource:  resource,
		Requested: index,
		Used:      0,
		Err:       errors.Wrapf(ErrInvalidSlotIndex, "requested %s #%d, valid range is [0, %d)", resource, index, len(items)),
	}
}

// String implements fmt.Stringer.
func (m *Manager) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.destroyed {
		return fmt.Sprintf("compute.Manager[%s, driver=%q, destroyed]", m.id, m.drv.Name())
	}
	return fmt.Sprintf("compute.Manager[%s, driver=%q, %d %s device(s)]",
		m.id, m.drv.Name(), len(m.devices), m.deviceType.Flags())
}

// Package sim implements a simulated compute driver, with configurable platforms and devices.
//
// It doesn't execute anything, it only keeps track of the contexts and command queues created and released,
// and it can be configured to fail on specific calls (see Faults). It is used in tests and to run
// gocompute on machines without any compute hardware.
//
// Import it with import _ "github.com/gomlx/gocompute/compute/sim" to make the driver "sim" available, and
// select it with GOCOMPUTE_DRIVER="sim:<config>". See ParseConfig for the configuration format.
package sim

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/gocompute/driver"
	"k8s.io/klog/v2"
)

// DriverName to be used in GOCOMPUTE_DRIVER to select this driver.
const DriverName = "sim"

// Registers the simulated driver as "sim".
func init() {
	driver.Register(DriverName, func(config string) (driver.Driver, error) {
		c, err := ParseConfig(config)
		if err != nil {
			return nil, err
		}
		return New(c), nil
	})
}

// Faults configures which calls of the simulated driver fail, and with which status.
// A Success (zero) status means the call doesn't fail.
type Faults struct {
	PlatformIDs, DeviceIDs, CreateContext driver.Status
	ReleaseCommandQueue, ReleaseContext   driver.Status
	PlatformInfo, DeviceInfo              driver.Status

	// FailQueue, if > 0, makes the FailQueue-th call (1-based, counted from when the faults were set) to
	// CreateCommandQueue fail with QueueStatus (or OutOfResources if QueueStatus is not set).
	FailQueue   int
	QueueStatus driver.Status
}

type device struct {
	id       driver.DeviceID
	platform driver.PlatformID
	info     driver.DeviceInfo
}

type platform struct {
	id      driver.PlatformID
	info    driver.PlatformInfo
	devices []*device
}

// Driver implements driver.Driver with simulated hardware. It is safe for concurrent use.
type Driver struct {
	mu         sync.Mutex
	config     Config
	platforms  []*platform
	devices    map[driver.DeviceID]*device
	contexts   map[driver.ContextID][]driver.DeviceID
	queues     map[driver.QueueID]driver.ContextID
	nextHandle uintptr

	faults     Faults
	queueCalls int
	calls      []string
}

// Compile-time check that sim.Driver implements driver.Driver.
var _ driver.Driver = &Driver{}

// New creates a simulated driver for the given configuration.
func New(config Config) *Driver {
	d := &Driver{
		config:     config,
		devices:    make(map[driver.DeviceID]*device),
		contexts:   make(map[driver.ContextID][]driver.DeviceID),
		queues:     make(map[driver.QueueID]driver.ContextID),
		nextHandle: 0x1000,
	}
	for _, pConfig := range config.Platforms {
		p := &platform{
			id: driver.PlatformID(d.newHandle()),
			info: driver.PlatformInfo{
				Name:    pConfig.Name,
				Vendor:  pConfig.Vendor,
				Version: "OpenCL 1.2 gocompute-sim",
				Profile: "FULL_PROFILE",
			},
		}
		for ii, dConfig := range pConfig.Devices {
			dev := &device{
				id:       driver.DeviceID(d.newHandle()),
				platform: p.id,
				info: driver.DeviceInfo{
					Name:            dConfig.Name,
					Vendor:          pConfig.Vendor,
					Version:         "OpenCL 1.2",
					DriverVersion:   "sim",
					Type:            dConfig.Type,
					MaxComputeUnits: dConfig.ComputeUnits,
					GlobalMemSize:   dConfig.GlobalMemSize,
					Available:       true,
				},
			}
			if ii == 0 {
				// First device of the platform is its default one.
				dev.info.Type |= driver.DeviceTypeDefault
			}
			p.devices = append(p.devices, dev)
			d.devices[dev.id] = dev
		}
		d.platforms = append(d.platforms, p)
	}
	klog.V(1).Infof("created simulated compute driver with %d platforms and %d devices", len(d.platforms), len(d.devices))
	return d
}

// newHandle returns a new unique handle. It must be called with d.mu locked, or during construction.
func (d *Driver) newHandle() uintptr {
	d.nextHandle++
	return d.nextHandle
}

// trace records the call, it must be called with d.mu locked.
func (d *Driver) trace(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// SetFaults configures the calls that will fail from now on. It resets the CreateCommandQueue call count.
func (d *Driver) SetFaults(faults Faults) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = faults
	d.queueCalls = 0
}

// Config returns the configuration used to create the driver.
func (d *Driver) Config() Config {
	return d.config
}

// LiveContexts returns the number of contexts created and not yet released.
func (d *Driver) LiveContexts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contexts)
}

// LiveQueues returns the number of command queues created and not yet released.
func (d *Driver) LiveQueues() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Calls returns the trace of calls made to the driver so far, e.g. "CreateContext(2 devices)=0x1005".
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// ResetCalls clears the trace of calls.
func (d *Driver) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return DriverName }

// PlatformIDs implements driver.Driver.
func (d *Driver) PlatformIDs() ([]driver.PlatformID, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trace("PlatformIDs()")
	if d.faults.PlatformIDs != driver.Success {
		return nil, d.faults.PlatformIDs
	}
	if len(d.platforms) == 0 {
		// Same as the OpenCL ICD loader.
		return nil, driver.PlatformNotFound
	}
	ids := make([]driver.PlatformID, len(d.platforms))
	for ii, p := range d.platforms {
		ids[ii] = p.id
	}
	return ids, driver.Success
}

func (d *Driver) findPlatform(id driver.PlatformID) *platform {
	for _, p := range d.platforms {
		if p.id == id {
			return p
		}
	}
	return nil
}

// DeviceIDs implements driver.Driver.
func (d *Driver) DeviceIDs(platformID driver.PlatformID, deviceType driver.DeviceType) ([]driver.DeviceID, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trace("DeviceIDs(%#x, %s)", platformID, deviceType.Flags())
	if d.faults.DeviceIDs != driver.Success {
		return nil, d.faults.DeviceIDs
	}
	p := d.findPlatform(platformID)
	if p == nil {
		return nil, driver.InvalidPlatform
	}
	if deviceType == 0 {
		return nil, driver.InvalidDeviceType
	}
	var ids []driver.DeviceID
	for _, dev := range p.devices {
		if dev.info.Type&deviceType != 0 {
			ids = append(ids, dev.id)
		}
	}
	if len(ids) == 0 {
		return nil, driver.DeviceNotFound
	}
	return ids, driver.Success
}

// CreateContext implements driver.Driver.
func (d *Driver) CreateContext(devices []driver.DeviceID) (driver.ContextID, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.CreateContext != driver.Success {
		d.trace("CreateContext(%d devices)=%s", len(devices), d.faults.CreateContext)
		return 0, d.faults.CreateContext
	}
	if len(devices) == 0 {
		d.trace("CreateContext(0 devices)=%s", driver.InvalidValue)
		return 0, driver.InvalidValue
	}
	for _, id := range devices {
		if _, found := d.devices[id]; !found {
			d.trace("CreateContext(%d devices)=%s", len(devices), driver.InvalidDevice)
			return 0, driver.InvalidDevice
		}
	}
	id := driver.ContextID(d.newHandle())
	d.contexts[id] = slices.Clone(devices)
	d.trace("CreateContext(%d devices)=%#x", len(devices), id)
	return id, driver.Success
}

// CreateCommandQueue implements driver.Driver.
func (d *Driver) CreateCommandQueue(context driver.ContextID, device driver.DeviceID) (driver.QueueID, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueCalls++
	if d.faults.FailQueue > 0 && d.queueCalls == d.faults.FailQueue {
		status := d.faults.QueueStatus
		if status == driver.Success {
			status = driver.OutOfResources
		}
		d.trace("CreateCommandQueue(%#x, %#x)=%s", context, device, status)
		return 0, status
	}
	contextDevices, found := d.contexts[context]
	if !found {
		d.trace("CreateCommandQueue(%#x, %#x)=%s", context, device, driver.InvalidContext)
		return 0, driver.InvalidContext
	}
	if !slices.Contains(contextDevices, device) {
		d.trace("CreateCommandQueue(%#x, %#x)=%s", context, device, driver.InvalidDevice)
		return 0, driver.InvalidDevice
	}
	id := driver.QueueID(d.newHandle())
	d.queues[id] = context
	d.trace("CreateCommandQueue(%#x, %#x)=%#x", context, device, id)
	return id, driver.Success
}

// ReleaseCommandQueue implements driver.Driver.
func (d *Driver) ReleaseCommandQueue(queue driver.QueueID) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trace("ReleaseCommandQueue(%#x)", queue)
	if d.faults.ReleaseCommandQueue != driver.Success {
		return d.faults.ReleaseCommandQueue
	}
	if _, found := d.queues[queue]; !found {
		return driver.InvalidCommandQueue
	}
	delete(d.queues, queue)
	return driver.Success
}

// ReleaseContext implements driver.Driver.
func (d *Driver) ReleaseContext(context driver.ContextID) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trace("ReleaseContext(%#x)", context)
	if d.faults.ReleaseContext != driver.Success {
		return d.faults.ReleaseContext
	}
	if _, found := d.contexts[context]; !found {
		return driver.InvalidContext
	}
	for queue, queueContext := range d.queues {
		if queueContext == context {
			klog.Warningf("sim: context %#x released while its command queue %#x is still alive", context, queue)
		}
	}
	delete(d.contexts, context)
	return driver.Success
}

// PlatformInfo implements driver.Driver.
func (d *Driver) PlatformInfo(platformID driver.PlatformID) (driver.PlatformInfo, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.PlatformInfo != driver.Success {
		return driver.PlatformInfo{}, d.faults.PlatformInfo
	}
	p := d.findPlatform(platformID)
	if p == nil {
		return driver.PlatformInfo{}, driver.InvalidPlatform
	}
	return p.info, driver.Success
}

// DeviceInfo implements driver.Driver.
func (d *Driver) DeviceInfo(deviceID driver.DeviceID) (driver.DeviceInfo, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.DeviceInfo != driver.Success {
		return driver.DeviceInfo{}, d.faults.DeviceInfo
	}
	dev, found := d.devices[deviceID]
	if !found {
		return driver.DeviceInfo{}, driver.InvalidDevice
	}
	return dev.info, driver.Success
}

var statusDescriptions = map[driver.Status]string{
	driver.Success:             "success",
	driver.DeviceNotFound:      "no devices that matched the requested device type were found",
	driver.DeviceNotAvailable:  "device is currently not available",
	driver.OutOfResources:      "failure to allocate resources required by the simulated device",
	driver.OutOfHostMemory:     "failure to allocate resources on the host",
	driver.InvalidValue:        "invalid value given to the call",
	driver.InvalidDeviceType:   "invalid device type",
	driver.InvalidPlatform:     "invalid platform handle",
	driver.InvalidDevice:       "invalid device handle, or device not part of the context",
	driver.InvalidContext:      "invalid (or already released) context handle",
	driver.InvalidCommandQueue: "invalid (or already released) command queue handle",
	driver.PlatformNotFound:    "no platforms configured",
}

// ErrorString implements driver.Driver.
func (d *Driver) ErrorString(status driver.Status) string {
	if desc, found := statusDescriptions[status]; found {
		return "sim: " + desc
	}
	return fmt.Sprintf("sim: unknown status %d", int32(status))
}

package compute

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Device is a lightweight reference to a compute device -- it doesn't own the underlying object, and
// it remains valid for as long as the driver's platform is installed.
type Device struct {
	drv      driver.Driver
	id       driver.DeviceID
	platform *Platform

	// ordinal is the position of the device in the list of devices selected across all platforms,
	// or -1 if it was listed directly from a platform.
	ordinal int

	infoOnce sync.Once
	info     driver.DeviceInfo
	infoErr  error
}

// ListDevices returns the devices of the given type in the platform, in the driver's enumeration order.
//
// A platform without matching devices is not an error, it simply returns an empty list.
func ListDevices(platform *Platform, deviceType driver.DeviceType) ([]*Device, error) {
	drv := platform.drv
	ids, status := drv.DeviceIDs(platform.id, deviceType)
	if status == driver.DeviceNotFound {
		klog.V(2).Infof("%s has no %s devices", platform, deviceType.Flags())
		return nil, nil
	}
	if err := Check(drv, status, "DeviceIDs"); err != nil {
		return nil, errors.WithMessagef(err, "failed to list %s devices of %s", deviceType.Flags(), platform)
	}
	devices := make([]*Device, len(ids))
	for ii, id := range ids {
		devices[ii] = &Device{drv: drv, id: id, platform: platform, ordinal: -1}
	}
	return devices, nil
}

// selectDevices lists the devices of deviceType across all platforms of the driver, concatenated in platform
// order. If visible is not nil, only the devices at those ordinals (in the order given) are kept.
//
// It returns an error wrapping ErrNoComputeDevice if no device was selected.
func selectDevices(drv driver.Driver, deviceType driver.DeviceType, visible []int) ([]*Device, error) {
	platforms, err := ListPlatforms(drv)
	if err != nil {
		return nil, err
	}
	var devices []*Device
	for _, platform := range platforms {
		platformDevices, err := ListDevices(platform, deviceType)
		if err != nil {
			return nil, err
		}
		devices = append(devices, platformDevices...)
	}
	for ii, device := range devices {
		device.ordinal = ii
	}
	klog.V(1).Infof("found %d %s device(s) in %d platform(s) of driver %q",
		len(devices), deviceType.Flags(), len(platforms), drv.Name())

	if visible != nil {
		devices, err = filterVisible(devices, visible)
		if err != nil {
			return nil, err
		}
	}
	if len(devices) == 0 {
		return nil, noDeviceError(drv, deviceType, len(platforms), visible)
	}
	for _, device := range devices {
		if _, err := device.Info(); err != nil {
			klog.Errorf("failed to query information of device #%d: %+v", device.ordinal, err)
			continue
		}
		klog.V(1).Infof("using device #%d: %s", device.ordinal, device)
	}
	return devices, nil
}

// filterVisible keeps the devices at the given ordinals.
func filterVisible(devices []*Device, visible []int) ([]*Device, error) {
	filtered := make([]*Device, 0, len(visible))
	seen := make(map[int]bool, len(visible))
	for _, ordinal := range visible {
		if ordinal < 0 || ordinal >= len(devices) {
			return nil, errors.Errorf("visible device ordinal %d out of range, only %d matching device(s) found (see $%s)",
				ordinal, len(devices), VisibleDevicesEnv)
		}
		if seen[ordinal] {
			return nil, errors.Errorf("visible device ordinal %d listed more than once (see $%s)", ordinal, VisibleDevicesEnv)
		}
		seen[ordinal] = true
		filtered = append(filtered, devices[ordinal])
	}
	return filtered, nil
}

func noDeviceError(drv driver.Driver, deviceType driver.DeviceType, numPlatforms int, visible []int) error {
	var hints []string
	if numPlatforms == 0 {
		hints = append(hints, fmt.Sprintf("driver %q has no platforms installed", drv.Name()))
	}
	if visible != nil {
		hints = append(hints, fmt.Sprintf("$%s selected no devices", VisibleDevicesEnv))
	}
	if deviceType.Has(driver.DeviceTypeGPU) && !driver.HasGPUDeviceNodes() {
		hints = append(hints, "no GPU device nodes found on this host")
	}
	err := errors.Wrapf(ErrNoComputeDevice, "no %s device available in driver %q", deviceType.Flags(), drv.Name())
	if len(hints) > 0 {
		err = errors.WithMessage(err, strings.Join(hints, "; "))
	}
	return err
}

// ID returns the driver handle of the device.
func (d *Device) ID() driver.DeviceID {
	return d.id
}

// Platform the device belongs to.
func (d *Device) Platform() *Platform {
	return d.platform
}

// Ordinal returns the position of the device in the list of matching devices across all platforms, the
// same numbering used by GOCOMPUTE_VISIBLE_DEVICES. It is -1 for devices returned by ListDevices.
func (d *Device) Ordinal() int {
	return d.ordinal
}

// Info queries the driver for the description of the device. The result is cached.
func (d *Device) Info() (driver.DeviceInfo, error) {
	d.infoOnce.Do(func() {
		var status driver.Status
		d.info, status = d.drv.DeviceInfo(d.id)
		d.infoErr = Check(d.drv, status, "DeviceInfo")
	})
	return d.info, d.infoErr
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	info, err := d.Info()
	if err != nil {
		return fmt.Sprintf("Device[%#x]", d.id)
	}
	return fmt.Sprintf("%s (%s, %s, %d compute units, %s)",
		info.Name, info.Vendor, info.Type.Flags(), info.MaxComputeUnits, humanize.IBytes(info.GlobalMemSize))
}

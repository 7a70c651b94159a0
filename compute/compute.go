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

// Package compute discovers the compute devices exposed by a driver, creates one context shared by all of them,
// and one command queue per device.
//
// The usual entry point is a Manager, created once at startup and passed along to the consumers that need
// to dispatch work:
//
//	drv := must.M1(driver.New())
//	manager := must.M1(compute.NewManager(drv).WithDeviceType(driver.DeviceTypeGPU).Done())
//	defer func() { must.M(manager.Destroy()) }()
//	queue := manager.CommandQueue(0)
//
// For programs that prefer a process-wide manager, GetInstance and DestroyInstance manage one lazily
// created instance.
//
// Environment variables (read when a ManagerConfig is created):
//
//   - GOCOMPUTE_DEVICE_TYPE: class of devices to use, e.g. "gpu" (default), "accelerator", "gpu|accelerator" or "all".
//   - GOCOMPUTE_VISIBLE_DEVICES: comma-separated ordinals (into the list of matching devices across all platforms)
//     of the devices to use. If not set, all matching devices are used.
//
// See also driver.GOCOMPUTE_DRIVER, to select the driver used by GetInstance.
package compute

import (
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
)

const (
	// DeviceTypeEnv is the name of the environment variable with the default device type to use.
	DeviceTypeEnv = "GOCOMPUTE_DEVICE_TYPE"

	// VisibleDevicesEnv is the name of the environment variable with the ordinals of the devices to use.
	VisibleDevicesEnv = "GOCOMPUTE_VISIBLE_DEVICES"
)

// DefaultDeviceType is the class of devices used if GOCOMPUTE_DEVICE_TYPE is not set.
var DefaultDeviceType = driver.DeviceTypeGPU

// deviceTypeFromEnv returns the device type configured in GOCOMPUTE_DEVICE_TYPE, or DefaultDeviceType.
func deviceTypeFromEnv() (driver.DeviceType, error) {
	value := strings.TrimSpace(os.Getenv(DeviceTypeEnv))
	if value == "" {
		return DefaultDeviceType, nil
	}
	deviceType, err := driver.ParseDeviceType(value)
	if err != nil {
		return 0, errors.WithMessagef(err, "invalid value for $%s", DeviceTypeEnv)
	}
	return deviceType, nil
}

// visibleDevicesFromEnv returns the device ordinals configured in GOCOMPUTE_VISIBLE_DEVICES, or nil.
func visibleDevicesFromEnv() ([]int, error) {
	value := strings.TrimSpace(os.Getenv(VisibleDevicesEnv))
	if value == "" {
		return nil, nil
	}
	ordinals, err := ParseVisibleDevices(value)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid value for $%s", VisibleDevicesEnv)
	}
	return ordinals, nil
}

// ParseVisibleDevices parses a comma-separated list of device ordinals, e.g. "0,2".
//
// The result is never nil: a value without ordinals (e.g. ",") selects no devices.
func ParseVisibleDevices(value string) ([]int, error) {
	ordinals := []int{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ordinal, err := strconv.Atoi(part)
		if err != nil || ordinal < 0 {
			return nil, errors.Errorf("invalid device ordinal %q in %q", part, value)
		}
		ordinals = append(ordinals, ordinal)
	}
	return ordinals, nil
}

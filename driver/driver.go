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

// Package driver defines the boundary between gocompute and a compute driver (OpenCL or a simulated one).
//
// A Driver exposes the raw primitives: platform and device enumeration, context and command queue
// creation and release, and informational queries. It reports failures as Status codes, exactly as the
// underlying C APIs do -- translating them to Go errors is the job of the compute package.
//
// Drivers register themselves (usually during package initialization) with Register, and are created
// with New or NewWithConfig. See GOCOMPUTE_DRIVER for how the default driver is selected.
package driver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// PlatformID is an opaque handle to a compute platform, owned by the driver.
type PlatformID uintptr

// DeviceID is an opaque handle to a device, owned by the driver.
type DeviceID uintptr

// ContextID is an opaque handle to a context. It must be released with Driver.ReleaseContext.
type ContextID uintptr

// QueueID is an opaque handle to a command queue. It must be released with Driver.ReleaseCommandQueue.
type QueueID uintptr

// Driver is the API a compute driver needs to implement to be used by the compute package.
//
// All calls are synchronous and may block for an unbounded amount of time. Implementations must be
// safe for concurrent use.
type Driver interface {
	// Name returns the short name of the driver. E.g.: "opencl" or "sim".
	Name() string

	// PlatformIDs lists the installed platforms, in the driver's enumeration order.
	// Zero platforms may be reported either as an empty list or with the status PlatformNotFound.
	PlatformIDs() ([]PlatformID, Status)

	// DeviceIDs lists the devices of the given platform matching deviceType, in the platform's order.
	// Zero matching devices may be reported either as an empty list or with the status DeviceNotFound.
	DeviceIDs(platform PlatformID, deviceType DeviceType) ([]DeviceID, Status)

	// CreateContext creates one context spanning all the given devices.
	CreateContext(devices []DeviceID) (ContextID, Status)

	// CreateCommandQueue creates a command queue for device within the context.
	CreateCommandQueue(context ContextID, device DeviceID) (QueueID, Status)

	// ReleaseCommandQueue releases a queue created with CreateCommandQueue.
	ReleaseCommandQueue(queue QueueID) Status

	// ReleaseContext releases a context created with CreateContext.
	ReleaseContext(context ContextID) Status

	// PlatformInfo returns descriptive information about the platform.
	PlatformInfo(platform PlatformID) (PlatformInfo, Status)

	// DeviceInfo returns descriptive information about the device.
	DeviceInfo(device DeviceID) (DeviceInfo, Status)

	// ErrorString returns a human-readable, driver specific, description of the status.
	ErrorString(status Status) string
}

// PlatformInfo describes a platform. It's only used for logging and diagnostics.
type PlatformInfo struct {
	Name, Vendor, Version, Profile string
}

// String implements fmt.Stringer.
func (pi PlatformInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", pi.Name, pi.Vendor, pi.Version)
}

// DeviceInfo describes a device. It's only used for logging and diagnostics.
type DeviceInfo struct {
	Name, Vendor, Version, DriverVersion string

	// Type of the device, it may have more than one bit set (e.g.: DeviceTypeGPU|DeviceTypeDefault).
	Type DeviceType

	MaxComputeUnits int
	GlobalMemSize   uint64
	Available       bool
}

// Has returns whether all bits of other are set in t.
func (t DeviceType) Has(other DeviceType) bool {
	return t&other == other
}

// ParseDeviceType parses a device type name (case-insensitive), e.g. "gpu" or "accelerator".
// Multiple types can be combined with "|", e.g. "gpu|accelerator".
func ParseDeviceType(s string) (DeviceType, error) {
	var t DeviceType
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		partType, err := DeviceTypeString(part)
		if err != nil {
			return 0, errors.Errorf("invalid device type %q (valid values are %q)", part, DeviceTypeStrings())
		}
		t |= partType
	}
	if t == 0 {
		return 0, errors.Errorf("empty device type %q", s)
	}
	return t, nil
}

// Flags returns the names of the bits set in t joined by "|", e.g. "gpu|default". It is the inverse of
// ParseDeviceType.
func (t DeviceType) Flags() string {
	if t.IsADeviceType() {
		return t.String()
	}
	var names []string
	for _, flag := range DeviceTypeValues() {
		if flag != DeviceTypeAll && t.Has(flag) {
			names = append(names, flag.String())
		}
	}
	if remaining := t &^ (DeviceTypeDefault | DeviceTypeCPU | DeviceTypeGPU | DeviceTypeAccelerator | DeviceTypeCustom); remaining != 0 || len(names) == 0 {
		names = append(names, fmt.Sprintf("%#x", uint64(remaining)))
	}
	return strings.Join(names, "|")
}

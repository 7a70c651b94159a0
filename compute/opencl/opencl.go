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

//go:build opencl

package opencl

/*
#cgo LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif

static cl_context gocompute_create_context(cl_uint num_devices, const cl_device_id *devices, cl_int *status) {
	return clCreateContext(NULL, num_devices, devices, NULL, NULL, status);
}

static cl_command_queue gocompute_create_queue(cl_context context, cl_device_id device, cl_int *status) {
	return clCreateCommandQueue(context, device, 0, status);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/gomlx/gocompute/driver"
	"k8s.io/klog/v2"
)

// DriverName to be used in GOCOMPUTE_DRIVER to select this driver.
const DriverName = "opencl"

// Registers the OpenCL driver. It takes no configuration.
func init() {
	driver.Register(DriverName, func(config string) (driver.Driver, error) {
		if config != "" {
			klog.Warningf("%s driver takes no configuration, ignoring %q", DriverName, config)
		}
		return New(), nil
	})
}

// Driver implements driver.Driver calling the OpenCL API. The handles it returns are the OpenCL object pointers.
//
// The OpenCL API is thread-safe, and so is Driver.
type Driver struct{}

// Compile-time check that opencl.Driver implements driver.Driver.
var _ driver.Driver = &Driver{}

// New returns the OpenCL driver.
func New() *Driver {
	return &Driver{}
}

// Name implements driver.Driver.
func (*Driver) Name() string { return DriverName }

func platformHandle(id driver.PlatformID) C.cl_platform_id {
	return C.cl_platform_id(unsafe.Pointer(uintptr(id)))
}

func deviceHandle(id driver.DeviceID) C.cl_device_id {
	return C.cl_device_id(unsafe.Pointer(uintptr(id)))
}

func contextHandle(id driver.ContextID) C.cl_context {
	return C.cl_context(unsafe.Pointer(uintptr(id)))
}

func queueHandle(id driver.QueueID) C.cl_command_queue {
	return C.cl_command_queue(unsafe.Pointer(uintptr(id)))
}

// PlatformIDs implements driver.Driver.
func (*Driver) PlatformIDs() ([]driver.PlatformID, driver.Status) {
	var count C.cl_uint
	status := driver.Status(C.clGetPlatformIDs(0, nil, &count))
	if status != driver.Success {
		return nil, status
	}
	if count == 0 {
		return nil, driver.PlatformNotFound
	}
	handles := make([]C.cl_platform_id, int(count))
	status = driver.Status(C.clGetPlatformIDs(count, &handles[0], nil))
	if status != driver.Success {
		return nil, status
	}
	ids := make([]driver.PlatformID, len(handles))
	for ii, handle := range handles {
		ids[ii] = driver.PlatformID(uintptr(unsafe.Pointer(handle)))
	}
	return ids, driver.Success
}

// DeviceIDs implements driver.Driver.
func (*Driver) DeviceIDs(platform driver.PlatformID, deviceType driver.DeviceType) ([]driver.DeviceID, driver.Status) {
	var count C.cl_uint
	clType := C.cl_device_type(deviceType)
	status := driver.Status(C.clGetDeviceIDs(platformHandle(platform), clType, 0, nil, &count))
	if status != driver.Success {
		return nil, status
	}
	if count == 0 {
		return nil, driver.DeviceNotFound
	}
	handles := make([]C.cl_device_id, int(count))
	status = driver.Status(C.clGetDeviceIDs(platformHandle(platform), clType, count, &handles[0], nil))
	if status != driver.Success {
		return nil, status
	}
	ids := make([]driver.DeviceID, len(handles))
	for ii, handle := range handles {
		ids[ii] = driver.DeviceID(uintptr(unsafe.Pointer(handle)))
	}
	return ids, driver.Success
}

// CreateContext implements driver.Driver.
func (*Driver) CreateContext(devices []driver.DeviceID) (driver.ContextID, driver.Status) {
	if len(devices) == 0 {
		return 0, driver.InvalidValue
	}
	handles := make([]C.cl_device_id, len(devices))
	for ii, device := range devices {
		handles[ii] = deviceHandle(device)
	}
	var status C.cl_int
	context := C.gocompute_create_context(C.cl_uint(len(handles)), &handles[0], &status)
	if driver.Status(status) != driver.Success {
		return 0, driver.Status(status)
	}
	return driver.ContextID(uintptr(unsafe.Pointer(context))), driver.Success
}

// CreateCommandQueue implements driver.Driver.
func (*Driver) CreateCommandQueue(context driver.ContextID, device driver.DeviceID) (driver.QueueID, driver.Status) {
	var status C.cl_int
	queue := C.gocompute_create_queue(contextHandle(context), deviceHandle(device), &status)
	if driver.Status(status) != driver.Success {
		return 0, driver.Status(status)
	}
	return driver.QueueID(uintptr(unsafe.Pointer(queue))), driver.Success
}

// ReleaseCommandQueue implements driver.Driver.
func (*Driver) ReleaseCommandQueue(queue driver.QueueID) driver.Status {
	return driver.Status(C.clReleaseCommandQueue(queueHandle(queue)))
}

// ReleaseContext implements driver.Driver.
func (*Driver) ReleaseContext(context driver.ContextID) driver.Status {
	return driver.Status(C.clReleaseContext(contextHandle(context)))
}

func platformString(platform C.cl_platform_id, param C.cl_platform_info) (string, driver.Status) {
	var size C.size_t
	status := driver.Status(C.clGetPlatformInfo(platform, param, 0, nil, &size))
	if status != driver.Success || size == 0 {
		return "", status
	}
	buf := make([]byte, int(size))
	status = driver.Status(C.clGetPlatformInfo(platform, param, size, unsafe.Pointer(&buf[0]), nil))
	return trimNull(buf), status
}

func deviceString(device C.cl_device_id, param C.cl_device_info) (string, driver.Status) {
	var size C.size_t
	status := driver.Status(C.clGetDeviceInfo(device, param, 0, nil, &size))
	if status != driver.Success || size == 0 {
		return "", status
	}
	buf := make([]byte, int(size))
	status = driver.Status(C.clGetDeviceInfo(device, param, size, unsafe.Pointer(&buf[0]), nil))
	return trimNull(buf), status
}

func trimNull(buf []byte) string {
	if len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

// PlatformInfo implements driver.Driver.
func (*Driver) PlatformInfo(platform driver.PlatformID) (info driver.PlatformInfo, status driver.Status) {
	handle := platformHandle(platform)
	for _, field := range []struct {
		param C.cl_platform_info
		value *string
	}{
		{C.CL_PLATFORM_NAME, &info.Name},
		{C.CL_PLATFORM_VENDOR, &info.Vendor},
		{C.CL_PLATFORM_VERSION, &info.Version},
		{C.CL_PLATFORM_PROFILE, &info.Profile},
	} {
		*field.value, status = platformString(handle, field.param)
		if status != driver.Success {
			return
		}
	}
	return
}

// DeviceInfo implements driver.Driver.
func (*Driver) DeviceInfo(device driver.DeviceID) (info driver.DeviceInfo, status driver.Status) {
	handle := deviceHandle(device)
	for _, field := range []struct {
		param C.cl_device_info
		value *string
	}{
		{C.CL_DEVICE_NAME, &info.Name},
		{C.CL_DEVICE_VENDOR, &info.Vendor},
		{C.CL_DEVICE_VERSION, &info.Version},
		{C.CL_DRIVER_VERSION, &info.DriverVersion},
	} {
		*field.value, status = deviceString(handle, field.param)
		if status != driver.Success {
			return
		}
	}

	var deviceType C.cl_device_type
	status = driver.Status(C.clGetDeviceInfo(handle, C.CL_DEVICE_TYPE,
		C.size_t(unsafe.Sizeof(deviceType)), unsafe.Pointer(&deviceType), nil))
	if status != driver.Success {
		return
	}
	info.Type = driver.DeviceType(deviceType)

	var computeUnits C.cl_uint
	status = driver.Status(C.clGetDeviceInfo(handle, C.CL_DEVICE_MAX_COMPUTE_UNITS,
		C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil))
	if status != driver.Success {
		return
	}
	info.MaxComputeUnits = int(computeUnits)

	var memSize C.cl_ulong
	status = driver.Status(C.clGetDeviceInfo(handle, C.CL_DEVICE_GLOBAL_MEM_SIZE,
		C.size_t(unsafe.Sizeof(memSize)), unsafe.Pointer(&memSize), nil))
	if status != driver.Success {
		return
	}
	info.GlobalMemSize = uint64(memSize)

	var available C.cl_bool
	status = driver.Status(C.clGetDeviceInfo(handle, C.CL_DEVICE_AVAILABLE,
		C.size_t(unsafe.Sizeof(available)), unsafe.Pointer(&available), nil))
	if status != driver.Success {
		return
	}
	info.Available = available == C.CL_TRUE
	return
}

// ErrorString implements driver.Driver.
func (*Driver) ErrorString(status driver.Status) string {
	name := status.String()
	switch status {
	case driver.PlatformNotFound:
		return fmt.Sprintf("%s: no OpenCL platform installed (is an ICD registered in /etc/OpenCL/vendors?)", name)
	case driver.DeviceNotFound:
		return fmt.Sprintf("%s: no OpenCL device of the requested type", name)
	case driver.OutOfResources, driver.OutOfHostMemory:
		return fmt.Sprintf("%s: OpenCL implementation ran out of resources", name)
	default:
		return fmt.Sprintf("OpenCL error %s", name)
	}
}

package driver

import "fmt"

// Status is the result code of a driver call. Values match OpenCL's cl_int error codes, so the OpenCL
// driver can pass them through unchanged.
type Status int32

const (
	Success                Status = 0
	DeviceNotFound         Status = -1
	DeviceNotAvailable     Status = -2
	OutOfResources         Status = -5
	OutOfHostMemory        Status = -6
	InvalidValue           Status = -30
	InvalidDeviceType      Status = -31
	InvalidPlatform        Status = -32
	InvalidDevice          Status = -33
	InvalidContext         Status = -34
	InvalidQueueProperties Status = -35
	InvalidCommandQueue    Status = -36
	PlatformNotFound       Status = -1001 // CL_PLATFORM_NOT_FOUND_KHR, returned by the ICD loader with no platforms.
)

var statusNames = map[Status]string{
	Success:                "CL_SUCCESS",
	DeviceNotFound:         "CL_DEVICE_NOT_FOUND",
	DeviceNotAvailable:     "CL_DEVICE_NOT_AVAILABLE",
	OutOfResources:         "CL_OUT_OF_RESOURCES",
	OutOfHostMemory:        "CL_OUT_OF_HOST_MEMORY",
	InvalidValue:           "CL_INVALID_VALUE",
	InvalidDeviceType:      "CL_INVALID_DEVICE_TYPE",
	InvalidPlatform:        "CL_INVALID_PLATFORM",
	InvalidDevice:          "CL_INVALID_DEVICE",
	InvalidContext:         "CL_INVALID_CONTEXT",
	InvalidQueueProperties: "CL_INVALID_QUEUE_PROPERTIES",
	InvalidCommandQueue:    "CL_INVALID_COMMAND_QUEUE",
	PlatformNotFound:       "CL_PLATFORM_NOT_FOUND_KHR",
}

// String implements fmt.Stringer, returning the symbolic name of the status.
func (s Status) String() string {
	if name, found := statusNames[s]; found {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int32(s))
}

// Ok returns whether the status is Success.
func (s Status) Ok() bool {
	return s == Success
}

package driver

// DeviceType is defined on a separate file, so enumer only needs to parse this file.

// DeviceType is a bit-field with the class of a device. The values match OpenCL's cl_device_type.
type DeviceType uint64

//go:generate go tool enumer -type=DeviceType -trimprefix=DeviceType -transform=lower devicetype.go

const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeCustom      DeviceType = 1 << 4
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)

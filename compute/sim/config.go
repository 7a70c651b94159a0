package sim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
)

// NoPlatformsConfig is the configuration string for a driver without any platform.
const NoPlatformsConfig = "noplatforms"

// Config describes the simulated hardware: a list of platforms, each with its list of devices.
type Config struct {
	Platforms []PlatformConfig
}

// PlatformConfig describes one simulated platform.
type PlatformConfig struct {
	Name, Vendor string
	Devices      []DeviceConfig
}

// DeviceConfig describes one simulated device.
type DeviceConfig struct {
	Type          driver.DeviceType
	Name          string
	ComputeUnits  int
	GlobalMemSize uint64
}

// DefaultConfig is one platform with one GPU.
func DefaultConfig() Config {
	return Config{Platforms: []PlatformConfig{newPlatformConfig(0, driver.DeviceTypeGPU)}}
}

// NumDevices returns the total number of devices of the given type, across all platforms.
func (c Config) NumDevices(deviceType driver.DeviceType) int {
	var count int
	for _, p := range c.Platforms {
		for _, d := range p.Devices {
			if d.Type&deviceType != 0 {
				count++
			}
		}
	}
	return count
}

const (
	gib = uint64(1) << 30
)

// newDeviceConfig returns the default configuration for a device of the given type.
func newDeviceConfig(deviceType driver.DeviceType, idx int) DeviceConfig {
	d := DeviceConfig{
		Type: deviceType,
		Name: fmt.Sprintf("Simulated %s #%d", strings.ToUpper(deviceType.String()), idx),
	}
	switch deviceType {
	case driver.DeviceTypeGPU:
		d.ComputeUnits, d.GlobalMemSize = 32, 8*gib
	case driver.DeviceTypeAccelerator:
		d.ComputeUnits, d.GlobalMemSize = 16, 4*gib
	case driver.DeviceTypeCPU:
		d.ComputeUnits, d.GlobalMemSize = 8, 16*gib
	default:
		d.ComputeUnits, d.GlobalMemSize = 1, gib
	}
	return d
}

// newPlatformConfig creates a platform configuration with one device for each given type.
func newPlatformConfig(platformIdx int, deviceTypes ...driver.DeviceType) PlatformConfig {
	p := PlatformConfig{
		Name:   fmt.Sprintf("Simulated Platform %d", platformIdx),
		Vendor: "gocompute",
	}
	for ii, t := range deviceTypes {
		p.Devices = append(p.Devices, newDeviceConfig(t, ii))
	}
	return p
}

// ParseConfig parses a configuration string describing the simulated hardware.
//
// Platforms are separated by ";", and each platform is a ","-separated list of "<device_type>=<count>"
// groups (the "=<count>" part can be omitted for one device). The special platform description "none" is a
// platform without devices. Examples:
//
//   - "": one platform with one GPU (see DefaultConfig).
//   - "gpu=2,cpu=1;accelerator": two platforms, the first with 2 GPUs and 1 CPU, the second with 1 accelerator.
//   - "none;gpu": two platforms, only the second one has a device.
//   - NoPlatformsConfig ("noplatforms"): no platforms at all.
func ParseConfig(config string) (Config, error) {
	config = strings.TrimSpace(config)
	switch config {
	case "":
		return DefaultConfig(), nil
	case NoPlatformsConfig:
		return Config{}, nil
	}

	var c Config
	for platformIdx, platformDesc := range strings.Split(config, ";") {
		platformDesc = strings.TrimSpace(platformDesc)
		p := newPlatformConfig(platformIdx)
		if platformDesc == "none" || platformDesc == "" {
			c.Platforms = append(c.Platforms, p)
			continue
		}
		for _, group := range strings.Split(platformDesc, ",") {
			typeName, countStr, hasCount := strings.Cut(strings.TrimSpace(group), "=")
			deviceType, err := driver.DeviceTypeString(strings.TrimSpace(typeName))
			if err != nil || deviceType == driver.DeviceTypeAll || deviceType == driver.DeviceTypeDefault {
				return Config{}, errors.Errorf("sim: invalid device type %q in platform #%d (%q) of configuration %q",
					typeName, platformIdx, platformDesc, config)
			}
			count := 1
			if hasCount {
				count, err = strconv.Atoi(strings.TrimSpace(countStr))
				if err != nil || count < 0 {
					return Config{}, errors.Errorf("sim: invalid device count %q for %q in configuration %q",
						countStr, typeName, config)
				}
			}
			for range count {
				p.Devices = append(p.Devices, newDeviceConfig(deviceType, len(p.Devices)))
			}
		}
		c.Platforms = append(c.Platforms, p)
	}
	return c, nil
}

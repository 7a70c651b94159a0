package compute

import (
	"fmt"
	"testing"

	"github.com/gomlx/gocompute/compute/sim"
	"github.com/gomlx/gocompute/driver"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// deviceNames returns the names of the devices, or "?" for the ones whose information is not available.
func deviceNames(devices []*Device) []string {
	names := make([]string, len(devices))
	for ii, device := range devices {
		info, err := device.Info()
		if err != nil {
			names[ii] = "?"
			continue
		}
		names[ii] = info.Name
	}
	return names
}

func TestListPlatforms(t *testing.T) {
	platforms, err := ListPlatforms(newSim("gpu;cpu;none"))
	require.NoError(t, err)
	require.Len(t, platforms, 3)
	for ii, platform := range platforms {
		require.Equal(t, ii, platform.Index())
		info, err := platform.Info()
		require.NoError(t, err)
		require.NotEmpty(t, info.Name)
		fmt.Printf("%s\n", platform)
	}

	// No platforms is not an error.
	platforms, err = ListPlatforms(newSim(sim.NoPlatformsConfig))
	require.NoError(t, err)
	require.Empty(t, platforms)

	drv := newSim("")
	drv.SetFaults(sim.Faults{PlatformIDs: driver.OutOfHostMemory})
	_, err = ListPlatforms(drv)
	driverErr, ok := AsDriverError(err)
	require.True(t, ok)
	require.Equal(t, driver.OutOfHostMemory, driverErr.Code)
	require.Equal(t, "PlatformIDs", driverErr.Call)

	// Info failures are reported, but String still works.
	drv = newSim("")
	platforms, err = ListPlatforms(drv)
	require.NoError(t, err)
	drv.SetFaults(sim.Faults{PlatformInfo: driver.InvalidPlatform})
	_, err = platforms[0].Info()
	require.Error(t, err)
	require.Contains(t, platforms[0].String(), "Platform#0[0x")
}

func TestListDevices(t *testing.T) {
	drv := newSim("gpu=2,cpu=1,accelerator=1")
	platforms, err := ListPlatforms(drv)
	require.NoError(t, err)

	gpus, err := ListDevices(platforms[0], driver.DeviceTypeGPU)
	require.NoError(t, err)
	require.Len(t, gpus, 2)
	for _, device := range gpus {
		require.Equal(t, -1, device.Ordinal())
		require.Same(t, platforms[0], device.Platform())
		fmt.Printf("\t%s\n", device)
	}

	all, err := ListDevices(platforms[0], driver.DeviceTypeAll)
	require.NoError(t, err)
	require.Len(t, all, 4)

	combined, err := ListDevices(platforms[0], driver.DeviceTypeGPU|driver.DeviceTypeAccelerator)
	require.NoError(t, err)
	require.Len(t, combined, 3)

	// No matching devices is not an error.
	none, err := ListDevices(platforms[0], driver.DeviceTypeCustom)
	require.NoError(t, err)
	require.Empty(t, none)

	drv.SetFaults(sim.Faults{DeviceIDs: driver.InvalidDeviceType})
	_, err = ListDevices(platforms[0], driver.DeviceTypeGPU)
	driverErr, ok := AsDriverError(err)
	require.True(t, ok)
	require.Equal(t, driver.InvalidDeviceType, driverErr.Code)
}

func TestSelectDevices(t *testing.T) {
	// Devices are concatenated in platform order, platforms without devices are skipped.
	drv := newSim("gpu=2;cpu=1;none;gpu=1,accelerator=1")
	devices, err := selectDevices(drv, driver.DeviceTypeGPU, nil)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	platformIndices := make([]int, len(devices))
	for ii, device := range devices {
		require.Equal(t, ii, device.Ordinal())
		platformIndices[ii] = device.Platform().Index()
	}
	if diff := cmp.Diff([]int{0, 0, 3}, platformIndices); diff != "" {
		t.Fatalf("unexpected platforms of selected devices (-want +got):\n%s", diff)
	}

	devices, err = selectDevices(drv, driver.DeviceTypeAll, nil)
	require.NoError(t, err)
	require.Len(t, devices, 5)

	// Visible devices: order of the ordinals given is kept.
	devices, err = selectDevices(drv, driver.DeviceTypeGPU, []int{2, 0})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.Equal(t, 2, devices[0].Ordinal())
	require.Equal(t, 0, devices[1].Ordinal())

	_, err = selectDevices(drv, driver.DeviceTypeGPU, []int{3})
	require.ErrorContains(t, err, "out of range")
	_, err = selectDevices(drv, driver.DeviceTypeGPU, []int{1, 1})
	require.ErrorContains(t, err, "more than once")
	_, err = selectDevices(drv, driver.DeviceTypeGPU, []int{})
	require.ErrorIs(t, err, ErrNoComputeDevice)

	// Device information failures are not fatal.
	drv.SetFaults(sim.Faults{DeviceInfo: driver.InvalidDevice})
	devices, err = selectDevices(drv, driver.DeviceTypeGPU, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"?", "?", "?"}, deviceNames(devices))
}

func TestNoComputeDevice(t *testing.T) {
	for _, config := range []string{sim.NoPlatformsConfig, "none;none", "cpu=2"} {
		_, err := selectDevices(newSim(config), driver.DeviceTypeGPU, nil)
		require.ErrorIsf(t, err, ErrNoComputeDevice, "driver configuration %q", config)
		fmt.Printf("%q: %v\n", config, err)
	}

	_, err := selectDevices(newSim(sim.NoPlatformsConfig), driver.DeviceTypeCPU, nil)
	require.ErrorIs(t, err, ErrNoComputeDevice)
	require.ErrorContains(t, err, "no platforms installed")

	// Failures other than "not found" are reported as driver errors.
	drv := newSim("gpu")
	drv.SetFaults(sim.Faults{DeviceIDs: driver.OutOfResources})
	_, err = selectDevices(drv, driver.DeviceTypeGPU, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoComputeDevice)
}

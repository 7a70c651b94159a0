package sim

import (
	"fmt"
	"testing"

	"github.com/gomlx/gocompute/driver"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig("")
	require.NoError(t, err)
	require.Len(t, c.Platforms, 1)
	require.Equal(t, 1, c.NumDevices(driver.DeviceTypeGPU))

	c, err = ParseConfig("gpu=2,cpu=1; accelerator ;none")
	require.NoError(t, err)
	require.Len(t, c.Platforms, 3)
	require.Len(t, c.Platforms[0].Devices, 3)
	require.Len(t, c.Platforms[1].Devices, 1)
	require.Empty(t, c.Platforms[2].Devices)
	require.Equal(t, 2, c.NumDevices(driver.DeviceTypeGPU))
	require.Equal(t, 1, c.NumDevices(driver.DeviceTypeAccelerator))
	require.Equal(t, 4, c.NumDevices(driver.DeviceTypeAll))
	fmt.Printf("Devices of platform #0: %+v\n", c.Platforms[0].Devices)

	c, err = ParseConfig(NoPlatformsConfig)
	require.NoError(t, err)
	require.Empty(t, c.Platforms)

	c, err = ParseConfig("gpu=0")
	require.NoError(t, err)
	require.Len(t, c.Platforms, 1)
	require.Zero(t, c.NumDevices(driver.DeviceTypeAll))

	for _, invalid := range []string{"fpga=1", "gpu=-1", "gpu=x", "all=2"} {
		_, err = ParseConfig(invalid)
		require.Errorf(t, err, "configuration %q should have failed", invalid)
	}
}

func TestRegistered(t *testing.T) {
	drv, err := driver.NewWithConfig("sim:gpu=3")
	require.NoError(t, err)
	require.Equal(t, DriverName, drv.Name())
	require.Equal(t, 3, drv.(*Driver).Config().NumDevices(driver.DeviceTypeGPU))

	_, err = driver.NewWithConfig("sim:gpu=many")
	require.ErrorContains(t, err, "invalid device count")
}

func TestEnumeration(t *testing.T) {
	drv := New(must.M1(ParseConfig("gpu=2,cpu;none;accelerator,gpu")))
	platforms, status := drv.PlatformIDs()
	require.Equal(t, driver.Success, status)
	require.Len(t, platforms, 3)

	gpus, status := drv.DeviceIDs(platforms[0], driver.DeviceTypeGPU)
	require.Equal(t, driver.Success, status)
	require.Len(t, gpus, 2)

	_, status = drv.DeviceIDs(platforms[1], driver.DeviceTypeGPU)
	require.Equal(t, driver.DeviceNotFound, status)

	all, status := drv.DeviceIDs(platforms[2], driver.DeviceTypeAll)
	require.Equal(t, driver.Success, status)
	require.Len(t, all, 2)

	defaults, status := drv.DeviceIDs(platforms[2], driver.DeviceTypeDefault)
	require.Equal(t, driver.Success, status)
	require.Equal(t, all[:1], defaults)

	_, status = drv.DeviceIDs(driver.PlatformID(0xdead), driver.DeviceTypeAll)
	require.Equal(t, driver.InvalidPlatform, status)

	info, status := drv.DeviceInfo(all[0])
	require.Equal(t, driver.Success, status)
	require.True(t, info.Type.Has(driver.DeviceTypeAccelerator|driver.DeviceTypeDefault))
	require.True(t, info.Available)

	empty := New(Config{})
	_, status = empty.PlatformIDs()
	require.Equal(t, driver.PlatformNotFound, status)
}

func TestContextsAndQueues(t *testing.T) {
	drv := New(must.M1(ParseConfig("gpu=2")))
	platforms, _ := drv.PlatformIDs()
	devices, _ := drv.DeviceIDs(platforms[0], driver.DeviceTypeGPU)

	ctx, status := drv.CreateContext(devices)
	require.Equal(t, driver.Success, status)
	q0, status := drv.CreateCommandQueue(ctx, devices[0])
	require.Equal(t, driver.Success, status)
	q1, status := drv.CreateCommandQueue(ctx, devices[1])
	require.Equal(t, driver.Success, status)
	require.NotEqual(t, q0, q1)
	require.Equal(t, 1, drv.LiveContexts())
	require.Equal(t, 2, drv.LiveQueues())

	_, status = drv.CreateCommandQueue(ctx, driver.DeviceID(0xdead))
	require.Equal(t, driver.InvalidDevice, status)
	_, status = drv.CreateContext(nil)
	require.Equal(t, driver.InvalidValue, status)

	require.Equal(t, driver.Success, drv.ReleaseCommandQueue(q0))
	require.Equal(t, driver.InvalidCommandQueue, drv.ReleaseCommandQueue(q0), "double release should fail")
	require.Equal(t, driver.Success, drv.ReleaseCommandQueue(q1))
	require.Equal(t, driver.Success, drv.ReleaseContext(ctx))
	require.Equal(t, driver.InvalidContext, drv.ReleaseContext(ctx), "double release should fail")
	require.Zero(t, drv.LiveContexts())
	require.Zero(t, drv.LiveQueues())
	fmt.Printf("Calls: %q\n", drv.Calls())
}

func TestFaults(t *testing.T) {
	drv := New(must.M1(ParseConfig("gpu=3")))
	platforms, _ := drv.PlatformIDs()
	devices, _ := drv.DeviceIDs(platforms[0], driver.DeviceTypeGPU)
	ctx, _ := drv.CreateContext(devices)

	drv.SetFaults(Faults{FailQueue: 2, QueueStatus: driver.OutOfHostMemory})
	_, status := drv.CreateCommandQueue(ctx, devices[0])
	require.Equal(t, driver.Success, status)
	_, status = drv.CreateCommandQueue(ctx, devices[1])
	require.Equal(t, driver.OutOfHostMemory, status)
	_, status = drv.CreateCommandQueue(ctx, devices[2])
	require.Equal(t, driver.Success, status)
	require.Equal(t, 2, drv.LiveQueues())

	drv.SetFaults(Faults{PlatformIDs: driver.OutOfHostMemory})
	_, status = drv.PlatformIDs()
	require.Equal(t, driver.OutOfHostMemory, status)

	drv.SetFaults(Faults{FailQueue: 1})
	_, status = drv.CreateCommandQueue(ctx, devices[0])
	require.Equal(t, driver.OutOfResources, status, "default queue failure status")

	require.Contains(t, drv.ErrorString(driver.OutOfResources), "sim:")
	require.Contains(t, drv.ErrorString(driver.Status(-12345)), "unknown status -12345")
}

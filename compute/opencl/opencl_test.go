//go:build opencl

package opencl

import (
	"fmt"
	"testing"

	"github.com/gomlx/gocompute/driver"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

func TestDriver(t *testing.T) {
	drv, err := driver.NewWithConfig(DriverName)
	require.NoError(t, err)
	platforms, status := drv.PlatformIDs()
	if status == driver.PlatformNotFound {
		t.Skip("no OpenCL platforms installed")
	}
	require.Equal(t, driver.Success, status, drv.ErrorString(status))
	for _, platform := range platforms {
		info, status := drv.PlatformInfo(platform)
		require.Equal(t, driver.Success, status)
		fmt.Printf("Platform %s\n", info)

		devices, status := drv.DeviceIDs(platform, driver.DeviceTypeAll)
		if status == driver.DeviceNotFound {
			continue
		}
		require.Equal(t, driver.Success, status)
		for _, device := range devices {
			deviceInfo, status := drv.DeviceInfo(device)
			require.Equal(t, driver.Success, status)
			fmt.Printf("\tDevice %q (%s): %d compute units\n", deviceInfo.Name, deviceInfo.Type.Flags(), deviceInfo.MaxComputeUnits)
		}

		context, status := drv.CreateContext(devices[:1])
		require.Equal(t, driver.Success, status)
		queue, status := drv.CreateCommandQueue(context, devices[0])
		require.Equal(t, driver.Success, status)
		require.Equal(t, driver.Success, drv.ReleaseCommandQueue(queue))
		require.Equal(t, driver.Success, drv.ReleaseContext(context))
	}
}

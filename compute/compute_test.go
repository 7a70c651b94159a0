package compute

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gomlx/gocompute/compute/sim"
	"github.com/gomlx/gocompute/driver"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

var flagDriver = flag.String("driver", "",
	"Driver configuration (\"<name>:<config>\") to also run TestRealDriver against, e.g. \"opencl\".")

func init() {
	klog.InitFlags(nil)
}

// newSim creates a simulated driver with the given configuration, see sim.ParseConfig.
func newSim(config string) *sim.Driver {
	return sim.New(must.M1(sim.ParseConfig(config)))
}

// clearEnv makes sure the environment doesn't change the defaults of the tests.
func clearEnv(t *testing.T) {
	for _, key := range []string{DeviceTypeEnv, VisibleDevicesEnv, driver.GOCOMPUTE_DRIVER} {
		t.Setenv(key, "")
		must.M(os.Unsetenv(key))
	}
}

// releaseCalls returns the release calls recorded by the simulated driver.
func releaseCalls(drv *sim.Driver) []string {
	var releases []string
	for _, call := range drv.Calls() {
		if strings.HasPrefix(call, "Release") {
			releases = append(releases, call)
		}
	}
	return releases
}

// diagnosticsRecorder is a DiagnosticHandler that keeps the diagnostics it receives.
type diagnosticsRecorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (r *diagnosticsRecorder) Handle(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

func (r *diagnosticsRecorder) Get() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.diags...)
}

func TestCheck(t *testing.T) {
	drv := newSim("")
	require.NoError(t, Check(drv, driver.Success, "PlatformIDs"))

	err := Check(drv, driver.OutOfHostMemory, "CreateContext")
	require.Error(t, err)
	fmt.Printf("Error: %v\n", err)
	driverErr, ok := AsDriverError(err)
	require.True(t, ok)
	require.Equal(t, "sim", driverErr.Driver)
	require.Equal(t, "CreateContext", driverErr.Call)
	require.Equal(t, driver.OutOfHostMemory, driverErr.Code)
	require.Equal(t, drv.ErrorString(driver.OutOfHostMemory), driverErr.Message)
	require.True(t, strings.HasPrefix(driverErr.Location, "compute_test.go:"), "location %q", driverErr.Location)
	require.Contains(t, err.Error(), "CL_OUT_OF_HOST_MEMORY")

	// The stack trace is printed with %+v.
	require.Contains(t, fmt.Sprintf("%+v", err), "TestCheck")

	_, ok = AsDriverError(ErrNoComputeDevice)
	require.False(t, ok)
}

func TestParseVisibleDevices(t *testing.T) {
	ordinals, err := ParseVisibleDevices("2, 0,,1")
	require.NoError(t, err)
	require.Equal(t, []int{2, 0, 1}, ordinals)

	ordinals, err = ParseVisibleDevices("")
	require.NoError(t, err)
	require.Empty(t, ordinals)

	// A list without ordinals selects nothing, it doesn't mean "all devices".
	ordinals, err = ParseVisibleDevices(" , ")
	require.NoError(t, err)
	require.NotNil(t, ordinals)
	require.Empty(t, ordinals)

	for _, invalid := range []string{"a", "-1", "0,x"} {
		_, err = ParseVisibleDevices(invalid)
		require.Errorf(t, err, "%q should have failed", invalid)
	}
}

func TestEnvironment(t *testing.T) {
	clearEnv(t)
	deviceType, err := deviceTypeFromEnv()
	require.NoError(t, err)
	require.Equal(t, DefaultDeviceType, deviceType)
	visible, err := visibleDevicesFromEnv()
	require.NoError(t, err)
	require.Nil(t, visible)

	t.Setenv(DeviceTypeEnv, "gpu|accelerator")
	t.Setenv(VisibleDevicesEnv, "1,0")
	deviceType, err = deviceTypeFromEnv()
	require.NoError(t, err)
	require.Equal(t, driver.DeviceTypeGPU|driver.DeviceTypeAccelerator, deviceType)
	visible, err = visibleDevicesFromEnv()
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, visible)

	t.Setenv(DeviceTypeEnv, "")
	t.Setenv(VisibleDevicesEnv, ",")
	visible, err = visibleDevicesFromEnv()
	require.NoError(t, err)
	require.NotNil(t, visible)
	_, err = NewManager(newSim("gpu=2")).Done()
	require.ErrorIs(t, err, ErrNoComputeDevice)

	// Invalid values are reported by ManagerConfig.Done.
	t.Setenv(DeviceTypeEnv, "fpga")
	_, err = NewManager(newSim("")).Done()
	require.ErrorContains(t, err, DeviceTypeEnv)

	t.Setenv(DeviceTypeEnv, "")
	t.Setenv(VisibleDevicesEnv, "first")
	_, err = NewManager(newSim("")).Done()
	require.ErrorContains(t, err, VisibleDevicesEnv)
}

// TestRealDriver runs against the driver given by -driver, if any.
func TestRealDriver(t *testing.T) {
	if *flagDriver == "" {
		t.Skip("no -driver given")
	}
	drv, err := driver.NewWithConfig(*flagDriver)
	require.NoError(t, err)
	platforms, err := ListPlatforms(drv)
	require.NoError(t, err)
	for _, platform := range platforms {
		fmt.Printf("%s\n", platform)
		devices, err := ListDevices(platform, driver.DeviceTypeAll)
		require.NoError(t, err)
		for _, device := range devices {
			fmt.Printf("\t%s\n", device)
		}
	}

	manager, err := NewManager(drv).WithDeviceType(driver.DeviceTypeAll).Done()
	if err != nil {
		require.ErrorIs(t, err, ErrNoComputeDevice)
		t.Skipf("no devices available: %v", err)
	}
	fmt.Printf("%s\n", manager)
	require.Equal(t, manager.NumDevices(), len(manager.CommandQueues()))
	require.NoError(t, manager.Destroy())
}

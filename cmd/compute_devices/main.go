// compute_devices lists the platforms and devices of a compute driver, and optionally creates a compute.Manager
// to check that a context and queues can be created for the selected devices.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gocompute/compute"
	_ "github.com/gomlx/gocompute/compute/sim"
	"github.com/gomlx/gocompute/driver"
	"github.com/janpfeifer/must"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/klog/v2"
)

var (
	flagDriver     = flag.String("driver", "", "Driver configuration \"<name>:<config>\". If empty it uses $GOCOMPUTE_DRIVER or the first registered driver.")
	flagDeviceType = flag.String("device_type", "all", "Type of devices to list, e.g. \"gpu\", \"cpu\" or \"gpu|accelerator\".")
	flagJSON       = flag.Bool("json", false, "Output the report as JSON instead of tables.")
	flagManager    = flag.Bool("manager", false, "Also create a compute.Manager for the devices listed, and report its command queues.")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `compute_devices lists the platforms and devices of a compute driver.

$ compute_devices -driver=sim:gpu=2,cpu -manager

Registered drivers: %q. Build with "-tags opencl" to include the OpenCL driver.

Usage:
`, driver.Available())
		flag.PrintDefaults()
	}
	klog.InitFlags(flag.CommandLine)
	flag.Parse()

	var drv driver.Driver
	if *flagDriver == "" {
		drv = must.M1(driver.New())
	} else {
		drv = must.M1(driver.NewWithConfig(*flagDriver))
	}
	deviceType := must.M1(driver.ParseDeviceType(*flagDeviceType))
	report := buildReport(drv, deviceType)

	if *flagManager {
		manager, err := compute.NewManager(drv).WithDeviceType(deviceType).Done()
		if err != nil {
			klog.Errorf("Failed to create compute.Manager: %+v", err)
			report.managerErr = err
		} else {
			report.manager = manager
			defer func() { must.M(manager.Destroy()) }()
		}
	}

	if *flagJSON {
		printJSON(report)
	} else {
		printTables(report)
	}
}

type platformReport struct {
	platform *compute.Platform
	devices  []*compute.Device
	err      error
}

type report struct {
	drv        driver.Driver
	deviceType driver.DeviceType
	platforms  []platformReport
	manager    *compute.Manager
	managerErr error
}

func buildReport(drv driver.Driver, deviceType driver.DeviceType) *report {
	r := &report{drv: drv, deviceType: deviceType}
	platforms := must.M1(compute.ListPlatforms(drv))
	for _, platform := range platforms {
		devices, err := compute.ListDevices(platform, deviceType)
		if err != nil {
			klog.Errorf("Failed to list devices of %s: %+v", platform, err)
		}
		r.platforms = append(r.platforms, platformReport{platform: platform, devices: devices, err: err})
	}
	return r
}

func printTables(r *report) {
	fmt.Printf("Driver %q, %d platform(s), device type %s:\n\n", r.drv.Name(), len(r.platforms), r.deviceType.Flags())
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PLATFORM", "DEVICE", "TYPE", "VENDOR", "COMPUTE UNITS", "MEMORY", "AVAILABLE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, p := range r.platforms {
		platformName := p.platform.String()
		if p.err != nil {
			table.Append([]string{platformName, "error: " + p.err.Error(), "", "", "", "", ""})
			continue
		}
		if len(p.devices) == 0 {
			table.Append([]string{platformName, "(none)", "", "", "", "", ""})
			continue
		}
		for _, device := range p.devices {
			info, err := device.Info()
			if err != nil {
				table.Append([]string{platformName, fmt.Sprintf("%#x: %v", device.ID(), err), "", "", "", "", ""})
				continue
			}
			table.Append([]string{
				platformName,
				info.Name,
				info.Type.Flags(),
				info.Vendor,
				strconv.Itoa(info.MaxComputeUnits),
				humanize.IBytes(info.GlobalMemSize),
				strconv.FormatBool(info.Available),
			})
		}
	}
	table.Render()

	if r.manager == nil && r.managerErr == nil {
		return
	}
	fmt.Println()
	if r.managerErr != nil {
		fmt.Printf("Manager: failed: %v\n", r.managerErr)
		return
	}
	fmt.Printf("%s, context %s:\n\n", r.manager, r.manager.Context())
	queues := tablewriter.NewWriter(os.Stdout)
	queues.SetHeader([]string{"SLOT", "QUEUE", "DEVICE"})
	queues.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	queues.SetAlignment(tablewriter.ALIGN_LEFT)
	queues.SetBorder(false)
	for _, queue := range r.manager.CommandQueues() {
		queues.Append([]string{strconv.Itoa(queue.Slot()), fmt.Sprintf("%#x", queue.ID()), queue.Device().String()})
	}
	queues.Render()
}

func printJSON(r *report) {
	platforms := make([]any, 0, len(r.platforms))
	for _, p := range r.platforms {
		entry := map[string]any{"index": p.platform.Index()}
		if info, err := p.platform.Info(); err == nil {
			entry["name"] = info.Name
			entry["vendor"] = info.Vendor
			entry["version"] = info.Version
			entry["profile"] = info.Profile
		}
		if p.err != nil {
			entry["error"] = p.err.Error()
		}
		devices := make([]any, 0, len(p.devices))
		for _, device := range p.devices {
			devices = append(devices, deviceJSON(device))
		}
		entry["devices"] = devices
		platforms = append(platforms, entry)
	}
	fields := map[string]any{
		"driver":      r.drv.Name(),
		"device_type": r.deviceType.Flags(),
		"platforms":   platforms,
	}
	if r.managerErr != nil {
		fields["manager"] = map[string]any{"error": r.managerErr.Error()}
	} else if r.manager != nil {
		queues := make([]any, 0, r.manager.NumDevices())
		for _, queue := range r.manager.CommandQueues() {
			queues = append(queues, map[string]any{
				"slot":   queue.Slot(),
				"queue":  fmt.Sprintf("%#x", queue.ID()),
				"device": deviceJSON(queue.Device()),
			})
		}
		fields["manager"] = map[string]any{
			"id":      r.manager.ID().String(),
			"context": fmt.Sprintf("%#x", r.manager.Context().ID()),
			"queues":  queues,
		}
	}
	msg := must.M1(structpb.NewStruct(fields))
	fmt.Println(string(must.M1(protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg))))
}

func deviceJSON(device *compute.Device) map[string]any {
	entry := map[string]any{"id": fmt.Sprintf("%#x", device.ID())}
	info, err := device.Info()
	if err != nil {
		entry["error"] = err.Error()
		return entry
	}
	entry["name"] = info.Name
	entry["vendor"] = info.Vendor
	entry["version"] = info.Version
	entry["driver_version"] = info.DriverVersion
	entry["type"] = info.Type.Flags()
	entry["compute_units"] = info.MaxComputeUnits
	entry["global_mem_size"] = info.GlobalMemSize
	entry["global_mem"] = humanize.IBytes(info.GlobalMemSize)
	entry["available"] = info.Available
	return entry
}

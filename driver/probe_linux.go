//go:build linux

package driver

import (
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// gpuDeviceNodePatterns are the device files created by the NVidia, AMD (kfd) and DRM (render nodes) kernel drivers.
var gpuDeviceNodePatterns = []string{"/dev/nvidia[0-9]*", "/dev/kfd", "/dev/dri/renderD*"}

var hasGPUDeviceNodes = sync.OnceValue(func() bool {
	for _, pattern := range gpuDeviceNodePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			klog.Errorf("Failed to search for GPU device files matching %q: %v", pattern, err)
			continue
		}
		if len(matches) > 0 {
			klog.V(1).Infof("found GPU device files %v", matches)
			return true
		}
	}
	klog.V(1).Infof("No GPU device files found matching %q, checking nvidia-smi command instead.", gpuDeviceNodePatterns)

	// Execute the nvidia-smi command if present
	if _, lookErr := exec.LookPath("nvidia-smi"); lookErr == nil {
		output, cmdErr := exec.Command("nvidia-smi").CombinedOutput()
		if cmdErr == nil && strings.Contains(string(output), "NVIDIA-SMI") {
			return true
		}
	}
	return false
})

// HasGPUDeviceNodes tries to guess if there is an actual GPU installed (as opposed to only the drivers
// installed, but no actual hardware).
// It does that by checking for the presence of the device files in /dev/nvidia*, /dev/kfd and /dev/dri/renderD*,
// and as a last resort by running nvidia-smi. The result is cached.
//
// It is only used to give better error messages when no devices are found.
func HasGPUDeviceNodes() bool {
	return hasGPUDeviceNodes()
}

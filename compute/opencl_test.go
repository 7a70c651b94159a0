//go:build opencl

package compute

// Makes the "opencl" driver available to -driver.
import _ "github.com/gomlx/gocompute/compute/opencl"

//go:build opencl

package main

import _ "github.com/gomlx/gocompute/compute/opencl"

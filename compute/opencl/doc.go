/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package opencl implements driver.Driver with the system's OpenCL ICD loader (libOpenCL).
//
// It is only built with the "opencl" build tag, and it registers itself as the "opencl" driver when imported:
//
//	import _ "github.com/gomlx/gocompute/compute/opencl"
//
// It requires the OpenCL headers (e.g. package opencl-headers or ocl-icd-opencl-dev) to build.
package opencl

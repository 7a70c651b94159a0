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

package driver

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Constructor takes a driver specific configuration string (possibly empty) and returns a Driver.
type Constructor func(config string) (Driver, error)

// GOCOMPUTE_DRIVER is the environment variable with the default driver configuration to use.
//
// The format of config is "<driver_name>:<driver_configuration>", e.g.: "opencl" or "sim:gpu=2;gpu=1".
// The "<driver_configuration>" part is driver specific.
const GOCOMPUTE_DRIVER = "GOCOMPUTE_DRIVER"

// DefaultConfig is the driver configuration used by New if GOCOMPUTE_DRIVER is not set.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

var (
	// registeredConstructors and registrationOrder are protected by muRegistry.
	registeredConstructors = make(map[string]Constructor)
	registrationOrder      []string
	muRegistry             sync.Mutex
)

// Register a driver constructor with the given name.
// Registering the same name twice replaces the previous constructor, but keeps its original priority.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if _, found := registeredConstructors[name]; !found {
		registrationOrder = append(registrationOrder, name)
	}
	registeredConstructors[name] = constructor
	klog.V(2).Infof("registered compute driver %q", name)
}

// Available returns the names of the registered drivers, in registration order.
// The first one is the default one, if no configuration is given.
func Available() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	return slices.Clone(registrationOrder)
}

// New returns a new default Driver.
//
// The default is:
//
//  1. The environment variable GOCOMPUTE_DRIVER is used as a configuration if defined.
//  2. Next the variable DefaultConfig is used as a configuration if defined.
//  3. The first registered driver is used with an empty configuration.
//
// It returns an error if no driver was registered.
func New() (Driver, error) {
	if config, found := os.LookupEnv(GOCOMPUTE_DRIVER); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig creates a driver from a configuration string formatted as "<driver_name>:<driver_configuration>".
//
// If "<driver_name>" is empty the first registered driver is used, and if the configuration has no ":" the
// whole string is taken as the driver name.
func NewWithConfig(config string) (Driver, error) {
	name, driverConfig, _ := strings.Cut(strings.TrimSpace(config), ":")

	muRegistry.Lock()
	if len(registrationOrder) == 0 {
		muRegistry.Unlock()
		return nil, errors.New(`no registered compute drivers -- maybe import the OpenCL one with ` +
			`import _ "github.com/gomlx/gocompute/compute/opencl" (requires the "opencl" build tag)?`)
	}
	if name == "" {
		name = registrationOrder[0]
	}
	constructor, found := registeredConstructors[name]
	available := slices.Clone(registrationOrder)
	muRegistry.Unlock()

	if !found {
		return nil, errors.Errorf("can't find compute driver %q for configuration %q, available drivers: %q",
			name, config, available)
	}
	klog.V(1).Infof("creating compute driver %q with configuration %q", name, driverConfig)
	drv, err := constructor(driverConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create compute driver %q", name)
	}
	return drv, nil
}

package compute

import (
	"fmt"
	"sync"

	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Platform is a lightweight reference to a platform of a driver -- it doesn't own the underlying object.
type Platform struct {
	drv   driver.Driver
	id    driver.PlatformID
	index int

	infoOnce sync.Once
	info     driver.PlatformInfo
	infoErr  error
}

// ListPlatforms returns the platforms installed for the driver, in the driver's enumeration order.
//
// Having no platforms is not an error, it simply returns an empty list.
func ListPlatforms(drv driver.Driver) ([]*Platform, error) {
	ids, status := drv.PlatformIDs()
	if status == driver.PlatformNotFound {
		klog.V(1).Infof("driver %q reported no platforms", drv.Name())
		return nil, nil
	}
	if err := Check(drv, status, "PlatformIDs"); err != nil {
		return nil, errors.WithMessagef(err, "failed to list platforms of compute driver %q", drv.Name())
	}
	platforms := make([]*Platform, len(ids))
	for ii, id := range ids {
		platforms[ii] = &Platform{drv: drv, id: id, index: ii}
	}
	return platforms, nil
}

// ID returns the driver handle of the platform.
func (p *Platform) ID() driver.PlatformID {
	return p.id
}

// Index returns the position of the platform in the driver's enumeration order.
func (p *Platform) Index() int {
	return p.index
}

// Info queries the driver for the description of the platform. The result is cached.
func (p *Platform) Info() (driver.PlatformInfo, error) {
	p.infoOnce.Do(func() {
		var status driver.Status
		p.info, status = p.drv.PlatformInfo(p.id)
		p.infoErr = Check(p.drv, status, "PlatformInfo")
	})
	return p.info, p.infoErr
}

// String implements fmt.Stringer.
func (p *Platform) String() string {
	info, err := p.Info()
	if err != nil {
		return fmt.Sprintf("Platform#%d[%#x]", p.index, p.id)
	}
	return fmt.Sprintf("Platform#%d[%s]", p.index, info)
}

package compute

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/gomlx/gocompute/driver"
	"github.com/pkg/errors"
)

var (
	// ErrNoComputeDevice is returned (wrapped) when no device of the requested type was found in any of the
	// platforms of the driver.
	ErrNoComputeDevice = errors.New("no accelerator device found")

	// ErrInvalidSlotIndex is never returned to the caller: it is carried by the Diagnostic emitted when a
	// queue or device is requested with an index out of range.
	ErrInvalidSlotIndex = errors.New("requested slot index is not available")

	// ErrDestroyed is carried by the Diagnostic emitted when resources are requested from a destroyed Manager.
	ErrDestroyed = errors.New("compute manager already destroyed")
)

// DriverError is the error returned when a driver call returns a status other than driver.Success.
type DriverError struct {
	// Driver is the name of the driver that returned the status.
	Driver string

	// Call is the name of the driver call that failed, e.g. "CreateContext".
	Call string

	// Location is the "file:line" in gocompute where the call was made.
	Location string

	// Code is the status returned by the driver.
	Code driver.Status

	// Message is the driver's human-readable description of the status.
	Message string
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error at %s (%s): %s status %d (%s): %s",
		e.Call, e.Location, e.Driver, int32(e.Code), e.Code, e.Message)
}

// Check converts the status returned by the driver call named call to an error, including the location
// (file and line) of the caller of Check.
//
// It returns nil if status is driver.Success, and otherwise a *DriverError with a stack trace (see
// github.com/pkg/errors). Use AsDriverError to retrieve it.
func Check(drv driver.Driver, status driver.Status, call string) error {
	if status == driver.Success {
		return nil
	}
	return errors.WithStack(newDriverError(drv, status, call, 2))
}

// newDriverError creates the *DriverError for status. skip is the number of stack frames to skip to find
// the location of the driver call, as in runtime.Caller.
func newDriverError(drv driver.Driver, status driver.Status, call string, skip int) *DriverError {
	location := "unknown"
	if _, file, line, ok := runtime.Caller(skip); ok {
		location = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return &DriverError{
		Driver:   drv.Name(),
		Call:     call,
		Location: location,
		Code:     status,
		Message:  drv.ErrorString(status),
	}
}

// AsDriverError returns the *DriverError in err's chain, if there is one.
func AsDriverError(err error) (*DriverError, bool) {
	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		return driverErr, true
	}
	return nil, false
}

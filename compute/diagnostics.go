package compute

import (
	"fmt"

	"k8s.io/klog/v2"
)

// DiagnosticKind enumerates the recoverable misuses reported by a Manager.
type DiagnosticKind int

const (
	// DiagnosticInvalidSlot is emitted when a queue or device is requested with an index out of range.
	// Slot 0 is used instead.
	DiagnosticInvalidSlot DiagnosticKind = iota

	// DiagnosticDestroyed is emitted when a queue or device is requested from a destroyed Manager.
	DiagnosticDestroyed
)

// String implements fmt.Stringer.
func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticInvalidSlot:
		return "InvalidSlot"
	case DiagnosticDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic describes a recoverable misuse of a Manager. It is reported to the Manager's DiagnosticHandler,
// and never returned as an error.
type Diagnostic struct {
	Kind DiagnosticKind

	// Resource is either "queue" or "device".
	Resource string

	// Requested is the index passed by the caller.
	Requested int

	// Used is the index actually used, or -1 if nothing was returned.
	Used int

	// Err is ErrInvalidSlotIndex or ErrDestroyed, wrapped with details.
	Err error
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	switch d.Kind {
	case DiagnosticInvalidSlot:
		return fmt.Sprintf("requested %s id %d is not available, default %s will be used (%s id = %d)",
			d.Resource, d.Requested, d.Resource, d.Resource, d.Used)
	case DiagnosticDestroyed:
		return fmt.Sprintf("requested %s id %d from a destroyed compute manager, nothing returned",
			d.Resource, d.Requested)
	default:
		return fmt.Sprintf("%s diagnostic for %s id %d: %v", d.Kind, d.Resource, d.Requested, d.Err)
	}
}

// DiagnosticHandler receives the diagnostics of a Manager. It may be called concurrently.
type DiagnosticHandler func(Diagnostic)

// LogDiagnostic is the default DiagnosticHandler: it logs the diagnostic as a warning.
func LogDiagnostic(d Diagnostic) {
	klog.Warningf("%s", d)
}

package spectrum

import (
	"fmt"
	"slices"
)

// Diagnostics accumulates warnings and fatal errors for one candidate record.
// Every pipeline stage takes and returns its own value; nothing is shared
// between concurrent validations.
type Diagnostics struct {
	Warnings []string
	Errors   []error
}

// Warnf appends a formatted warning.
func (d *Diagnostics) Warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Fail appends a fatal error. Nil errors are ignored.
func (d *Diagnostics) Fail(err error) {
	if err != nil {
		d.Errors = append(d.Errors, err)
	}
}

// Merge appends everything from other.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Errors = append(d.Errors, other.Errors...)
}

// HasErrors reports whether any fatal error was recorded.
func (d Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

// Clone returns an independent copy.
func (d Diagnostics) Clone() Diagnostics {
	return Diagnostics{
		Warnings: slices.Clone(d.Warnings),
		Errors:   slices.Clone(d.Errors),
	}
}

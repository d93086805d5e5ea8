// Package spectrum holds the spectrum record model, the curve codec and the
// record validator that enforces every payload invariant.
package spectrum

import "strings"

// Record is one laboratory spectrum and its descriptive metadata.
type Record struct {
	ID uint // store id, zero until persisted

	SampleID         string // unique identifier
	OriginalSampleID string // identifier as supplied, kept through renames

	SampleName    string
	Composition   string
	Formula       string
	GrainSize     string
	Locality      string
	MaterialClass string
	Description   string
	Other         string
	References    string
	Resolution    string
	ViewGeometry  string

	Origin   string   // origin catalog entry name, required
	Category string   // sample type name, optional
	Groups   []string // library memberships
	Released bool

	Filename string // source file the record was ingested from
	Image    string // generated image file name, if any

	Reflectance   string // serialized curve, see EncodeCurve
	MinWavelength float64
	MaxWavelength float64

	Simulated Simulated
	Warnings  []string // accumulated import notes
}

// Prefix returns the identifier as originally supplied. It is stored with
// the record so renamed records stay findable by the id they arrived with.
func (r *Record) Prefix() string {
	if r.OriginalSampleID != "" {
		return r.OriginalSampleID
	}
	return r.SampleID
}

// textFields lists the free-text fields normalized by the validator.
func (r *Record) textFields() []*string {
	return []*string{
		&r.SampleName, &r.Composition, &r.Formula, &r.GrainSize,
		&r.Locality, &r.MaterialClass, &r.Description, &r.Other,
		&r.References, &r.Resolution, &r.ViewGeometry,
	}
}

// Simulated maps filter set short name to filter name to simulated value.
// Each filter also has a "<filter>_NM" entry with its nominal wavelength.
type Simulated map[string]map[string]float64

// NominalSuffix marks the nominal wavelength entry of a filter.
const NominalSuffix = "_NM"

// NominalKey returns the cache key holding the nominal wavelength of filter.
func NominalKey(filter string) string {
	return filter + NominalSuffix
}

// IsNominalKey reports whether key is a nominal wavelength entry.
func IsNominalKey(key string) bool {
	return strings.HasSuffix(key, NominalSuffix)
}

// Result is the outcome of validating or persisting one record.
// Record is nil when Errors is non-empty.
type Result struct {
	Record   *Record
	Filename string
	Warnings []string
	Errors   []error
}

// OK reports whether the record passed.
func (r Result) OK() bool {
	return len(r.Errors) == 0 && r.Record != nil
}

// ErrorStrings renders errors for presentation.
func (r Result) ErrorStrings() []string {
	out := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		out[i] = err.Error()
	}
	return out
}

// Package filterset models instrument filter banks: a shared wavelength grid,
// power-normalized responsivity curves and nominal filter centers.
package filterset

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/spectrum"
)

// Sentinel errors, test with errors.Is.
var (
	ErrNoShortName        = errors.NewStd("filter set has no short name")
	ErrBadGrid            = errors.NewStd("filter set wavelength grid must be non-empty and strictly increasing")
	ErrNoFilters          = errors.NewStd("filter set defines no filters")
	ErrMisalignedFilter   = errors.NewStd("filter responsivity is not aligned to the wavelength grid")
	ErrMissingCenter      = errors.NewStd("filter has no nominal center wavelength")
	ErrMissingCurve       = errors.NewStd("filter has neither a responsivity curve nor a bandwidth")
	ErrZeroPower          = errors.NewStd("filter responsivity integrates to zero over the grid")
	ErrBadIllumination    = errors.NewStd("illumination must be a list of [wavelength, intensity] pairs")
	ErrDuplicateFilter    = errors.NewStd("filter name appears more than once")
	ErrFilterSetNotFound  = errors.NewStd("filter set not found")
	ErrUnknownDefinitions = errors.NewStd("filter set file holds no definitions")
)

// FilterSet is immutable reference data for one instrument.
type FilterSet struct {
	ShortName    string
	Name         string
	Description  string
	URL          string
	DisplayOrder int

	// Camera marks a clustered multi-band camera needing virtual filters.
	Camera bool
	// ResampleOnly instruments are resampled onto the grid, not convolved.
	ResampleOnly bool

	Wavelengths  []float64
	Filters      map[string][]float64 // responsivity per filter, aligned to Wavelengths
	Centers      map[string]float64   // nominal center per filter; cameras may list filters without a curve
	Illumination spectrum.Curve       // optional source spectrum
}

// HasIllumination reports whether an illumination spectrum is defined.
func (fs *FilterSet) HasIllumination() bool {
	return len(fs.Illumination) > 0
}

// FilterNames returns filter names ordered by nominal center, then name.
func (fs *FilterSet) FilterNames() []string {
	names := slices.Collect(maps.Keys(fs.Centers))
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(fs.Centers[a], fs.Centers[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

// BinName names the resampled value at wavelength w.
func BinName(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// Validate checks the structural invariants of a filter set.
func (fs *FilterSet) Validate() error {
	if fs.ShortName == "" {
		return validationError(ErrNoShortName, fs.ShortName, "")
	}
	if len(fs.Wavelengths) == 0 || !strictlyIncreasing(fs.Wavelengths) {
		return validationError(ErrBadGrid, fs.ShortName, "")
	}
	if fs.ResampleOnly {
		return nil
	}
	if len(fs.Filters) == 0 {
		return validationError(ErrNoFilters, fs.ShortName, "")
	}
	for name, resp := range fs.Filters {
		if len(resp) != len(fs.Wavelengths) {
			return validationError(ErrMisalignedFilter, fs.ShortName, name)
		}
		if _, ok := fs.Centers[name]; !ok {
			return validationError(ErrMissingCenter, fs.ShortName, name)
		}
	}
	if !fs.Camera {
		for name := range fs.Centers {
			if _, ok := fs.Filters[name]; !ok {
				return validationError(ErrMissingCurve, fs.ShortName, name)
			}
		}
	}
	return nil
}

func strictlyIncreasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}

func validationError(sentinel error, shortName, filter string) error {
	err := sentinel
	if filter != "" {
		err = fmt.Errorf("%w: %s", sentinel, filter)
	}
	b := errors.New(err).
		Category(errors.CategoryValidation).
		Context("filter_set", shortName)
	if filter != "" {
		b = b.Context("filter", filter)
	}
	return b.Build()
}

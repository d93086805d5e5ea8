// Package simulate convolves laboratory spectra with instrument filter sets
// and derives the virtual filters of clustered multi-band cameras.
package simulate

import (
	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/numeric"
	"github.com/visorlab/visor/internal/spectrum"
)

// Options control a simulation run.
type Options struct {
	// Illuminated weights the spectrum by the filter set's illumination
	// and normalizes by the illumination seen through each filter. It has
	// no effect on filter sets without illumination.
	Illuminated bool
}

// Response is the simulated value of one filter.
type Response struct {
	Filter     string
	Wavelength float64 // nominal center
	Value      float64
}

// Engine is stateless and safe for concurrent use.
type Engine struct{}

// Simulate returns one response per filter curve, ordered by nominal
// wavelength. Camera filters declared without a curve are left to the
// Deriver. Curves that do not overlap the filter grid produce zero
// responses.
func (Engine) Simulate(curve spectrum.Curve, fs *filterset.FilterSet, opts Options) []Response {
	xs := curve.Wavelengths()
	radiance := curve.Values()
	grid := fs.Wavelengths

	if fs.ResampleOnly {
		values := numeric.Interpolate(grid, xs, radiance)
		out := make([]Response, len(grid))
		for i, w := range grid {
			out[i] = Response{Filter: filterset.BinName(w), Wavelength: w, Value: values[i]}
		}
		return out
	}

	illuminated := opts.Illuminated && fs.HasIllumination()
	var irradiance []float64
	if illuminated {
		lw, lv := fs.Illumination.Wavelengths(), fs.Illumination.Values()
		radiance = numeric.Mul(radiance, numeric.Interpolate(xs, lw, lv))
		irradiance = numeric.Interpolate(grid, lw, lv)
	}
	radiance = numeric.Interpolate(grid, xs, radiance)

	names := fs.FilterNames()
	out := make([]Response, 0, len(names))
	for _, name := range names {
		resp, ok := fs.Filters[name]
		if !ok {
			continue
		}
		out = append(out, Response{
			Filter:     name,
			Wavelength: fs.Centers[name],
			Value:      convolve(grid, radiance, resp, irradiance),
		})
	}
	return out
}

// convolve integrates radiance through one filter. With irradiance the
// result is divided by the irradiance seen through the same filter; a zero
// denominator yields zero.
func convolve(grid, radiance, resp, irradiance []float64) float64 {
	value := numeric.TrapezoidProduct(grid, radiance, resp)
	if irradiance == nil {
		return value
	}
	scale := numeric.TrapezoidProduct(grid, resp, irradiance)
	if scale == 0 {
		return 0
	}
	return value / scale
}

// Values flattens responses into the cache layout: each filter's value plus
// its nominal wavelength under the "_NM" key.
func Values(responses []Response) map[string]float64 {
	out := make(map[string]float64, 2*len(responses))
	for _, r := range responses {
		out[r.Filter] = r.Value
		out[spectrum.NominalKey(r.Filter)] = r.Wavelength
	}
	return out
}

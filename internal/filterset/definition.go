package filterset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/numeric"
	"github.com/visorlab/visor/internal/spectrum"
)

// fwhmToSigma converts a Gaussian full width at half maximum to sigma.
const fwhmToSigma = 2.355

// Definition is the YAML form of a filter set as supplied by an operator.
// Filter curves may be sampled on their own grid; Build resamples them onto
// the shared grid and normalizes their power.
type Definition struct {
	ShortName    string             `yaml:"short_name"`
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description,omitempty"`
	URL          string             `yaml:"url,omitempty"`
	DisplayOrder int                `yaml:"display_order,omitempty"`
	Camera       bool               `yaml:"camera,omitempty"`
	ResampleOnly bool               `yaml:"resample_only,omitempty"`
	Wavelengths  []float64          `yaml:"wavelengths"`
	Filters      []FilterDefinition `yaml:"filters,omitempty"`
	Illumination [][]float64        `yaml:"illumination,omitempty"`
}

// FilterDefinition describes one filter. Either Responsivity (optionally on
// its own Wavelengths) or FWHM must be given, except in camera sets, where
// a filter may be declared by its center alone. Such a filter takes the
// value of its pair partner.
type FilterDefinition struct {
	Name         string    `yaml:"name"`
	Center       float64   `yaml:"center"`
	FWHM         float64   `yaml:"fwhm,omitempty"`
	Wavelengths  []float64 `yaml:"wavelengths,omitempty"`
	Responsivity []float64 `yaml:"responsivity,omitempty"`
}

// DefaultDisplayOrder sorts filter sets without an explicit order last.
const DefaultDisplayOrder = 10000

// Build turns a definition into a validated filter set.
func Build(def Definition) (*FilterSet, error) {
	fs := &FilterSet{
		ShortName:    strings.TrimSpace(def.ShortName),
		Name:         strings.TrimSpace(def.Name),
		Description:  def.Description,
		URL:          def.URL,
		DisplayOrder: def.DisplayOrder,
		Camera:       def.Camera,
		ResampleOnly: def.ResampleOnly,
		Wavelengths:  def.Wavelengths,
		Centers:      make(map[string]float64),
	}
	if fs.DisplayOrder == 0 {
		fs.DisplayOrder = DefaultDisplayOrder
	}
	if fs.Name == "" {
		fs.Name = fs.ShortName
	}
	if fs.ShortName == "" {
		return nil, validationError(ErrNoShortName, "", "")
	}
	if len(fs.Wavelengths) == 0 || !strictlyIncreasing(fs.Wavelengths) {
		return nil, validationError(ErrBadGrid, fs.ShortName, "")
	}

	illumination, err := buildIllumination(fs.ShortName, def.Illumination)
	if err != nil {
		return nil, err
	}
	fs.Illumination = illumination

	if fs.ResampleOnly {
		for _, w := range fs.Wavelengths {
			fs.Centers[BinName(w)] = w
		}
		return fs, nil
	}

	fs.Filters = make(map[string][]float64, len(def.Filters))
	for _, fd := range def.Filters {
		name := strings.TrimSpace(fd.Name)
		if _, dup := fs.Filters[name]; dup {
			return nil, validationError(ErrDuplicateFilter, fs.ShortName, name)
		}
		if fd.Center <= 0 {
			return nil, validationError(ErrMissingCenter, fs.ShortName, name)
		}
		if fs.Camera && !fd.hasCurve() {
			fs.Centers[name] = fd.Center
			continue
		}

		raw, err := rawCurve(fs.Wavelengths, fd)
		if err != nil {
			return nil, validationError(err, fs.ShortName, name)
		}
		resp, err := NormalizePower(raw, fs.Wavelengths)
		if err != nil {
			return nil, validationError(err, fs.ShortName, name)
		}
		fs.Filters[name] = resp
		fs.Centers[name] = fd.Center
	}

	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fd FilterDefinition) hasCurve() bool {
	return len(fd.Responsivity) > 0 || fd.FWHM > 0
}

// rawCurve samples a filter definition onto bins.
func rawCurve(bins []float64, fd FilterDefinition) ([]float64, error) {
	switch {
	case len(fd.Responsivity) > 0 && len(fd.Wavelengths) > 0:
		if len(fd.Wavelengths) != len(fd.Responsivity) {
			return nil, ErrMisalignedFilter
		}
		return numeric.Interpolate(bins, fd.Wavelengths, fd.Responsivity), nil
	case len(fd.Responsivity) > 0:
		if len(fd.Responsivity) != len(bins) {
			return nil, ErrMisalignedFilter
		}
		return append([]float64(nil), fd.Responsivity...), nil
	case fd.FWHM > 0:
		dist := distuv.Normal{Mu: fd.Center, Sigma: fd.FWHM / fwhmToSigma}
		out := make([]float64, len(bins))
		for i, w := range bins {
			out[i] = dist.Prob(w)
		}
		return out, nil
	default:
		return nil, ErrMissingCurve
	}
}

// NormalizePower scales resp so that its trapezoidal integral over bins is 1.
func NormalizePower(resp, bins []float64) ([]float64, error) {
	if len(resp) != len(bins) {
		return nil, ErrMisalignedFilter
	}
	power := numeric.Trapezoid(bins, resp)
	if power <= 0 {
		return nil, ErrZeroPower
	}
	out := make([]float64, len(resp))
	for i, v := range resp {
		out[i] = v / power
	}
	return out, nil
}

func buildIllumination(shortName string, pairs [][]float64) (spectrum.Curve, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	wavelengths := make([]float64, 0, len(pairs))
	values := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return nil, validationError(ErrBadIllumination, shortName, "")
		}
		wavelengths = append(wavelengths, p[0])
		values = append(values, p[1])
	}
	if !strictlyIncreasing(wavelengths) {
		return nil, validationError(ErrBadIllumination, shortName, "")
	}
	return spectrum.CurveFromColumns(wavelengths, values), nil
}

// Decode reads one or more YAML documents of filter set definitions.
func Decode(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	var defs []Definition
	for {
		var def Definition
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.New(fmt.Errorf("decode filter set: %w", err)).
				Category(errors.CategoryFileParsing).
				Build()
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, errors.New(ErrUnknownDefinitions).
			Category(errors.CategoryFileParsing).
			Build()
	}
	return defs, nil
}

// LoadFile decodes and builds every filter set in a YAML file.
func LoadFile(path string) ([]*FilterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	defs, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out := make([]*FilterSet, 0, len(defs))
	for _, def := range defs {
		fs, err := Build(def)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, nil
}

// Encode writes definitions as a multi-document YAML stream.
func Encode(w io.Writer, defs ...Definition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, def := range defs {
		if err := enc.Encode(def); err != nil {
			return err
		}
	}
	return enc.Close()
}

package spectrum

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is one (wavelength, reflectance) sample.
type Point struct {
	Wavelength float64
	Value      float64
}

// Curve is a payload sorted ascending by wavelength.
type Curve []Point

// Wavelengths returns the wavelength column.
func (c Curve) Wavelengths() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Wavelength
	}
	return out
}

// Values returns the reflectance column.
func (c Curve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Value
	}
	return out
}

// CurveFromColumns zips two equally long columns into a curve.
func CurveFromColumns(wavelengths, values []float64) Curve {
	n := min(len(wavelengths), len(values))
	out := make(Curve, n)
	for i := range n {
		out[i] = Point{Wavelength: wavelengths[i], Value: values[i]}
	}
	return out
}

// EncodeCurve serializes a curve as a JSON array of pairs. Numbers use the
// shortest representation that round-trips, so equal curves encode to equal
// bytes.
func EncodeCurve(c Curve) string {
	var b strings.Builder
	b.Grow(len(c) * 16)
	b.WriteByte('[')
	for i, p := range c {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		b.WriteString(strconv.FormatFloat(p.Wavelength, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Value, 'g', -1, 64))
		b.WriteByte(']')
	}
	b.WriteByte(']')
	return b.String()
}

// DecodeCurve parses a payload previously produced by EncodeCurve.
func DecodeCurve(s string) (Curve, error) {
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("decode curve: %w", err)
	}
	out := make(Curve, len(pairs))
	for i, p := range pairs {
		out[i] = Point{Wavelength: p[0], Value: p[1]}
	}
	return out, nil
}

// parseMatrix reads a payload into a numeric matrix. It distinguishes text
// that is not an array of arrays from cells that are not numbers.
func parseMatrix(s string) ([][]float64, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &raw); err != nil {
		return nil, ErrNotArray
	}

	out := make([][]float64, len(raw))
	for i, rowText := range raw {
		var row []any
		if err := json.Unmarshal(rowText, &row); err != nil {
			return nil, ErrNotArray
		}
		out[i] = make([]float64, len(row))
		for j, cell := range row {
			v, ok := toFloat(cell)
			if !ok {
				return nil, fmt.Errorf("%w: %v", ErrNonNumeric, cell)
			}
			out[i][j] = v
		}
	}
	return out, nil
}

// toFloat accepts JSON numbers and numeric strings. NaN and infinities are
// refused since they have no JSON encoding.
func toFloat(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

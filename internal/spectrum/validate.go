package spectrum

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/logger"
)

// DefaultCeiling is the reflectance value no payload may reach. Values this
// large are almost always percent-scale data left unconverted.
const DefaultCeiling = 5.0

// Sentinel errors, test with errors.Is.
var (
	ErrNotArray      = errors.NewStd("reflectance values are not formatted as an array")
	ErrNonNumeric    = errors.NewStd("reflectance data contains values that are not numbers")
	ErrNotTwoColumns = errors.NewStd("reflectance data is not organized into two columns")
	ErrAboveCeiling  = errors.NewStd("reflectance exceeds the sanity ceiling")
	ErrMissingOrigin = errors.NewStd("record has no origin")
	ErrMissingID     = errors.NewStd("record has no sample id")
)

// Validator is the sole authority over record invariants. It is stateless
// apart from configuration and safe for concurrent use.
type Validator struct {
	ceiling float64
	log     logger.Logger
}

// NewValidator returns a validator rejecting payloads whose maximum value
// reaches ceiling. A non-positive ceiling selects DefaultCeiling.
func NewValidator(ceiling float64, log logger.Logger) *Validator {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Validator{ceiling: ceiling, log: log}
}

// Clean normalizes and checks rec. Diagnostics collected by earlier stages
// are carried through d. It is idempotent: cleaning a clean record yields
// the same payload and bounds.
func (v *Validator) Clean(rec Record, d Diagnostics) Result {
	d = d.Clone()
	rec.Groups = slices.Clone(rec.Groups)

	for _, field := range rec.textFields() {
		*field = normalizeText(*field)
	}
	rec.SampleID = strings.TrimSpace(rec.SampleID)
	rec.Origin = strings.TrimSpace(rec.Origin)
	if rec.SampleID == "" {
		d.Fail(v.dataError(ErrMissingID, &rec))
	}
	if rec.Origin == "" {
		d.Fail(v.dataError(ErrMissingOrigin, &rec))
	}

	curve, err := v.cleanCurve(&rec, &d)
	if err != nil {
		d.Fail(err)
	} else {
		rec.Reflectance = EncodeCurve(curve)
		rec.MinWavelength = math.RoundToEven(curve[0].Wavelength)
		rec.MaxWavelength = math.RoundToEven(curve[len(curve)-1].Wavelength)
	}

	if d.HasErrors() {
		v.log.Debug("record rejected",
			logger.String("sample_id", rec.SampleID),
			logger.Int("errors", len(d.Errors)))
		return Result{Filename: rec.Filename, Warnings: d.Warnings, Errors: d.Errors}
	}

	rec.Warnings = appendUnique(slices.Clone(rec.Warnings), d.Warnings...)
	return Result{Record: &rec, Filename: rec.Filename, Warnings: d.Warnings}
}

// cleanCurve parses, orients, filters, sorts and bounds-checks the payload.
func (v *Validator) cleanCurve(rec *Record, d *Diagnostics) (Curve, error) {
	matrix, err := parseMatrix(rec.Reflectance)
	if err != nil {
		return nil, v.dataError(err, rec)
	}

	// Wide payloads hold wavelengths in row 0 and values in row 1.
	if !hasWidth(matrix, 2) {
		matrix = transpose(matrix)
	}

	kept := matrix[:0:0]
	dropped := 0
	for _, row := range matrix {
		if slices.ContainsFunc(row, func(x float64) bool { return x < 0 }) {
			dropped++
			continue
		}
		kept = append(kept, row)
	}
	if dropped > 0 {
		d.Warnf("Warning: there are negative-valued items in the reflectance data for %s. These have been deleted.", rec.SampleID)
	}

	if len(kept) == 0 || !hasWidth(kept, 2) {
		return nil, v.dataError(ErrNotTwoColumns, rec)
	}

	curve := make(Curve, len(kept))
	for i, row := range kept {
		curve[i] = Point{Wavelength: row[0], Value: row[1]}
	}
	slices.SortStableFunc(curve, func(a, b Point) int {
		switch {
		case a.Wavelength < b.Wavelength:
			return -1
		case a.Wavelength > b.Wavelength:
			return 1
		default:
			return 0
		}
	})

	peak := slices.MaxFunc(curve, func(a, b Point) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		default:
			return 0
		}
	}).Value
	if peak >= v.ceiling {
		return nil, errors.New(fmt.Errorf("%w: maximum %g is not below %g; percent-scale data must be converted to fractional reflectance",
			ErrAboveCeiling, peak, v.ceiling)).
			Category(errors.CategoryData).
			Context("sample_id", rec.SampleID).
			Context("max_value", peak).
			Build()
	}

	return curve, nil
}

func (v *Validator) dataError(err error, rec *Record) error {
	return errors.New(err).
		Category(errors.CategoryData).
		Context("sample_id", rec.SampleID).
		FileContext(rec.Filename).
		Build()
}

func hasWidth(m [][]float64, width int) bool {
	for _, row := range m {
		if len(row) != width {
			return false
		}
	}
	return true
}

// transpose flips a rectangular matrix; ragged input is returned unchanged.
func transpose(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return m
	}
	width := len(m[0])
	for _, row := range m {
		if len(row) != width {
			return m
		}
	}
	out := make([][]float64, width)
	for j := range width {
		out[j] = make([]float64, len(m))
		for i := range m {
			out[j][i] = m[i][j]
		}
	}
	return out
}

// normalizeText trims, replaces commas so CSV export stays unambiguous and
// upper-cases the first letter.
func normalizeText(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "_"))
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

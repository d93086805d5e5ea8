package fields

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/spectrum"
)

// Sentinel errors, test with errors.Is.
var (
	ErrUnrecognizedField = errors.NewStd("not a valid field name for this database")
	ErrAssignedTwice     = errors.NewStd("field assigned more than once")
	ErrGrainSizeUnit     = errors.NewStd("grain size label carries a nanometre unit; check the unit")
	ErrInvalidFlag       = errors.NewStd("value is not a valid true/false flag")
)

// GroupSeparator separates group names in a Libraries value.
const GroupSeparator = ";"

// Row is one metadata row: a label and the value for a single sample.
type Row struct {
	Label string
	Value string
}

// Mapped holds the canonical field values of one candidate record.
type Mapped map[Key]string

// Clone returns an independent copy.
func (m Mapped) Clone() Mapped {
	out := make(Mapped, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Has reports whether key carries a non-empty value.
func (m Mapped) Has(key Key) bool {
	return strings.TrimSpace(m[key]) != ""
}

// assignment strength; a direct label beats a legacy alias for the same key.
const (
	weak = iota + 1
	strong
)

// Map translates metadata rows into canonical fields. Empty and "nan"
// values are skipped. Unknown labels and labels assigned twice are fatal
// field errors; every offending label is reported.
func Map(rows []Row) (Mapped, spectrum.Diagnostics) {
	var d spectrum.Diagnostics
	fold := cases.Fold()

	out := make(Mapped)
	strength := make(map[Key]int)

	assign := func(key Key, value, label string, s int) {
		switch {
		case strength[key] == 0 || s > strength[key]:
			out[key] = value
			strength[key] = s
		case s == strength[key]:
			d.Fail(fieldError(ErrAssignedTwice, label))
		}
	}

	for _, row := range rows {
		value := strings.TrimSpace(row.Value)
		if value == "" || strings.EqualFold(value, "nan") {
			continue
		}
		label := normalizeLabel(fold, row.Label)

		if matches := labels[label]; len(matches) > 0 {
			if len(matches) > 1 {
				d.Fail(fieldError(ErrAssignedTwice, row.Label))
				continue
			}
			f := matches[0]
			switch f.Disposition {
			case Recomputed:
				d.Warnf("The %s field is recomputed from the reflectance data; the supplied value %q was not used.", f.Label, value)
			case Ignored:
				d.Warnf("The %s field cannot be set by an upload and was ignored.", f.Label)
			default:
				assign(f.Key, value, row.Label, strong)
			}
			continue
		}

		key, ok := mapLegacy(label, row.Label, &d)
		if ok {
			assign(key, value, row.Label, weak)
		}
	}

	if raw, ok := out[KeyReleased]; ok {
		if _, err := strconv.ParseBool(strings.ToLower(raw)); err != nil {
			d.Fail(fieldError(ErrInvalidFlag, LabelFor(KeyReleased)))
			delete(out, KeyReleased)
		}
	}

	return out, d
}

// mapLegacy applies the ordered alias rules to a label that matched no
// table entry. The grain size rule fails hard on nanometre units while the
// other ambiguous labels are only warned about.
func mapLegacy(label, original string, d *spectrum.Diagnostics) (Key, bool) {
	switch {
	case label == "", label == "nan":
		d.Warnf("Warning: a row in the input had no label and was skipped.")
		return "", false
	case label == "data id":
		d.Warnf("Warning: the Data ID field is recognized for legacy purposes but is only used when no Sample ID is provided.")
		return KeySampleID, true
	case strings.Contains(label, "grain"):
		if hasNanometreUnit(label) {
			d.Fail(fieldError(ErrGrainSizeUnit, original))
			return "", false
		}
		d.Warnf("Warning: the %q field is interpreted as %s.", original, LabelFor(KeyGrainSize))
		return KeyGrainSize, true
	case slices.Contains([]string{"mineral name", "sample name", "name", "sample"}, label):
		d.Warnf("Warning: the %q field is interpreted as %s.", original, LabelFor(KeySampleName))
		return KeySampleName, true
	case strings.Contains(label, "origin"):
		return KeyOrigin, true
	case strings.Contains(label, "geometry"):
		d.Warnf("Warning: the %q field is interpreted as %s.", original, LabelFor(KeyViewGeometry))
		return KeyViewGeometry, true
	case strings.Contains(label, "descrip"), strings.Contains(label, "comments"):
		d.Warnf("Warning: the %q field is interpreted as %s.", original, LabelFor(KeyDescription))
		return KeyDescription, true
	case strings.Contains(label, "notes"):
		d.Warnf("Warning: the %q field is interpreted as %s.", original, LabelFor(KeyOther))
		return KeyOther, true
	case strings.Contains(label, "reflectance"):
		d.Warnf("The minimum and maximum reflectance fields are recognized for legacy purposes but are computed from the reflectance data.")
		return "", false
	default:
		d.Fail(fieldError(ErrUnrecognizedField, original))
		return "", false
	}
}

var nanometreTokens = []string{"nm", "nanometer", "nanometers", "nanometre", "nanometres"}

func hasNanometreUnit(label string) bool {
	tokens := strings.FieldsFunc(label, func(r rune) bool { return !unicode.IsLetter(r) })
	return slices.ContainsFunc(tokens, func(t string) bool {
		return slices.Contains(nanometreTokens, t)
	})
}

func fieldError(sentinel error, label string) error {
	return errors.New(fmt.Errorf("%q: %w", label, sentinel)).
		Category(errors.CategoryField).
		Context("label", label).
		Build()
}

// Apply copies the mapped values onto rec. Groups are split on
// GroupSeparator; the released flag must already be valid.
func (m Mapped) Apply(rec *spectrum.Record) {
	text := map[Key]*string{
		KeySampleID:         &rec.SampleID,
		KeyOriginalSampleID: &rec.OriginalSampleID,
		KeySampleName:       &rec.SampleName,
		KeyComposition:      &rec.Composition,
		KeyFormula:          &rec.Formula,
		KeyGrainSize:        &rec.GrainSize,
		KeyLocality:         &rec.Locality,
		KeyMaterialClass:    &rec.MaterialClass,
		KeyDescription:      &rec.Description,
		KeyOther:            &rec.Other,
		KeyReferences:       &rec.References,
		KeyResolution:       &rec.Resolution,
		KeyViewGeometry:     &rec.ViewGeometry,
		KeyOrigin:           &rec.Origin,
		KeyCategory:         &rec.Category,
	}
	for key, dst := range text {
		if v, ok := m[key]; ok {
			*dst = v
		}
	}
	if v, ok := m[KeyGroups]; ok {
		rec.Groups = SplitGroups(v)
	}
	if v, ok := m[KeyReleased]; ok {
		rec.Released, _ = strconv.ParseBool(strings.ToLower(v))
	}
}

// SplitGroups splits a Libraries value into trimmed, unique names.
func SplitGroups(v string) []string {
	var out []string
	for _, name := range strings.Split(v, GroupSeparator) {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// Package fields maps free-text metadata labels found in uploaded
// spreadsheets onto the canonical record fields.
package fields

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/visorlab/visor/internal/errors"
)

// Key identifies a canonical record field.
type Key string

// Canonical field keys.
const (
	KeySampleID         Key = "sample_id"
	KeyOriginalSampleID Key = "original_sample_id"
	KeySampleName       Key = "sample_name"
	KeyComposition      Key = "composition"
	KeyFormula          Key = "formula"
	KeyGrainSize        Key = "grain_size"
	KeyLocality         Key = "locality"
	KeyMaterialClass    Key = "material_class"
	KeyDescription      Key = "sample_desc"
	KeyOther            Key = "other"
	KeyReferences       Key = "references"
	KeyResolution       Key = "resolution"
	KeyViewGeometry     Key = "view_geom"
	KeyOrigin           Key = "origin"
	KeyCategory         Key = "sample_type"
	KeyGroups           Key = "libraries"
	KeyReleased         Key = "released"
	KeyMinWavelength    Key = "min_wavelength"
	KeyMaxWavelength    Key = "max_wavelength"
	KeyDateAdded        Key = "date_added"
	KeyFilename         Key = "filename"
	KeyImage            Key = "image"
	KeyImportNotes      Key = "import_notes"
	KeySimulated        Key = "simulated_spectra"
	KeyReflectance      Key = "reflectance"
)

// Disposition says what the mapper does with a recognized label.
type Disposition int

const (
	// Store keeps the value.
	Store Disposition = iota
	// Recomputed fields are owned by the validator; a supplied value only
	// produces a warning.
	Recomputed
	// Ignored fields are never taken from an upload; a supplied value only
	// produces a warning.
	Ignored
)

// Field is one entry of the label table.
type Field struct {
	Key         Key
	Label       string   // display label
	Aliases     []string // alternate labels accepted without warning
	Disposition Disposition
}

// Table is the canonical label table.
var Table = []Field{
	{Key: KeySampleID, Label: "Sample ID", Aliases: []string{"sample #", "sample number"}},
	{Key: KeyOriginalSampleID, Label: "Original Sample ID"},
	{Key: KeySampleName, Label: "Sample Name"},
	{Key: KeyComposition, Label: "Composition"},
	{Key: KeyFormula, Label: "Formula"},
	{Key: KeyGrainSize, Label: "Grain Size"},
	{Key: KeyLocality, Label: "Locality"},
	{Key: KeyMaterialClass, Label: "Material Class"},
	{Key: KeyDescription, Label: "Sample Description"},
	{Key: KeyOther, Label: "Other Information"},
	{Key: KeyReferences, Label: "References"},
	{Key: KeyResolution, Label: "Resolution"},
	{Key: KeyViewGeometry, Label: "Viewing Geometry"},
	{Key: KeyOrigin, Label: "Database of Origin", Aliases: []string{"origin"}},
	{Key: KeyCategory, Label: "Sample Type", Aliases: []string{"category"}},
	{Key: KeyGroups, Label: "Libraries", Aliases: []string{"library", "groups"}},
	{Key: KeyReleased, Label: "Released to Public", Aliases: []string{"released"}},
	{Key: KeyMinWavelength, Label: "Minimum Wavelength", Disposition: Recomputed},
	{Key: KeyMaxWavelength, Label: "Maximum Wavelength", Disposition: Recomputed},
	{Key: KeyDateAdded, Label: "Date Added", Disposition: Ignored},
	{Key: KeyFilename, Label: "Name of Uploaded File", Disposition: Ignored},
	{Key: KeyImage, Label: "Path to Image", Disposition: Ignored},
	{Key: KeyImportNotes, Label: "File import notes", Disposition: Ignored},
	{Key: KeySimulated, Label: "Simulated Spectra", Disposition: Ignored},
	{Key: KeyReflectance, Label: "Reflectance", Disposition: Ignored},
}

// ErrDuplicateLabel reports an inconsistent label table.
var ErrDuplicateLabel = errors.NewStd("label table assigns one label to several fields")

// labels indexes Table by normalized label. Built by Check.
var labels map[string][]Field

func init() {
	if err := Check(); err != nil {
		panic(err)
	}
}

// Check verifies that no two canonical keys share a label or alias and
// builds the lookup index.
func Check() error {
	index := make(map[string][]Field, len(Table)*2)
	seenKeys := make(map[Key]bool, len(Table))
	fold := cases.Fold()

	var problems []string
	for _, f := range Table {
		if seenKeys[f.Key] {
			problems = append(problems, fmt.Sprintf("key %s declared twice", f.Key))
		}
		seenKeys[f.Key] = true

		for _, label := range append([]string{f.Label}, f.Aliases...) {
			norm := normalizeLabel(fold, label)
			for _, other := range index[norm] {
				if other.Key != f.Key {
					problems = append(problems, fmt.Sprintf("%q used by %s and %s", label, other.Key, f.Key))
				}
			}
			index[norm] = append(index[norm], f)
		}
	}
	if len(problems) > 0 {
		return errors.New(fmt.Errorf("%w: %s", ErrDuplicateLabel, strings.Join(problems, "; "))).
			Category(errors.CategoryConfiguration).
			Build()
	}

	labels = index
	return nil
}

// Lookup returns the fields whose label or alias matches label after
// case folding and whitespace collapsing.
func Lookup(label string) []Field {
	return labels[normalizeLabel(cases.Fold(), label)]
}

// LabelFor returns the display label of key, or the key itself.
func LabelFor(key Key) string {
	for _, f := range Table {
		if f.Key == key {
			return f.Label
		}
	}
	return string(key)
}

func normalizeLabel(fold cases.Caser, s string) string {
	return strings.Join(strings.Fields(fold.String(s)), " ")
}

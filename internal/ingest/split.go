package ingest

import (
	"fmt"
	"strconv"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/fields"
	"github.com/visorlab/visor/internal/grid"
	"github.com/visorlab/visor/internal/spectrum"
)

// Sentinel errors, test with errors.Is.
var (
	ErrColumnMismatch = errors.NewStd("metadata columns do not line up with reflectance columns")
	ErrNoReflectance  = errors.NewStd("no reflectance column found below the 'Wavelength' marker")
)

// Column is the share of one sample in a (possibly multi-sample) grid.
type Column struct {
	Index       int          // reflectance column, zero based
	Rows        []fields.Row // metadata rows for this sample
	Reflectance string       // encoded curve, not yet validated
}

// Split pairs every reflectance column of b with its metadata column. A
// single metadata column is broadcast to every reflectance column with a
// warning. Any other disagreement between the column counts is a field
// error that fails the whole grid.
func Split(b grid.Blocks) ([]Column, []string, error) {
	values := b.ValueColumns()
	if values < 1 {
		return nil, nil, errors.New(ErrNoReflectance).
			Category(errors.CategoryData).
			Build()
	}
	metaCols := b.MetadataColumns()

	var warnings []string
	broadcast := false
	switch {
	case metaCols == values:
	case metaCols <= 1:
		broadcast = true
		if values > 1 {
			warnings = append(warnings, fmt.Sprintf(
				"The metadata of this file was applied to all %d reflectance columns.", values))
		}
	default:
		return nil, nil, errors.New(fmt.Errorf("%w: %d metadata columns, %d reflectance columns",
			ErrColumnMismatch, metaCols, values)).
			Category(errors.CategoryField).
			Context("metadata_columns", metaCols).
			Context("reflectance_columns", values).
			Build()
	}

	wavelengths := make([]float64, len(b.Data))
	for i, row := range b.Data {
		wavelengths[i] = row[0]
	}

	out := make([]Column, values)
	for col := range values {
		meta := col
		if broadcast {
			meta = 0
		}
		reflectance := make([]float64, len(b.Data))
		for i, row := range b.Data {
			reflectance[i] = row[col+1]
		}
		out[col] = Column{
			Index:       col,
			Rows:        metadataRows(b.Metadata, meta),
			Reflectance: spectrum.EncodeCurve(spectrum.CurveFromColumns(wavelengths, reflectance)),
		}
	}
	return out, warnings, nil
}

func metadataRows(meta [][]string, col int) []fields.Row {
	rows := make([]fields.Row, 0, len(meta))
	for _, row := range meta {
		if len(row) == 0 {
			continue
		}
		r := fields.Row{Label: row[0]}
		if col+1 < len(row) {
			r.Value = row[col+1]
		}
		rows = append(rows, r)
	}
	return rows
}

// SuffixIdentifiers appends "_0", "_1", ... in column order when every
// mapped sample of a multi-sample grid carries the same non-empty
// identifier. It reports whether identifiers were changed.
func SuffixIdentifiers(mapped []fields.Mapped) bool {
	if len(mapped) < 2 {
		return false
	}
	id := mapped[0][fields.KeySampleID]
	if id == "" {
		return false
	}
	for _, m := range mapped[1:] {
		if m[fields.KeySampleID] != id {
			return false
		}
	}
	for i, m := range mapped {
		m[fields.KeySampleID] = id + "_" + strconv.Itoa(i)
	}
	return true
}

// Package grid turns uploaded spreadsheets into long-form text grids and
// splits them into a metadata block and a numeric data block at the
// "Wavelength" marker row.
package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/visorlab/visor/internal/errors"
)

// Marker separates metadata rows from wavelength rows in column 0.
const Marker = "Wavelength"

// Sentinel errors, test with errors.Is.
var (
	ErrMarkerNotFound        = errors.NewStd("'Wavelength' marker not found")
	ErrMarkerAmbiguous       = errors.NewStd("'Wavelength' marker appears more than once")
	ErrNonNumericReflectance = errors.NewStd("reflectance data contains non-numeric values")
	ErrUnsupportedFormat     = errors.NewStd("unsupported spreadsheet format")
	ErrEmptyGrid             = errors.NewStd("spreadsheet is empty")
)

// Grid is a rectangular table of trimmed text cells, rows first.
type Grid [][]string

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Cols returns the width of the widest row.
func (g Grid) Cols() int {
	width := 0
	for _, row := range g {
		width = max(width, len(row))
	}
	return width
}

// Normalize pads the grid to a rectangle, transposes it when it is wider
// than tall and trims whitespace from every cell. It never fails.
func Normalize(g Grid) Grid {
	rows, cols := g.Rows(), g.Cols()

	out := make(Grid, rows)
	for i, row := range g {
		out[i] = make([]string, cols)
		for j, cell := range row {
			out[i][j] = strings.TrimSpace(cell)
		}
	}

	if cols <= rows {
		return out
	}

	flipped := make(Grid, cols)
	for j := range cols {
		flipped[j] = make([]string, rows)
		for i := range rows {
			flipped[j][i] = out[i][j]
		}
	}
	return flipped
}

// Blocks is a grid split at the marker row.
type Blocks struct {
	// Metadata rows: label in column 0, one value column per sample.
	Metadata [][]string
	// Data rows: wavelength in column 0, one reflectance column per sample.
	Data [][]float64
}

// ValueColumns returns the number of reflectance columns in the data block.
func (b Blocks) ValueColumns() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0]) - 1
}

// MetadataColumns returns the number of metadata value columns.
func (b Blocks) MetadataColumns() int {
	width := 0
	for _, row := range b.Metadata {
		width = max(width, len(row)-1)
	}
	return width
}

// Separate locates the single marker row in column 0 and splits the grid
// around it. Rows above become metadata, rows below become numeric data.
// Wholly empty rows and columns are dropped from both blocks.
func Separate(g Grid) (Blocks, error) {
	markerRow := -1
	for i, row := range g {
		if len(row) == 0 || row[0] != Marker {
			continue
		}
		if markerRow >= 0 {
			return Blocks{}, errors.New(ErrMarkerAmbiguous).
				Category(errors.CategoryStructural).
				Context("first_row", markerRow).
				Context("second_row", i).
				Build()
		}
		markerRow = i
	}
	if markerRow < 0 {
		return Blocks{}, errors.New(ErrMarkerNotFound).
			Category(errors.CategoryStructural).
			Build()
	}

	meta := dropEmpty(g[:markerRow])
	dataText := dropEmpty(g[markerRow+1:])

	data := make([][]float64, len(dataText))
	for i, row := range dataText {
		data[i] = make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = strconv.ErrSyntax
			}
			if err != nil {
				return Blocks{}, errors.New(fmt.Errorf("%w: %q at data row %d", ErrNonNumericReflectance, cell, i+1)).
					Category(errors.CategoryData).
					Context("row", i+1).
					Context("column", j).
					Build()
			}
			data[i][j] = v
		}
	}

	return Blocks{Metadata: meta, Data: data}, nil
}

// dropEmpty removes rows and columns whose cells are all empty.
func dropEmpty(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	keepCol := make([]bool, width)
	for _, row := range rows {
		for j, cell := range row {
			if cell != "" {
				keepCol[j] = true
			}
		}
	}

	var out [][]string
	for _, row := range rows {
		var kept []string
		empty := true
		for j := range width {
			if !keepCol[j] {
				continue
			}
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			if cell != "" {
				empty = false
			}
			kept = append(kept, cell)
		}
		if !empty {
			out = append(out, kept)
		}
	}
	return out
}

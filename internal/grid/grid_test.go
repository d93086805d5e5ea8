package grid

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/visorlab/visor/internal/errors"
)

const singleSample = "Sample ID,A1\nSample Name,olivine\nWavelength,\n400,0.1\n500,0.2\n"

func TestReadAndSeparateSingleSample(t *testing.T) {
	t.Parallel()

	raw, err := Read("olivine.csv", strings.NewReader(singleSample))
	require.NoError(t, err)

	blocks, err := Separate(Normalize(raw))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"Sample ID", "A1"}, {"Sample Name", "olivine"}}, blocks.Metadata)
	assert.Equal(t, [][]float64{{400, 0.1}, {500, 0.2}}, blocks.Data)
	assert.Equal(t, 1, blocks.ValueColumns())
	assert.Equal(t, 1, blocks.MetadataColumns())
}

func TestReadStripsByteOrderMark(t *testing.T) {
	t.Parallel()

	raw, err := Read("bom.csv", strings.NewReader("\ufeff"+singleSample))
	require.NoError(t, err)
	assert.Equal(t, "Sample ID", raw[0][0])
}

func TestNormalizeTransposesWideGrids(t *testing.T) {
	t.Parallel()

	wide := Grid{
		{" Sample ID ", "Wavelength", "400", "500"},
		{"A1", "", " 0.1", "0.2 "},
	}

	got := Normalize(wide)
	assert.Equal(t, Grid{
		{"Sample ID", "A1"},
		{"Wavelength", ""},
		{"400", "0.1"},
		{"500", "0.2"},
	}, got)
}

func TestNormalizePadsRaggedRows(t *testing.T) {
	t.Parallel()

	got := Normalize(Grid{{"a", "b"}, {"c"}, {"d"}})
	assert.Equal(t, Grid{{"a", "b"}, {"c", ""}, {"d", ""}}, got)
}

func TestSeparateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		grid     Grid
		sentinel error
		category errors.ErrorCategory
	}{
		{
			name:     "marker missing",
			grid:     Grid{{"Sample ID", "A1"}, {"400", "0.1"}},
			sentinel: ErrMarkerNotFound,
			category: errors.CategoryStructural,
		},
		{
			name:     "marker twice",
			grid:     Grid{{"Wavelength", ""}, {"400", "0.1"}, {"Wavelength", ""}},
			sentinel: ErrMarkerAmbiguous,
			category: errors.CategoryStructural,
		},
		{
			name:     "non numeric reflectance",
			grid:     Grid{{"Sample ID", "A1"}, {"Wavelength", ""}, {"400", "abc"}},
			sentinel: ErrNonNumericReflectance,
			category: errors.CategoryData,
		},
		{
			name:     "NaN reflectance",
			grid:     Grid{{"Sample ID", "A1"}, {"Wavelength", ""}, {"400", "NaN"}},
			sentinel: ErrNonNumericReflectance,
			category: errors.CategoryData,
		},
		{
			name:     "infinite wavelength",
			grid:     Grid{{"Sample ID", "A1"}, {"Wavelength", ""}, {"+Inf", "0.1"}},
			sentinel: ErrNonNumericReflectance,
			category: errors.CategoryData,
		},
		{
			name:     "marker is case sensitive",
			grid:     Grid{{"wavelength", ""}, {"400", "0.1"}},
			sentinel: ErrMarkerNotFound,
			category: errors.CategoryStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Separate(tt.grid)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, errors.IsCategory(err, tt.category))
		})
	}
}

func TestSeparateDropsEmptyRowsAndColumns(t *testing.T) {
	t.Parallel()

	g := Grid{
		{"Sample ID", "A1", "", "B1"},
		{"", "", "", ""},
		{"Wavelength", "", "", ""},
		{"400", "0.1", "", "0.3"},
		{"", "", "", ""},
		{"500", "0.2", "", "0.4"},
	}

	blocks, err := Separate(g)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Sample ID", "A1", "B1"}}, blocks.Metadata)
	assert.Equal(t, [][]float64{{400, 0.1, 0.3}, {500, 0.2, 0.4}}, blocks.Data)
	assert.Equal(t, 2, blocks.ValueColumns())
}

func TestReadXLSXFirstSheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Sample ID", "X9"},
		{"Wavelength"},
		{350, 0.05},
		{360, 0.06},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	raw, err := Read("sheet.XLSX", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	blocks, err := Separate(Normalize(raw))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{350, 0.05}, {360, 0.06}}, blocks.Data)
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	_, err := Read("notes.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.True(t, errors.IsCategory(err, errors.CategoryStructural))
}

func TestReadRejectsEmptyFile(t *testing.T) {
	t.Parallel()

	_, err := Read("empty.csv", strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyGrid)
}

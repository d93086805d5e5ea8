package grid

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/visorlab/visor/internal/errors"
)

// Read parses a spreadsheet into a raw grid, picking the format from the
// file extension: .csv or the first sheet of an .xlsx workbook.
func Read(name string, r io.Reader) (Grid, error) {
	var (
		g   Grid
		err error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		g, err = readCSV(r)
	case ".xlsx":
		g, err = readXLSX(r)
	default:
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(name))).
			Category(errors.CategoryStructural).
			FileContext(name).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			FileContext(name).
			Build()
	}

	if len(g) == 0 {
		return nil, errors.New(ErrEmptyGrid).
			Category(errors.CategoryStructural).
			FileContext(name).
			Build()
	}
	return g, nil
}

// readCSV reads comma separated text, dropping a UTF-8 byte order mark that
// spreadsheet exports like to prepend.
func readCSV(r io.Reader) (Grid, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return Grid(records), nil
}

func readXLSX(r io.Reader) (Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return Grid(rows), nil
}

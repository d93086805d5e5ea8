package ingest

import (
	"archive/zip"
	"fmt"
	"image/jpeg"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/visorlab/visor/internal/errors"
)

// Sentinel errors, test with errors.Is.
var (
	ErrNotZip          = errors.NewStd("this doesn't seem to be a zip file")
	ErrDisallowedFiles = errors.NewStd("there are files that do not have a csv or jpg extension in the upload")
	ErrDuplicateCSV    = errors.NewStd("there appear to be duplicate csv filenames in the upload")
	ErrNoCSV           = errors.NewStd("there do not appear to be any csv files in this upload")
	ErrOrphanImage     = errors.NewStd("image is not associated with any csv file")
	ErrAmbiguousImage  = errors.NewStd("image matches more than one csv file")
	ErrInvalidImage    = errors.NewStd("image does not appear to be a valid jpeg file")
)

// Bundle extensions.
const (
	ExtCSV = ".csv"
	ExtJPG = ".jpg"
	ExtZip = ".zip"
)

// Entry is one file inside a bundle.
type Entry struct {
	Name string // path inside the archive
	open func() (io.ReadCloser, error)
}

// Open returns the entry's content.
func (e Entry) Open() (io.ReadCloser, error) {
	return e.open()
}

// Base returns the entry's file name without directories.
func (e Entry) Base() string {
	return path.Base(e.Name)
}

// Stem returns the file name without directories and extension.
func (e Entry) Stem() string {
	base := e.Base()
	return strings.TrimSuffix(base, path.Ext(base))
}

// Image is a bundle entry holding a raster for one spreadsheet.
type Image = Entry

// Manifest is the classified content of a bundle.
type Manifest struct {
	Spreadsheets []Entry
	Images       []Image
	Other        []string
}

// CSVNames returns the archive paths of the spreadsheets.
func (m Manifest) CSVNames() []string {
	out := make([]string, len(m.Spreadsheets))
	for i, e := range m.Spreadsheets {
		out[i] = e.Name
	}
	return out
}

// OpenBundle reads the central directory of a zip archive.
func OpenBundle(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrNotZip, err)).
			Component("ingest").
			Category(errors.CategoryStructural).
			Build()
	}
	return zr, nil
}

// Classify sorts the archive entries by extension. Directories and
// resource fork folders written by macOS archivers are skipped.
func Classify(files []*zip.File) Manifest {
	var m Manifest
	for _, f := range files {
		if f.FileInfo().IsDir() || isResourceFork(f.Name) {
			continue
		}
		e := Entry{Name: f.Name, open: f.Open}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ExtCSV:
			m.Spreadsheets = append(m.Spreadsheets, e)
		case ExtJPG:
			m.Images = append(m.Images, e)
		default:
			m.Other = append(m.Other, f.Name)
		}
	}
	return m
}

func isResourceFork(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}

// Check returns every structural problem of the manifest: disallowed
// files, spreadsheets sharing a file name and a bundle without any
// spreadsheet.
func (m Manifest) Check() []error {
	var errs []error
	if len(m.Other) > 0 {
		errs = append(errs, structural(ErrDisallowedFiles, "files", strings.Join(m.Other, ", ")))
	}

	seen := make(map[string]bool, len(m.Spreadsheets))
	var dupes []string
	for _, e := range m.Spreadsheets {
		stem := e.Stem()
		if seen[stem] && !slices.Contains(dupes, stem) {
			dupes = append(dupes, stem)
		}
		seen[stem] = true
	}
	if len(dupes) > 0 {
		errs = append(errs, structural(ErrDuplicateCSV, "names", strings.Join(dupes, ", ")))
	}

	if len(m.Spreadsheets) == 0 {
		errs = append(errs, structural(ErrNoCSV, "", ""))
	}
	return errs
}

// AssociateImages matches every image to the spreadsheet sharing its file
// stem and returns the matches keyed by spreadsheet path. An image with no
// matching spreadsheet, an image matching several, two images for the same
// spreadsheet and an image that does not decode as jpeg are all reported;
// such images are never attached.
func AssociateImages(images []Image, csvNames []string) (map[string]Image, []error) {
	byStem := make(map[string][]string, len(csvNames))
	for _, name := range csvNames {
		stem := Entry{Name: name}.Stem()
		byStem[stem] = append(byStem[stem], name)
	}

	out := make(map[string]Image, len(images))
	claimed := make(map[string][]string)
	var errs []error
	for _, img := range images {
		matches := byStem[img.Stem()]
		switch len(matches) {
		case 0:
			errs = append(errs, structural(ErrOrphanImage, "image", img.Name))
			continue
		case 1:
		default:
			errs = append(errs, structural(ErrAmbiguousImage, "image", img.Name))
			continue
		}
		if err := checkJPEG(img); err != nil {
			errs = append(errs, err)
			continue
		}
		csv := matches[0]
		claimed[csv] = append(claimed[csv], img.Name)
		out[csv] = img
	}

	for csv, imgs := range claimed {
		if len(imgs) > 1 {
			delete(out, csv)
			errs = append(errs, structural(ErrAmbiguousImage, "image", strings.Join(imgs, ", ")))
		}
	}
	return out, errs
}

func checkJPEG(img Image) error {
	rc, err := img.Open()
	if err != nil {
		return structuralWrap(ErrInvalidImage, img.Name, err)
	}
	defer func() { _ = rc.Close() }()
	if _, err := jpeg.DecodeConfig(rc); err != nil {
		return structuralWrap(ErrInvalidImage, img.Name, err)
	}
	return nil
}

func structural(sentinel error, key, value string) error {
	err := sentinel
	if value != "" {
		err = fmt.Errorf("%w: %s", sentinel, value)
	}
	b := errors.New(err).
		Component("ingest").
		Category(errors.CategoryStructural)
	if key != "" {
		b = b.Context(key, value)
	}
	return b.Build()
}

func structuralWrap(sentinel error, name string, cause error) error {
	return errors.New(fmt.Errorf("%w: %s: %w", sentinel, name, cause)).
		Component("ingest").
		Category(errors.CategoryStructural).
		Context("image", name).
		Build()
}

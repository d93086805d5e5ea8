package ingest

import (
	"archive/zip"
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visorlab/visor/internal/errors"
)

type zipEntry struct {
	name string
	data []byte
}

func makeZip(t *testing.T, entries ...zipEntry) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = f.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return bytes.NewReader(buf.Bytes())
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil))
	return buf.Bytes()
}

func manifestOf(t *testing.T, entries ...zipEntry) Manifest {
	t.Helper()

	r := makeZip(t, entries...)
	zr, err := OpenBundle(r, r.Size())
	require.NoError(t, err)
	return Classify(zr.File)
}

func TestOpenBundleRejectsNonZip(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte("Sample ID,A1\n"))
	_, err := OpenBundle(r, r.Size())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotZip)
	assert.True(t, errors.IsCategory(err, errors.CategoryStructural))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	m := manifestOf(t,
		zipEntry{"a.csv", nil},
		zipEntry{"dir/b.CSV", nil},
		zipEntry{"a.jpg", nil},
		zipEntry{"notes.txt", nil},
		zipEntry{"__MACOSX/._a.csv", nil},
		zipEntry{"dir/", nil},
	)
	assert.Equal(t, []string{"a.csv", "dir/b.CSV"}, m.CSVNames())
	require.Len(t, m.Images, 1)
	assert.Equal(t, "a", m.Images[0].Stem())
	assert.Equal(t, []string{"notes.txt"}, m.Other)
}

func TestManifestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []zipEntry
		want    []error
	}{
		{"valid", []zipEntry{{"a.csv", nil}, {"a.jpg", nil}}, nil},
		{"disallowed file", []zipEntry{{"a.csv", nil}, {"a.xlsx", nil}}, []error{ErrDisallowedFiles}},
		{"duplicate stem", []zipEntry{{"x/a.csv", nil}, {"y/a.csv", nil}}, []error{ErrDuplicateCSV}},
		{"no spreadsheet", []zipEntry{{"a.jpg", nil}}, []error{ErrNoCSV}},
		{"everything wrong", []zipEntry{{"a.pdf", nil}}, []error{ErrDisallowedFiles, ErrNoCSV}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			errs := manifestOf(t, tt.entries...).Check()
			require.Len(t, errs, len(tt.want))
			for i, want := range tt.want {
				assert.ErrorIs(t, errs[i], want)
				assert.True(t, errors.IsCategory(errs[i], errors.CategoryStructural))
			}
		})
	}
}

func TestAssociateImages(t *testing.T) {
	t.Parallel()

	img := jpegBytes(t)
	m := manifestOf(t,
		zipEntry{"a.csv", nil},
		zipEntry{"b.csv", nil},
		zipEntry{"pics/a.jpg", img},
	)
	matches, errs := AssociateImages(m.Images, m.CSVNames())
	assert.Empty(t, errs)
	require.Len(t, matches, 1)
	assert.Equal(t, "pics/a.jpg", matches["a.csv"].Name)
}

func TestAssociateImagesReportsProblems(t *testing.T) {
	t.Parallel()

	img := jpegBytes(t)
	tests := []struct {
		name    string
		entries []zipEntry
		want    error
	}{
		{"orphan", []zipEntry{{"a.csv", nil}, {"z.jpg", img}}, ErrOrphanImage},
		{"two images for one spreadsheet", []zipEntry{{"a.csv", nil}, {"a.jpg", img}, {"x/a.jpg", img}}, ErrAmbiguousImage},
		{"image matches two spreadsheets", []zipEntry{{"x/a.csv", nil}, {"y/a.csv", nil}, {"a.jpg", img}}, ErrAmbiguousImage},
		{"not a jpeg", []zipEntry{{"a.csv", nil}, {"a.jpg", []byte("GIF89a")}}, ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := manifestOf(t, tt.entries...)
			matches, errs := AssociateImages(m.Images, m.CSVNames())
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], tt.want)
			assert.Empty(t, matches)
		})
	}
}

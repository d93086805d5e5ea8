package catalog

import (
	"context"
	"fmt"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/spectrum"
)

// ErrDuplicateCurve indicates the identical spectrum is already stored
// under the same identifier.
var ErrDuplicateCurve = errors.NewStd("already in database with identical spectrum")

// RenameSuffix is the format of the suffix appended on id collisions.
const RenameSuffix = "%s_f%d"

// PrefixLister finds the stored records of one identifier namespace.
type PrefixLister interface {
	ListByPrefix(ctx context.Context, prefix string) ([]*spectrum.Record, error)
}

// Deduplicator tells identical duplicates from id collisions. It only
// applies to new records; edits never go through it.
type Deduplicator struct {
	records PrefixLister
}

// NewDeduplicator returns a deduplicator over records.
func NewDeduplicator(records PrefixLister) *Deduplicator {
	return &Deduplicator{records: records}
}

// Resolve checks rec against the stored records in the namespace of its
// candidate id, whatever original id it was supplied with. When
// its id is taken and one of them holds the identical payload, an
// integrity error is returned. When its id is taken by different spectra,
// rec is renamed with the first free "_f{n}" suffix and the returned
// warning describes the rename. rec.OriginalSampleID is set if empty.
func (d *Deduplicator) Resolve(ctx context.Context, rec *spectrum.Record) ([]string, error) {
	if rec.OriginalSampleID == "" {
		rec.OriginalSampleID = rec.SampleID
	}
	existing, err := d.records.ListByPrefix(ctx, rec.SampleID)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(existing))
	for _, e := range existing {
		used[e.SampleID] = true
	}
	if !used[rec.SampleID] {
		return nil, nil
	}

	for _, e := range existing {
		if e.Reflectance == rec.Reflectance {
			return nil, errors.New(fmt.Errorf("%s: %w", rec.SampleID, ErrDuplicateCurve)).
				Component("catalog").
				Category(errors.CategoryIntegrity).
				Context("sample_id", rec.SampleID).
				Context("existing_sample_id", e.SampleID).
				Build()
		}
	}

	old := rec.SampleID
	for n := 1; ; n++ {
		candidate := fmt.Sprintf(RenameSuffix, old, n)
		if !used[candidate] {
			rec.SampleID = candidate
			break
		}
	}
	return []string{fmt.Sprintf(
		"Sample ID %s is already in the database with a different spectrum; this sample was saved as %s",
		old, rec.SampleID)}, nil
}

package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/visorlab/visor/internal/conf"
	"github.com/visorlab/visor/internal/datastore"
	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/observability/metrics"
	"github.com/visorlab/visor/internal/simulate"
	"github.com/visorlab/visor/internal/spectrum"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	records *datastore.RecordStore
	catalog *filterset.Catalog
	sim     *simulate.Simulator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	m, err := datastore.Open(&conf.DatabaseSettings{SQLite: conf.SQLiteSettings{Path: datastore.MemoryPath}}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	_, err = datastore.NewReferenceStore(m.DB(), nil).GetOrCreateOrigin(context.Background(), "RELAB")
	require.NoError(t, err)

	cat := filterset.NewCatalog(nil, nil)
	cat.Put(&filterset.FilterSet{
		ShortName:   "TEST",
		Wavelengths: []float64{400, 450, 500, 550, 600},
		Filters:     map[string][]float64{"a": {0, 0.01, 0.02, 0.01, 0}},
		Centers:     map[string]float64{"a": 500},
	})

	return &fixture{
		records: datastore.NewRecordStore(m.DB(), nil),
		catalog: cat,
		sim:     simulate.NewSimulator(cat, simulate.NewDeriver(0, 0, nil, nil), simulate.Config{Workers: 2}),
	}
}

func (f *fixture) service(withSim bool, rec metrics.Recorder) *Service {
	var sim Simulator
	if withSim {
		sim = f.sim
	}
	return NewService(f.records, spectrum.NewValidator(0, nil), sim, Config{Metrics: rec})
}

func candidate(id, payload string) spectrum.Record {
	return spectrum.Record{SampleID: id, Origin: "RELAB", Reflectance: payload, Filename: "a.csv"}
}

const (
	curveA = "[[400,0.1],[600,0.3]]"
	curveB = "[[400,0.2],[600,0.4]]"
	curveC = "[[400,0.3],[600,0.5]]"
)

func TestCreateStoresRecordWithSimulationCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := metrics.NewTestRecorder()
	res := f.service(true, rec).Create(context.Background(), candidate("A1", curveA),
		spectrum.Diagnostics{Warnings: []string{"mapped legacy label"}})

	require.True(t, res.OK(), res.ErrorStrings())
	assert.Equal(t, "a.csv", res.Filename)
	assert.Equal(t, []string{"mapped legacy label"}, res.Warnings)

	got, err := f.records.Get(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", got.OriginalSampleID)
	assert.InDelta(t, 0.4, got.Simulated["TEST"]["a"], 1e-12)
	assert.InDelta(t, 500.0, got.Simulated["TEST"]["a_NM"], 0)
	assert.Equal(t, []string{"mapped legacy label"}, got.Warnings)
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpRecord, metrics.StatusSuccess))
}

func TestCreateDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(false, nil)
	ctx := context.Background()

	require.True(t, svc.Create(ctx, candidate("A1", curveA), spectrum.Diagnostics{}).OK())

	// identical payload under the same id
	res := svc.Create(ctx, candidate("A1", curveA), spectrum.Diagnostics{})
	require.False(t, res.OK())
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrDuplicateCurve)
	assert.True(t, errors.IsCategory(res.Errors[0], errors.CategoryIntegrity))

	// distinct payload is renamed
	res = svc.Create(ctx, candidate("A1", curveB), spectrum.Diagnostics{})
	require.True(t, res.OK(), res.ErrorStrings())
	assert.Equal(t, "A1_f1", res.Record.SampleID)
	assert.Equal(t, "A1", res.Record.OriginalSampleID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "A1_f1")

	res = svc.Create(ctx, candidate("A1", curveC), spectrum.Diagnostics{})
	require.True(t, res.OK(), res.ErrorStrings())
	assert.Equal(t, "A1_f2", res.Record.SampleID)

	// a payload matching a renamed record is still an identical duplicate
	res = svc.Create(ctx, candidate("A1", curveB), spectrum.Diagnostics{})
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Errors[0], ErrDuplicateCurve)

	stored, err := f.records.Get(ctx, "A1_f1")
	require.NoError(t, err)
	assert.Contains(t, stored.Warnings[0], "A1_f1")
}

func TestCreateDuplicatesWithOriginalSampleID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(false, nil)
	ctx := context.Background()

	require.True(t, svc.Create(ctx, candidate("A1", curveA), spectrum.Diagnostics{}).OK())

	withOriginal := func(payload string) spectrum.Record {
		c := candidate("A1", payload)
		c.OriginalSampleID = "LAB-77"
		return c
	}

	res := svc.Create(ctx, withOriginal(curveA), spectrum.Diagnostics{})
	require.False(t, res.OK())
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrDuplicateCurve)
	assert.True(t, errors.IsCategory(res.Errors[0], errors.CategoryIntegrity))

	res = svc.Create(ctx, withOriginal(curveB), spectrum.Diagnostics{})
	require.True(t, res.OK(), res.ErrorStrings())
	assert.Equal(t, "A1_f1", res.Record.SampleID)
	assert.Equal(t, "LAB-77", res.Record.OriginalSampleID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "A1_f1")

	res = svc.Create(ctx, withOriginal(curveC), spectrum.Diagnostics{})
	require.True(t, res.OK(), res.ErrorStrings())
	assert.Equal(t, "A1_f2", res.Record.SampleID)
}

func TestCreateRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.service(true, nil).Create(context.Background(), candidate("A1", "[[400,50]]"), spectrum.Diagnostics{})
	require.False(t, res.OK())
	assert.Nil(t, res.Record)
	assert.True(t, errors.IsCategory(res.Errors[0], errors.CategoryData))

	n, err := f.records.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateCancelledStoresNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.service(true, nil).Create(ctx, candidate("A1", curveA), spectrum.Diagnostics{})
	require.False(t, res.OK())
	assert.True(t, errors.IsCategory(res.Errors[0], errors.CategoryCancellation))

	n, err := f.records.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(false, nil)
	ctx := context.Background()

	const n = 6
	var wg sync.WaitGroup
	results := make([]spectrum.Result, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := fmt.Sprintf("[[400,0.%d],[600,0.9]]", i+1)
			results[i] = svc.Create(ctx, candidate("A1", payload), spectrum.Diagnostics{})
		}()
	}
	wg.Wait()

	ids := make(map[string]bool)
	for _, res := range results {
		require.True(t, res.OK(), res.ErrorStrings())
		ids[res.Record.SampleID] = true
	}
	assert.Len(t, ids, n)
	assert.True(t, ids["A1"])
	assert.True(t, ids[fmt.Sprintf("A1_f%d", n-1)])
	assert.Zero(t, svc.locks.size())
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(true, nil)
	ctx := context.Background()

	require.True(t, svc.Create(ctx, candidate("A1", curveA), spectrum.Diagnostics{}).OK())

	edit := candidate("A1", curveA)
	edit.SampleName = "  forsterite, green "
	res := svc.Update(ctx, edit, spectrum.Diagnostics{})
	require.True(t, res.OK(), res.ErrorStrings())

	got, err := f.records.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Forsterite_ green", got.SampleName)
	assert.InDelta(t, 0.4, got.Simulated["TEST"]["a"], 1e-12)

	// new payload, new cache
	res = svc.Update(ctx, candidate("A1", "[[400,0.2],[600,0.2]]"), spectrum.Diagnostics{})
	require.True(t, res.OK(), res.ErrorStrings())
	got, err = f.records.Get(ctx, "A1")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got.Simulated["TEST"]["a"], 1e-12)

	// identical payload to itself is not a duplicate when editing
	res = svc.Update(ctx, candidate("A1", "[[400,0.2],[600,0.2]]"), spectrum.Diagnostics{})
	assert.True(t, res.OK(), res.ErrorStrings())

	res = svc.Update(ctx, candidate("B1", curveA), spectrum.Diagnostics{})
	require.False(t, res.OK())
	assert.True(t, errors.IsNotFound(res.Errors[0]))
}

func TestResimulate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	plain := f.service(false, nil)
	for i := range 4 {
		id := fmt.Sprintf("S%d", i)
		require.True(t, plain.Create(ctx, candidate(id, curveA), spectrum.Diagnostics{}).OK())
	}

	n, err := f.service(true, nil).Resimulate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := f.records.All(ctx)
	require.NoError(t, err)
	for _, r := range all {
		assert.InDelta(t, 0.4, r.Simulated["TEST"]["a"], 1e-12, r.SampleID)
	}

	n, err = plain.Resimulate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type memPrefixes []*spectrum.Record

func (m memPrefixes) ListByPrefix(_ context.Context, _ string) ([]*spectrum.Record, error) {
	return m, nil
}

type recordingPrefixes struct {
	memPrefixes
	asked []string
}

func (r *recordingPrefixes) ListByPrefix(ctx context.Context, prefix string) ([]*spectrum.Record, error) {
	r.asked = append(r.asked, prefix)
	return r.memPrefixes.ListByPrefix(ctx, prefix)
}

func TestDeduplicatorLooksUpCandidateID(t *testing.T) {
	t.Parallel()

	lister := &recordingPrefixes{memPrefixes: memPrefixes{{SampleID: "A1", Reflectance: curveA}}}
	d := NewDeduplicator(lister)
	rec := &spectrum.Record{SampleID: "A1", OriginalSampleID: "LAB-77", Reflectance: curveB}
	_, err := d.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, lister.asked)
	assert.Equal(t, "A1_f1", rec.SampleID)
}

func TestDeduplicatorSkipsFreeIDs(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(memPrefixes{{SampleID: "A1_f1", Reflectance: curveA}})
	rec := &spectrum.Record{SampleID: "A1", Reflectance: curveA}
	warnings, err := d.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "A1", rec.SampleID)
	assert.Equal(t, "A1", rec.OriginalSampleID)
}

func TestDeduplicatorFillsGaps(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(memPrefixes{
		{SampleID: "A1", Reflectance: curveA},
		{SampleID: "A1_f2", Reflectance: curveB},
	})
	rec := &spectrum.Record{SampleID: "A1", Reflectance: curveC}
	_, err := d.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "A1_f1", rec.SampleID)
}

func TestPrefixLocks(t *testing.T) {
	t.Parallel()

	locks := newPrefixLocks()
	unlock, err := locks.lock(context.Background(), "A1")
	require.NoError(t, err)

	other, err := locks.lock(context.Background(), "B1")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locks.lock(ctx, "A1")
	assert.ErrorIs(t, err, context.Canceled)

	unlock()
	assert.Zero(t, locks.size())
}

package simulate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/numeric"
	"github.com/visorlab/visor/internal/observability/metrics"
	"github.com/visorlab/visor/internal/spectrum"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

var testGrid = []float64{400, 450, 500, 550, 600}

func testSet(illumination spectrum.Curve) *filterset.FilterSet {
	return &filterset.FilterSet{
		ShortName:    "TEST",
		Wavelengths:  testGrid,
		Filters:      map[string][]float64{"a": {0, 0.01, 0.02, 0.01, 0}},
		Centers:      map[string]float64{"a": 500},
		Illumination: illumination,
	}
}

func linearCurve() spectrum.Curve {
	return spectrum.Curve{{Wavelength: 400, Value: 0.1}, {Wavelength: 600, Value: 0.3}}
}

func TestSimulateWithoutIlluminationIsPlainIntegral(t *testing.T) {
	t.Parallel()

	fs := testSet(nil)
	got := Engine{}.Simulate(linearCurve(), fs, Options{Illuminated: true})

	radiance := numeric.Interpolate(testGrid, []float64{400, 600}, []float64{0.1, 0.3})
	want := numeric.TrapezoidProduct(testGrid, radiance, fs.Filters["a"])

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Filter)
	assert.InDelta(t, 500.0, got[0].Wavelength, 0)
	assert.InDelta(t, want, got[0].Value, 1e-12)
	assert.InDelta(t, 0.4, got[0].Value, 1e-12)
}

func TestSimulateIlluminated(t *testing.T) {
	t.Parallel()

	flat := spectrum.Curve{{Wavelength: 300, Value: 2}, {Wavelength: 700, Value: 2}}
	fs := testSet(flat)

	lit := Engine{}.Simulate(linearCurve(), fs, Options{Illuminated: true})
	require.Len(t, lit, 1)
	// A flat source divides back out, leaving the responsivity-weighted mean.
	assert.InDelta(t, 0.2, lit[0].Value, 1e-12)

	unlit := Engine{}.Simulate(linearCurve(), fs, Options{})
	assert.InDelta(t, 0.4, unlit[0].Value, 1e-12)
}

func TestSimulateNonOverlappingCurveYieldsZeros(t *testing.T) {
	t.Parallel()

	below := spectrum.Curve{{Wavelength: 100, Value: 0.5}, {Wavelength: 200, Value: 0.5}}
	for _, fs := range []*filterset.FilterSet{testSet(nil), testSet(spectrum.Curve{{Wavelength: 300, Value: 1}, {Wavelength: 700, Value: 1}})} {
		got := Engine{}.Simulate(below, fs, Options{Illuminated: true})
		require.Len(t, got, 1)
		assert.InDelta(t, 0.0, got[0].Value, 1e-12)
	}
}

func TestSimulateResampleOnly(t *testing.T) {
	t.Parallel()

	fs := &filterset.FilterSet{ShortName: "HIRES", ResampleOnly: true, Wavelengths: []float64{400, 500, 700}}
	got := Engine{}.Simulate(linearCurve(), fs, Options{Illuminated: true})

	want := []Response{
		{Filter: "400", Wavelength: 400, Value: 0.1},
		{Filter: "500", Wavelength: 500, Value: 0.2},
		{Filter: "700", Wavelength: 700, Value: 0},
	}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w.Filter, got[i].Filter)
		assert.InDelta(t, w.Wavelength, got[i].Wavelength, 0)
		assert.InDelta(t, w.Value, got[i].Value, 1e-12)
	}
}

func TestValuesAddsNominalKeys(t *testing.T) {
	t.Parallel()

	got := Values([]Response{{Filter: "l1", Wavelength: 527, Value: 0.3}})
	assert.Equal(t, map[string]float64{"l1": 0.3, "l1_NM": 527}, got)
}

var camCenters = map[string]float64{
	"l2": 445, "r2": 447,
	"l1": 527, "r1": 528,
	"l3": 751,
}

func camera() *filterset.FilterSet {
	return &filterset.FilterSet{ShortName: "MCAM", Camera: true, Centers: camCenters}
}

func TestBuildPairing(t *testing.T) {
	t.Parallel()

	p := BuildPairing(camCenters, DefaultPairTolerance)
	assert.Equal(t, []Pair{
		{Name: "l2_r2", First: "l2", Second: "r2", Center: 446},
		{Name: "l1_r1", First: "l1", Second: "r1", Center: 527},
	}, p.Pairs)
	assert.Equal(t, []CanonicalFilter{
		{Name: "l2_r2", Wavelength: 446, Virtual: true},
		{Name: "l1_r1", Wavelength: 527, Virtual: true},
		{Name: "l3", Wavelength: 751},
	}, p.Canonical)

	assert.Empty(t, BuildPairing(camCenters, 0.5).Pairs)
}

func TestDeriveVirtualFilterIsMeanOfPair(t *testing.T) {
	t.Parallel()

	d := NewDeriver(DefaultPairTolerance, 0, nil, nil)
	values := map[string]float64{"l1": 0.2, "r1": 0.5, "l2": 0.1, "r2": 0.1, "l3": 0.7}
	out := d.Derive(camera(), values)

	assert.InDelta(t, 0.35, out["l1_r1"], 1e-12)
	assert.InDelta(t, 527.0, out["l1_r1_NM"], 0)
	assert.InDelta(t, 0.1, out["l2_r2"], 1e-12)
	assert.InDelta(t, 446.0, out["l2_r2_NM"], 0)
	assert.NotContains(t, values, "l1_r1", "input must not be modified")
}

func TestDeriveSingleSideFallback(t *testing.T) {
	t.Parallel()

	d := NewDeriver(DefaultPairTolerance, 0, nil, nil)
	out := d.Derive(camera(), map[string]float64{"l1": 0.2, "l1_NM": 527, "l3": 0.7})

	assert.InDelta(t, 0.2, out["r1"], 0)
	assert.InDelta(t, 528.0, out["r1_NM"], 0)
	assert.InDelta(t, 0.2, out["l1_r1"], 0)
	// neither member of l2/r2 is present
	assert.NotContains(t, out, "l2")
	assert.NotContains(t, out, "l2_r2")
}

func TestDeriveLeavesOtherSetsAlone(t *testing.T) {
	t.Parallel()

	d := NewDeriver(DefaultPairTolerance, 0, nil, nil)
	fs := &filterset.FilterSet{ShortName: "OTHER", Centers: camCenters}
	in := map[string]float64{"l1": 0.2}
	assert.Equal(t, in, d.Derive(fs, in))

	configured := NewDeriver(DefaultPairTolerance, 0, []string{"other"}, nil)
	assert.True(t, configured.IsCamera(fs))
	assert.Contains(t, configured.Derive(fs, in), "r1")
}

func TestPairingIsCachedPerCamera(t *testing.T) {
	t.Parallel()

	rec := metrics.NewTestRecorder()
	d := NewDeriver(DefaultPairTolerance, 0, nil, rec)
	fs := camera()

	first := d.Pairing(fs)
	second := d.Pairing(fs)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpPairingCache, metrics.StatusMiss))
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpPairingCache, metrics.StatusHit))

	d.Invalidate(fs.ShortName)
	d.Pairing(fs)
	assert.Equal(t, 2, rec.GetOperationCount(metrics.OpPairingCache, metrics.StatusMiss))
}

type staticCatalog []*filterset.FilterSet

func (c staticCatalog) All() []*filterset.FilterSet { return c }

func cameraWithCurves() *filterset.FilterSet {
	resp := []float64{0, 0.01, 0.02, 0.01, 0}
	return &filterset.FilterSet{
		ShortName:   "MCAM",
		Camera:      true,
		Wavelengths: testGrid,
		Filters:     map[string][]float64{"l1": resp, "r1": resp},
		Centers:     map[string]float64{"l1": 500, "r1": 503},
	}
}

func record(id string) *spectrum.Record {
	return &spectrum.Record{SampleID: id, Reflectance: "[[400,0.1],[600,0.3]]"}
}

func TestSimulatorSimulate(t *testing.T) {
	t.Parallel()

	s := NewSimulator(staticCatalog{testSet(nil), cameraWithCurves()},
		NewDeriver(DefaultPairTolerance, 0, nil, nil), Config{Workers: 2})

	sim, err := s.Simulate(context.Background(), record("A1"))
	require.NoError(t, err)
	require.Len(t, sim, 2)
	assert.InDelta(t, 0.4, sim["TEST"]["a"], 1e-12)
	assert.InDelta(t, 500.0, sim["TEST"]["a_NM"], 0)
	assert.InDelta(t, 0.4, sim["MCAM"]["l1_r1"], 1e-12)
	assert.InDelta(t, 501.0, sim["MCAM"]["l1_r1_NM"], 0)

	empty := NewSimulator(staticCatalog{}, nil, Config{})
	sim, err = empty.Simulate(context.Background(), record("A1"))
	require.NoError(t, err)
	assert.Nil(t, sim)
}

func TestSimulatorFillsCameraFilterWithoutCurve(t *testing.T) {
	t.Parallel()

	fs := cameraWithCurves()
	delete(fs.Filters, "r1")

	responses := Engine{}.Simulate(linearCurve(), fs, Options{})
	require.Len(t, responses, 1)
	assert.Equal(t, "l1", responses[0].Filter)

	s := NewSimulator(staticCatalog{fs}, NewDeriver(DefaultPairTolerance, 0, nil, nil), Config{})
	sim, err := s.Simulate(context.Background(), record("A1"))
	require.NoError(t, err)

	values := sim["MCAM"]
	assert.InDelta(t, 0.4, values["l1"], 1e-12)
	assert.InDelta(t, values["l1"], values["r1"], 0)
	assert.InDelta(t, 503.0, values["r1_NM"], 0)
	assert.InDelta(t, 0.4, values["l1_r1"], 1e-12)
	assert.InDelta(t, 501.0, values["l1_r1_NM"], 0)
}

func TestSimulatorSimulateCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSimulator(staticCatalog{testSet(nil)}, nil, Config{})
	sim, err := s.Simulate(ctx, record("A1"))
	require.Error(t, err)
	assert.Nil(t, sim)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	rec := metrics.NewTestRecorder()
	s := NewSimulator(staticCatalog{testSet(nil)}, nil, Config{Workers: 3, Metrics: rec})

	recs := make([]*spectrum.Record, 50)
	for i := range recs {
		recs[i] = record(fmt.Sprintf("S%02d", i))
	}

	updated, err := s.Rebuild(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, updated, len(recs))
	for i, r := range updated {
		assert.Same(t, recs[i], r)
		assert.InDelta(t, 0.4, r.Simulated["TEST"]["a"], 1e-12)
	}
	assert.Equal(t, len(recs), rec.GetOperationCount(metrics.OpSimulateRecord, metrics.StatusSuccess))
}

func TestRebuildSkipsUndecodableRecords(t *testing.T) {
	t.Parallel()

	bad := &spectrum.Record{SampleID: "BAD", Reflectance: "not json"}
	good := record("GOOD")

	s := NewSimulator(staticCatalog{testSet(nil)}, nil, Config{})
	updated, err := s.Rebuild(context.Background(), []*spectrum.Record{bad, good})

	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySimulation))
	assert.Contains(t, err.Error(), "BAD")
	assert.Equal(t, []*spectrum.Record{good}, updated)
	assert.Nil(t, bad.Simulated)
}

func TestRebuildCancelledLeavesCachesUntouched(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prior := spectrum.Simulated{"OLD": {"x": 1}}
	r := record("A1")
	r.Simulated = prior

	s := NewSimulator(staticCatalog{testSet(nil)}, nil, Config{})
	updated, err := s.Rebuild(ctx, []*spectrum.Record{r})

	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Empty(t, updated)
	assert.Equal(t, prior, r.Simulated)
}

func TestRebuildWithoutFilterSets(t *testing.T) {
	t.Parallel()

	r := record("A1")
	updated, err := NewSimulator(staticCatalog{}, nil, Config{}).Rebuild(context.Background(), []*spectrum.Record{r})
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Nil(t, r.Simulated)
}

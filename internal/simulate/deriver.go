package simulate

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/observability/metrics"
	"github.com/visorlab/visor/internal/spectrum"
)

// DefaultPairTolerance is the largest center separation, in nm, at which two
// camera filters are considered the same band.
const DefaultPairTolerance = 5.0

// Pair is a virtual filter and the two real filters it averages.
type Pair struct {
	Name   string
	First  string
	Second string
	Center float64 // floor of the mean of the two real centers
}

// Partner returns the other member of the pair, or "" if filter is not in it.
func (p Pair) Partner(filter string) string {
	switch filter {
	case p.First:
		return p.Second
	case p.Second:
		return p.First
	default:
		return ""
	}
}

// CanonicalFilter is one entry of a camera's averaged filter list.
type CanonicalFilter struct {
	Name       string
	Wavelength float64
	Virtual    bool
}

// Pairing is the derived virtual filter mapping of one camera.
type Pairing struct {
	Pairs     []Pair
	Canonical []CanonicalFilter // unpaired real filters plus virtual filters, by wavelength
}

// Deriver synthesizes virtual filters for camera filter sets. Pairings are
// computed once per camera and cached.
type Deriver struct {
	tolerance float64
	cameras   []string
	cache     *cache.Cache
	metrics   metrics.Recorder
}

// NewDeriver returns a deriver pairing filters within tolerance nm. Filter
// sets whose short names appear in cameras are treated as cameras even when
// not flagged. Cached pairings expire after ttl; zero keeps them forever.
func NewDeriver(tolerance float64, ttl time.Duration, cameras []string, rec metrics.Recorder) *Deriver {
	if tolerance <= 0 {
		tolerance = DefaultPairTolerance
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Deriver{
		tolerance: tolerance,
		cameras:   cameras,
		cache:     cache.New(ttl, 2*ttl),
		metrics:   metrics.OrNoOp(rec),
	}
}

// IsCamera reports whether fs needs virtual filter derivation.
func (d *Deriver) IsCamera(fs *filterset.FilterSet) bool {
	if fs.Camera {
		return true
	}
	return slices.ContainsFunc(d.cameras, func(c string) bool {
		return strings.EqualFold(c, fs.ShortName)
	})
}

// Invalidate drops the cached pairing of a camera, for instance after its
// filter set was re-imported.
func (d *Deriver) Invalidate(shortName string) {
	d.cache.Delete(shortName)
}

// Pairing returns the cached pairing for fs, building it on first use.
func (d *Deriver) Pairing(fs *filterset.FilterSet) Pairing {
	if cached, ok := d.cache.Get(fs.ShortName); ok {
		d.metrics.RecordOperation(metrics.OpPairingCache, metrics.StatusHit)
		return cached.(Pairing)
	}
	d.metrics.RecordOperation(metrics.OpPairingCache, metrics.StatusMiss)

	p := BuildPairing(fs.Centers, d.tolerance)
	d.cache.SetDefault(fs.ShortName, p)
	return p
}

// BuildPairing pairs every two filters whose centers differ by at most
// tolerance. Filters are scanned in order of center wavelength, then name.
func BuildPairing(centers map[string]float64, tolerance float64) Pairing {
	names := make([]string, 0, len(centers))
	for name := range centers {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(centers[a], centers[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	var p Pairing
	paired := make(map[string]bool)
	for i, a := range names {
		for _, b := range names[i+1:] {
			if math.Abs(centers[a]-centers[b]) > tolerance {
				continue
			}
			p.Pairs = append(p.Pairs, Pair{
				Name:   a + "_" + b,
				First:  a,
				Second: b,
				Center: math.Floor((centers[a] + centers[b]) / 2),
			})
			paired[a], paired[b] = true, true
		}
	}

	for _, name := range names {
		if !paired[name] {
			p.Canonical = append(p.Canonical, CanonicalFilter{Name: name, Wavelength: centers[name]})
		}
	}
	for _, pair := range p.Pairs {
		p.Canonical = append(p.Canonical, CanonicalFilter{Name: pair.Name, Wavelength: pair.Center, Virtual: true})
	}
	slices.SortStableFunc(p.Canonical, func(a, b CanonicalFilter) int {
		return cmp.Compare(a.Wavelength, b.Wavelength)
	})
	return p
}

// Derive completes a camera's per-filter values. A real filter that is
// missing but whose pair partner is present takes the partner's value.
// Every pair with both members present then yields a virtual filter whose
// value is the mean of the two. Nominal wavelengths are written under the
// "_NM" keys. values is not modified.
func (d *Deriver) Derive(fs *filterset.FilterSet, values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values)+4*len(fs.Centers))
	for k, v := range values {
		out[k] = v
	}
	if !d.IsCamera(fs) {
		return out
	}

	pairing := d.Pairing(fs)

	for _, name := range fs.FilterNames() {
		if _, ok := out[name]; ok {
			continue
		}
		for _, pair := range pairing.Pairs {
			partner := pair.Partner(name)
			if partner == "" {
				continue
			}
			if v, ok := out[partner]; ok {
				out[name] = v
				out[spectrum.NominalKey(name)] = fs.Centers[name]
				break
			}
		}
	}

	for _, pair := range pairing.Pairs {
		a, okA := out[pair.First]
		b, okB := out[pair.Second]
		if !okA || !okB {
			continue
		}
		out[pair.Name] = (a + b) / 2
		out[spectrum.NominalKey(pair.Name)] = pair.Center
	}
	return out
}

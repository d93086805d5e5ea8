package simulate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/logger"
	"github.com/visorlab/visor/internal/observability/metrics"
	"github.com/visorlab/visor/internal/spectrum"
)

// DefaultWorkers bounds parallel simulation when no limit is configured.
const DefaultWorkers = 4

// Catalog supplies the filter sets to simulate against.
type Catalog interface {
	All() []*filterset.FilterSet
}

// Simulator rebuilds simulation caches from the current filter set catalog.
type Simulator struct {
	engine  Engine
	deriver *Deriver
	catalog Catalog
	opts    Options
	workers int
	log     logger.Logger
	metrics metrics.Recorder
}

// Config configures a Simulator.
type Config struct {
	Options Options
	Workers int
	Logger  logger.Logger
	Metrics metrics.Recorder
}

// NewSimulator returns a simulator over catalog.
func NewSimulator(catalog Catalog, deriver *Deriver, cfg Config) *Simulator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDiscardLogger()
	}
	return &Simulator{
		deriver: deriver,
		catalog: catalog,
		opts:    cfg.Options,
		workers: cfg.Workers,
		log:     cfg.Logger,
		metrics: metrics.OrNoOp(cfg.Metrics),
	}
}

// Simulate computes the complete cache for one record, running filter sets
// in parallel. It returns nil and no error when no filter set is known.
// On cancellation nothing is returned; a partial cache is never produced.
func (s *Simulator) Simulate(ctx context.Context, rec *spectrum.Record) (spectrum.Simulated, error) {
	sets := s.catalog.All()
	if len(sets) == 0 {
		return nil, nil
	}
	curve, err := spectrum.DecodeCurve(rec.Reflectance)
	if err != nil {
		return nil, s.simulationError(err, rec)
	}

	start := time.Now()
	var mu sync.Mutex
	out := make(spectrum.Simulated, len(sets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, fs := range sets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			values := s.simulateOne(curve, fs)
			mu.Lock()
			out[fs.ShortName] = values
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.RecordError(metrics.OpSimulateRecord, string(errors.CategoryCancellation))
		return nil, s.cancelled(err, rec)
	}

	s.metrics.RecordOperation(metrics.OpSimulateRecord, metrics.StatusSuccess)
	s.metrics.RecordDuration(metrics.OpSimulateRecord, time.Since(start).Seconds())
	return out, nil
}

// Rebuild recomputes the caches of recs in parallel across records. Each
// record's Simulated field is replaced only once its cache is complete.
// The records that were updated are returned in input order, even when
// the context is cancelled part way through. A record whose payload cannot
// be decoded is skipped and reported in the joined error.
func (s *Simulator) Rebuild(ctx context.Context, recs []*spectrum.Record) ([]*spectrum.Record, error) {
	sets := s.catalog.All()
	if len(sets) == 0 {
		return nil, nil
	}
	done := make([]bool, len(recs))

	var (
		mu       sync.Mutex
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rec := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sim, err := s.simulateSerial(gctx, rec, sets)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return nil
			}
			rec.Simulated = sim
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	updated := make([]*spectrum.Record, 0, len(recs))
	for i, rec := range recs {
		if done[i] {
			updated = append(updated, rec)
		}
	}
	if err != nil {
		s.log.Warn("simulation rebuild stopped early",
			logger.Int("updated", len(updated)),
			logger.Int("total", len(recs)),
			logger.Error(err))
		s.metrics.RecordError(metrics.OpSimulateRecord, string(errors.CategoryCancellation))
		return updated, s.cancelled(err, nil)
	}
	s.log.Info("simulation caches rebuilt",
		logger.Int("records", len(updated)),
		logger.Int("failed", len(failures)),
		logger.Int("filter_sets", len(sets)))
	return updated, errors.Join(failures...)
}

// simulateSerial builds one record's cache, checking ctx between filter
// sets. Parallelism comes from Rebuild running many records at once.
func (s *Simulator) simulateSerial(ctx context.Context, rec *spectrum.Record, sets []*filterset.FilterSet) (spectrum.Simulated, error) {
	start := time.Now()
	curve, err := spectrum.DecodeCurve(rec.Reflectance)
	if err != nil {
		s.metrics.RecordOperation(metrics.OpSimulateRecord, metrics.StatusError)
		return nil, s.simulationError(err, rec)
	}

	out := make(spectrum.Simulated, len(sets))
	for _, fs := range sets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[fs.ShortName] = s.simulateOne(curve, fs)
	}
	s.metrics.RecordOperation(metrics.OpSimulateRecord, metrics.StatusSuccess)
	s.metrics.RecordDuration(metrics.OpSimulateRecord, time.Since(start).Seconds())
	return out, nil
}

func (s *Simulator) simulateOne(curve spectrum.Curve, fs *filterset.FilterSet) map[string]float64 {
	start := time.Now()
	values := Values(s.engine.Simulate(curve, fs, s.opts))
	if s.deriver != nil {
		values = s.deriver.Derive(fs, values)
	}
	s.metrics.RecordDuration(metrics.OpSimulateFilterSet+":"+fs.ShortName, time.Since(start).Seconds())
	return values
}

func (s *Simulator) simulationError(err error, rec *spectrum.Record) error {
	return errors.New(fmt.Errorf("simulate %s: %w", rec.SampleID, err)).
		Category(errors.CategorySimulation).
		Context("sample_id", rec.SampleID).
		Build()
}

func (s *Simulator) cancelled(err error, rec *spectrum.Record) error {
	b := errors.New(err).Category(errors.CategoryCancellation)
	if rec != nil {
		b = b.Context("sample_id", rec.SampleID)
	}
	return b.Build()
}

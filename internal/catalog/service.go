// Package catalog persists validated records: it resolves duplicates,
// stores the record and attaches its simulation cache, serializing work
// per identifier prefix.
package catalog

import (
	"context"
	"slices"
	"time"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/logger"
	"github.com/visorlab/visor/internal/observability/metrics"
	"github.com/visorlab/visor/internal/spectrum"
)

// DefaultCreateAttempts bounds retries after the store's unique index
// rejects a renamed record.
const DefaultCreateAttempts = 3

// Records is the record store used by the service.
type Records interface {
	PrefixLister
	Create(ctx context.Context, rec *spectrum.Record) error
	Update(ctx context.Context, rec *spectrum.Record) error
	Get(ctx context.Context, sampleID string) (*spectrum.Record, error)
	All(ctx context.Context) ([]*spectrum.Record, error)
	SaveSimulated(ctx context.Context, recs []*spectrum.Record) error
}

// Simulator builds simulation caches.
type Simulator interface {
	Simulate(ctx context.Context, rec *spectrum.Record) (spectrum.Simulated, error)
	Rebuild(ctx context.Context, recs []*spectrum.Record) ([]*spectrum.Record, error)
}

// IsDuplicateID reports whether a store error is a sample id collision.
type IsDuplicateID func(error) bool

// Config configures a Service.
type Config struct {
	Logger         logger.Logger
	Metrics        metrics.Recorder
	CreateAttempts int
	// DuplicateID recognizes unique index violations returned by Create.
	DuplicateID IsDuplicateID
}

// Service is the persistence entry point for records.
type Service struct {
	records     Records
	validator   *spectrum.Validator
	dedupe      *Deduplicator
	simulator   Simulator
	locks       *prefixLocks
	attempts    int
	duplicateID IsDuplicateID
	log         logger.Logger
	metrics     metrics.Recorder
}

// NewService returns a service storing into records. A nil simulator
// leaves simulation caches empty.
func NewService(records Records, validator *spectrum.Validator, simulator Simulator, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDiscardLogger()
	}
	if cfg.CreateAttempts <= 0 {
		cfg.CreateAttempts = DefaultCreateAttempts
	}
	if cfg.DuplicateID == nil {
		cfg.DuplicateID = func(err error) bool { return errors.IsCategory(err, errors.CategoryConflict) }
	}
	return &Service{
		records:     records,
		validator:   validator,
		dedupe:      NewDeduplicator(records),
		simulator:   simulator,
		locks:       newPrefixLocks(),
		attempts:    cfg.CreateAttempts,
		duplicateID: cfg.DuplicateID,
		log:         cfg.Logger,
		metrics:     metrics.OrNoOp(cfg.Metrics),
	}
}

// Create validates rec, resolves duplicates, computes its simulation cache
// and stores it. Diagnostics from earlier pipeline stages are carried in d.
func (s *Service) Create(ctx context.Context, rec spectrum.Record, d spectrum.Diagnostics) spectrum.Result {
	res := s.validator.Clean(rec, d)
	if !res.OK() {
		return s.finish(res)
	}
	r := res.Record
	if r.OriginalSampleID == "" {
		r.OriginalSampleID = r.SampleID
	}

	unlock, err := s.lock(ctx, r.SampleID)
	if err != nil {
		return s.fail(res, r, err)
	}
	defer unlock()

	if err := s.simulate(ctx, r); err != nil {
		return s.fail(res, r, err)
	}

	requested, notes := r.SampleID, r.Warnings
	for attempt := 1; ; attempt++ {
		r.SampleID = requested
		warnings, err := s.dedupe.Resolve(ctx, r)
		if err != nil {
			return s.fail(res, r, err)
		}
		r.Warnings = append(slices.Clone(notes), warnings...)
		err = s.records.Create(ctx, r)
		if err == nil {
			res.Warnings = append(res.Warnings, warnings...)
			break
		}
		if !s.duplicateID(err) || attempt >= s.attempts {
			return s.fail(res, r, err)
		}
		s.log.Warn("sample id taken concurrently, retrying",
			logger.String("sample_id", r.SampleID),
			logger.Int("attempt", attempt))
	}

	s.log.Debug("record stored",
		logger.String("sample_id", r.SampleID),
		logger.Int("warnings", len(res.Warnings)))
	return s.finish(res)
}

// Update re-validates an existing record and stores it. Duplicate
// resolution is skipped. The simulation cache is rebuilt only when the
// payload changed.
func (s *Service) Update(ctx context.Context, rec spectrum.Record, d spectrum.Diagnostics) spectrum.Result {
	existing, err := s.records.Get(ctx, rec.SampleID)
	if err != nil {
		return s.finish(spectrum.Result{Filename: rec.Filename, Warnings: d.Warnings, Errors: append(slices.Clone(d.Errors), err)})
	}
	rec.ID = existing.ID
	if rec.OriginalSampleID == "" {
		rec.OriginalSampleID = existing.OriginalSampleID
	}

	res := s.validator.Clean(rec, d)
	if !res.OK() {
		return s.finish(res)
	}
	r := res.Record

	unlock, err := s.lock(ctx, r.SampleID)
	if err != nil {
		return s.fail(res, r, err)
	}
	defer unlock()

	if r.Reflectance != existing.Reflectance {
		if err := s.simulate(ctx, r); err != nil {
			return s.fail(res, r, err)
		}
	} else {
		r.Simulated = existing.Simulated
	}

	if err := s.records.Update(ctx, r); err != nil {
		return s.fail(res, r, err)
	}
	return s.finish(res)
}

// Resimulate rebuilds the simulation cache of every stored record and
// saves the records whose cache was completed. It returns how many were
// saved; on cancellation the completed ones are still saved.
func (s *Service) Resimulate(ctx context.Context) (int, error) {
	if s.simulator == nil {
		return 0, nil
	}
	recs, err := s.records.All(ctx)
	if err != nil {
		return 0, err
	}
	updated, rebuildErr := s.simulator.Rebuild(ctx, recs)
	if len(updated) > 0 {
		// saving must not be skipped because the rebuild was cancelled
		if err := s.records.SaveSimulated(context.WithoutCancel(ctx), updated); err != nil {
			return 0, errors.Join(rebuildErr, err)
		}
	}
	s.log.Info("simulation caches saved",
		logger.Int("saved", len(updated)),
		logger.Int("records", len(recs)))
	return len(updated), rebuildErr
}

func (s *Service) simulate(ctx context.Context, r *spectrum.Record) error {
	if s.simulator == nil {
		return nil
	}
	sim, err := s.simulator.Simulate(ctx, r)
	if err != nil {
		return err
	}
	r.Simulated = sim
	return nil
}

func (s *Service) lock(ctx context.Context, prefix string) (func(), error) {
	start := time.Now()
	unlock, err := s.locks.lock(ctx, prefix)
	s.metrics.RecordDuration(metrics.OpLockWait, time.Since(start).Seconds())
	if err != nil {
		return nil, errors.New(err).
			Component("catalog").
			Category(errors.CategoryCancellation).
			Context("prefix", prefix).
			Build()
	}
	return unlock, nil
}

// fail turns a validated result into a failed one.
func (s *Service) fail(res spectrum.Result, r *spectrum.Record, err error) spectrum.Result {
	s.log.Warn("record not stored",
		logger.String("sample_id", r.SampleID),
		logger.Error(err))
	return s.finish(spectrum.Result{
		Filename: res.Filename,
		Warnings: res.Warnings,
		Errors:   []error{err},
	})
}

func (s *Service) finish(res spectrum.Result) spectrum.Result {
	if res.OK() {
		s.metrics.RecordOperation(metrics.OpRecord, metrics.StatusSuccess)
		return res
	}
	s.metrics.RecordOperation(metrics.OpRecord, metrics.StatusError)
	for _, err := range res.Errors {
		s.metrics.RecordError(metrics.OpRecord, string(errors.CategoryOf(err)))
	}
	return res
}

// Package ingest turns uploaded spreadsheets and zip bundles into stored
// spectrum records: it splits multi-sample grids, resolves references,
// attaches bundled images and classifies the outcome of each upload.
package ingest

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/fields"
	"github.com/visorlab/visor/internal/grid"
	"github.com/visorlab/visor/internal/logger"
	"github.com/visorlab/visor/internal/observability/metrics"
	"github.com/visorlab/visor/internal/spectrum"
)

// Status classifies an upload.
type Status string

// Upload statuses.
const (
	StatusAllFailed    Status = "all_failed"
	StatusPartial      Status = "partial"
	StatusAllSucceeded Status = "all_succeeded"
)

// Outcome reports one upload. Errors holds the problems that stopped the
// whole upload before any record was parsed; per-record problems live in
// Failed.
type Outcome struct {
	TraceID   string
	Status    Status
	Errors    []error
	Succeeded []spectrum.Result
	Failed    []spectrum.Result
}

// Store persists validated candidates.
type Store interface {
	Create(ctx context.Context, rec spectrum.Record, d spectrum.Diagnostics) spectrum.Result
}

// Images stores bundled images under generated names.
type Images interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Remove(name string) error
}

// Config configures an Orchestrator.
type Config struct {
	Logger  logger.Logger
	Metrics metrics.Recorder
}

// Orchestrator runs the ingestion pipeline over single files and bundles.
type Orchestrator struct {
	resolver *Resolver
	store    Store
	images   Images
	log      logger.Logger
	metrics  metrics.Recorder
}

// NewOrchestrator returns an orchestrator storing through store. images
// may be nil when bundles are never ingested.
func NewOrchestrator(resolver *Resolver, store Store, images Images, cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDiscardLogger()
	}
	return &Orchestrator{
		resolver: resolver,
		store:    store,
		images:   images,
		log:      cfg.Logger,
		metrics:  metrics.OrNoOp(cfg.Metrics),
	}
}

// IngestPath ingests the file at p, as a bundle when it has a .zip
// extension and as a spreadsheet otherwise.
func (o *Orchestrator) IngestPath(ctx context.Context, p string) Outcome {
	f, err := os.Open(p)
	if err != nil {
		return o.rejected(ctx, metrics.OpIngestFile, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			FileContext(p).
			Build())
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(p), ExtZip) {
		info, err := f.Stat()
		if err != nil {
			return o.rejected(ctx, metrics.OpIngestBundle, errors.New(err).
				Component("ingest").
				Category(errors.CategoryFileIO).
				FileContext(p).
				Build())
		}
		return o.IngestBundle(ctx, f, info.Size())
	}
	return o.IngestFile(ctx, filepath.Base(p), f)
}

// IngestFile ingests one spreadsheet. name selects the grid format and is
// recorded as every resulting record's source file.
func (o *Orchestrator) IngestFile(ctx context.Context, name string, r io.Reader) Outcome {
	start := time.Now()
	ctx, out, log := o.begin(ctx)
	log.Info("ingesting file", logger.String("file", name))

	ok, failed := o.ingestSheet(ctx, log, name, r, nil)
	out.Succeeded, out.Failed = ok, failed
	return o.finish(log, metrics.OpIngestFile, out, start)
}

// IngestBundle ingests a zip bundle of spreadsheets and their images. The
// whole bundle is rejected before any record is parsed when it holds
// disallowed files, duplicate or no spreadsheets, or images that cannot be
// matched to exactly one spreadsheet. Spreadsheets are processed in archive
// order; on cancellation the remaining ones are reported as failed and
// records already stored stay stored.
func (o *Orchestrator) IngestBundle(ctx context.Context, r io.ReaderAt, size int64) Outcome {
	start := time.Now()
	ctx, out, log := o.begin(ctx)
	log = log.Module("bundle")

	zr, err := OpenBundle(r, size)
	if err != nil {
		out.Errors = []error{err}
		return o.finish(log, metrics.OpIngestBundle, out, start)
	}

	manifest := Classify(zr.File)
	errs := manifest.Check()
	images, imageErrs := AssociateImages(manifest.Images, manifest.CSVNames())
	errs = append(errs, imageErrs...)
	if len(errs) > 0 {
		out.Errors = errs
		return o.finish(log, metrics.OpIngestBundle, out, start)
	}
	log.Info("ingesting bundle",
		logger.Int("spreadsheets", len(manifest.Spreadsheets)),
		logger.Int("images", len(images)))

	for _, sheet := range manifest.Spreadsheets {
		if err := ctx.Err(); err != nil {
			out.Failed = append(out.Failed, failure(sheet.Base(), cancelled(err), nil))
			continue
		}
		var img *Image
		if match, ok := images[sheet.Name]; ok {
			img = &match
		}
		ok, failed := o.ingestEntry(ctx, log, sheet, img)
		out.Succeeded = append(out.Succeeded, ok...)
		out.Failed = append(out.Failed, failed...)
	}
	return o.finish(log, metrics.OpIngestBundle, out, start)
}

func (o *Orchestrator) ingestEntry(ctx context.Context, log logger.Logger, sheet Entry, img *Image) (ok, failed []spectrum.Result) {
	rc, err := sheet.Open()
	if err != nil {
		return nil, []spectrum.Result{failure(sheet.Base(), errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("entry", sheet.Name).
			Build(), nil)}
	}
	defer func() { _ = rc.Close() }()
	return o.ingestSheet(ctx, log, sheet.Base(), rc, img)
}

// candidate is a record ready for validation and persistence.
type candidate struct {
	rec  spectrum.Record
	diag spectrum.Diagnostics
}

// ingestSheet parses one spreadsheet into candidates and stores them. A
// spreadsheet that cannot be parsed yields a single failed result.
func (o *Orchestrator) ingestSheet(ctx context.Context, log logger.Logger, name string, r io.Reader, img *Image) (ok, failed []spectrum.Result) {
	name = path.Base(filepath.ToSlash(name))
	cands, failed := o.prepare(ctx, name, r)
	if len(cands) == 0 {
		return nil, failed
	}

	imageName := ""
	var imageWarning string
	if img != nil && o.images != nil {
		imageName, imageWarning = o.saveImage(ctx, log, *img)
	}

	for _, c := range cands {
		c.rec.Image = imageName
		if imageWarning != "" {
			c.diag.Warnings = append(c.diag.Warnings, imageWarning)
		}
		res := o.store.Create(ctx, c.rec, c.diag)
		if res.OK() {
			ok = append(ok, res)
			continue
		}
		log.Debug("record failed",
			logger.String("file", name),
			logger.String("sample_id", c.rec.SampleID),
			logger.Int("errors", len(res.Errors)))
		failed = append(failed, res)
	}

	if imageName != "" && len(ok) == 0 {
		if err := o.images.Remove(imageName); err != nil {
			log.Warn("failed to remove unused image", logger.String("image", imageName), logger.Error(err))
		}
	}
	return ok, failed
}

// prepare runs the parsing stages: grid reading, block separation,
// splitting, field mapping and reference resolution. Failures of one
// column never affect its siblings.
func (o *Orchestrator) prepare(ctx context.Context, name string, r io.Reader) ([]candidate, []spectrum.Result) {
	g, err := grid.Read(name, r)
	if err != nil {
		return nil, []spectrum.Result{failure(name, err, nil)}
	}
	blocks, err := grid.Separate(grid.Normalize(g))
	if err != nil {
		return nil, []spectrum.Result{failure(name, err, nil)}
	}
	columns, splitWarnings, err := Split(blocks)
	if err != nil {
		return nil, []spectrum.Result{failure(name, err, nil)}
	}

	mapped := make([]fields.Mapped, len(columns))
	diags := make([]spectrum.Diagnostics, len(columns))
	for i, col := range columns {
		m, d := fields.Map(col.Rows)
		d.Warnings = append(slices.Clone(splitWarnings), d.Warnings...)
		mapped[i], diags[i] = m, d
	}
	SuffixIdentifiers(mapped)

	var (
		cands  []candidate
		failed []spectrum.Result
	)
	for i, col := range columns {
		d := diags[i]
		if d.HasErrors() {
			failed = append(failed, failure(name, nil, &d))
			continue
		}
		m, rd := o.resolver.Resolve(ctx, mapped[i])
		d.Merge(rd)
		if d.HasErrors() {
			failed = append(failed, failure(name, nil, &d))
			continue
		}

		var rec spectrum.Record
		m.Apply(&rec)
		rec.Reflectance = col.Reflectance
		rec.Filename = name
		cands = append(cands, candidate{rec: rec, diag: d})
	}
	return cands, failed
}

func (o *Orchestrator) saveImage(ctx context.Context, log logger.Logger, img Image) (name, warning string) {
	rc, err := img.Open()
	if err == nil {
		name, err = o.images.Save(ctx, img.Base(), rc)
		_ = rc.Close()
	}
	if err != nil {
		log.Error("failed to store image", logger.String("image", img.Name), logger.Error(err))
		return "", "The image " + img.Base() + " could not be stored and was not attached."
	}
	return name, ""
}

func (o *Orchestrator) begin(ctx context.Context) (context.Context, Outcome, logger.Logger) {
	traceID := logger.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = logger.WithTraceID(ctx, traceID)
	}
	return ctx, Outcome{TraceID: traceID}, o.log.WithContext(ctx)
}

func (o *Orchestrator) rejected(ctx context.Context, op string, err error) Outcome {
	start := time.Now()
	_, out, log := o.begin(ctx)
	out.Errors = []error{err}
	return o.finish(log, op, out, start)
}

func (o *Orchestrator) finish(log logger.Logger, op string, out Outcome, start time.Time) Outcome {
	out.Status = classify(out)
	o.metrics.RecordOperation(op, string(out.Status))
	o.metrics.RecordDuration(op, time.Since(start).Seconds())
	for _, err := range out.Errors {
		o.metrics.RecordError(op, string(errors.CategoryOf(err)))
	}

	attrs := []logger.Field{
		logger.String("status", string(out.Status)),
		logger.Int("succeeded", len(out.Succeeded)),
		logger.Int("failed", len(out.Failed)),
		logger.Duration("elapsed", time.Since(start)),
	}
	if len(out.Errors) > 0 {
		log.Warn("upload rejected", append(attrs, logger.Error(errors.Join(out.Errors...)))...)
		return out
	}
	log.Info("upload processed", attrs...)
	return out
}

func classify(out Outcome) Status {
	switch {
	case len(out.Succeeded) == 0:
		return StatusAllFailed
	case len(out.Failed) > 0:
		return StatusPartial
	default:
		return StatusAllSucceeded
	}
}

// failure builds a failed result from a single error or from diagnostics.
func failure(name string, err error, d *spectrum.Diagnostics) spectrum.Result {
	res := spectrum.Result{Filename: name}
	if d != nil {
		res.Warnings = d.Warnings
		res.Errors = d.Errors
	}
	if err != nil {
		res.Errors = append(res.Errors, err)
	}
	return res
}

func cancelled(err error) error {
	return errors.New(err).
		Component("ingest").
		Category(errors.CategoryCancellation).
		Build()
}

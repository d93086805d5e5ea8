// Package app builds the visor object graph from settings: logging,
// metrics, the record and reference stores, the filter set catalog, the
// simulator, the persistence service and the ingestion orchestrator.
package app

import (
	"context"
	"fmt"

	"github.com/visorlab/visor/internal/buildinfo"
	"github.com/visorlab/visor/internal/catalog"
	"github.com/visorlab/visor/internal/conf"
	"github.com/visorlab/visor/internal/datastore"
	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/imagestore"
	"github.com/visorlab/visor/internal/ingest"
	"github.com/visorlab/visor/internal/logger"
	"github.com/visorlab/visor/internal/observability"
	"github.com/visorlab/visor/internal/simulate"
	"github.com/visorlab/visor/internal/spectrum"
)

// App holds every long-lived component of one visor invocation.
type App struct {
	Settings *conf.Settings
	Log      *logger.CentralLogger
	Metrics  *observability.Metrics

	DB         datastore.Manager
	Records    *datastore.RecordStore
	References *datastore.ReferenceStore
	Images     *imagestore.Store

	FilterSets *filterset.Catalog
	Deriver    *simulate.Deriver
	Simulator  *simulate.Simulator
	Catalog    *catalog.Service
	Ingest     *ingest.Orchestrator
}

// New opens the stores and loads the filter set catalog. The caller must
// Close the returned App.
func New(ctx context.Context, settings *conf.Settings) (*App, error) {
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	a := &App{Settings: settings, Log: central}

	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	settings := a.Settings

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	m.CountErrors()
	a.Metrics = m

	a.DB, err = datastore.Open(&settings.Database, a.Log.Module("datastore"))
	if err != nil {
		return err
	}
	a.Records = datastore.NewRecordStore(a.DB.DB(), m.Datastore)
	a.References = datastore.NewReferenceStore(a.DB.DB(), m.Datastore)

	a.Images, err = imagestore.New(settings.Images.Path, a.Log.Module("images"))
	if err != nil {
		return err
	}

	a.FilterSets = filterset.NewCatalog(a.References, a.Log.Module("filterset"))
	if err := a.FilterSets.Refresh(ctx); err != nil {
		return err
	}

	sim := settings.Simulation
	a.Deriver = simulate.NewDeriver(sim.PairTolerance, sim.CacheTTL, sim.Cameras, m.Simulation)
	a.Simulator = simulate.NewSimulator(a.FilterSets, a.Deriver, simulate.Config{
		Options: simulate.Options{Illuminated: sim.Illuminated},
		Workers: sim.Workers,
		Logger:  a.Log.Module("simulate"),
		Metrics: m.Simulation,
	})

	validator := spectrum.NewValidator(settings.Ingest.SanityCeiling, a.Log.Module("validate"))
	a.Catalog = catalog.NewService(a.Records, validator, a.Simulator, catalog.Config{
		Logger:  a.Log.Module("catalog"),
		Metrics: m.Ingest,
	})

	resolver := ingest.NewResolver(a.References, ingest.ResolverConfig{
		DefaultOrigin: settings.Ingest.DefaultOrigin,
		RandomIDMin:   settings.Ingest.RandomIDMin,
		RandomIDMax:   settings.Ingest.RandomIDMax,
		Logger:        a.Log.Module("ingest"),
	})
	a.Ingest = ingest.NewOrchestrator(resolver, a.Catalog, a.Images, ingest.Config{
		Logger:  a.Log.Module("ingest"),
		Metrics: m.Ingest,
	})

	a.Log.Module("app").Debug("initialized",
		logger.String("version", buildinfo.Current().GetVersion()),
		logger.String("database", a.DB.Path()),
		logger.Int("filter_sets", a.FilterSets.Len()))
	return nil
}

// Run opens an App for the duration of fn.
func Run(ctx context.Context, settings *conf.Settings, fn func(*App) error) (err error) {
	a, err := New(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}

// ImportFilterSets stores the filter sets and reloads the catalog. Cached
// virtual filter pairings of re-imported cameras are dropped.
func (a *App) ImportFilterSets(ctx context.Context, sets []*filterset.FilterSet) error {
	for _, fs := range sets {
		if err := a.References.SaveFilterSet(ctx, fs); err != nil {
			return err
		}
		a.Deriver.Invalidate(fs.ShortName)
	}
	return a.FilterSets.Refresh(ctx)
}

// Close writes the metrics textfile and releases every resource. All
// errors are returned joined.
func (a *App) Close() error {
	var errs []error
	if a.Metrics != nil {
		errs = append(errs, a.Metrics.WriteTextFile(a.Settings.Metrics.TextFile))
	}
	if a.Images != nil {
		errs = append(errs, a.Images.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Log != nil {
		errs = append(errs, a.Log.Close())
	}
	return errors.Join(errs...)
}

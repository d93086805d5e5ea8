package ingest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/fields"
	"github.com/visorlab/visor/internal/logger"
	"github.com/visorlab/visor/internal/spectrum"
)

// Defaults for the resolver configuration.
const (
	DefaultOrigin      = "Unknown"
	DefaultRandomIDMin = 1000000
	DefaultRandomIDMax = 9999999
)

// ErrCategoryNotAllowed is returned for a sample type outside the closed
// category vocabulary.
var ErrCategoryNotAllowed = errors.NewStd("not an allowable sample type")

// Vocabulary is the reference data the resolver checks mapped values
// against. Categories are a closed set; origins are created on demand.
type Vocabulary interface {
	CategoryExists(ctx context.Context, name string) (bool, error)
	GetOrCreateOrigin(ctx context.Context, name string) (created bool, err error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	DefaultOrigin string
	RandomIDMin   int
	RandomIDMax   int
	// IntN returns a random integer in [0, n). Tests pin it.
	IntN   func(n int) int
	Logger logger.Logger
}

// Resolver binds mapped metadata to the category and origin vocabularies
// and fills in a placeholder identifier when none was supplied.
type Resolver struct {
	vocab         Vocabulary
	defaultOrigin string
	idMin, idMax  int
	intN          func(n int) int
	log           logger.Logger
}

// NewResolver returns a resolver over vocab.
func NewResolver(vocab Vocabulary, cfg ResolverConfig) *Resolver {
	if cfg.DefaultOrigin == "" {
		cfg.DefaultOrigin = DefaultOrigin
	}
	if cfg.RandomIDMin <= 0 || cfg.RandomIDMax < cfg.RandomIDMin {
		cfg.RandomIDMin, cfg.RandomIDMax = DefaultRandomIDMin, DefaultRandomIDMax
	}
	if cfg.IntN == nil {
		cfg.IntN = rand.IntN
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDiscardLogger()
	}
	return &Resolver{
		vocab:         vocab,
		defaultOrigin: cfg.DefaultOrigin,
		idMin:         cfg.RandomIDMin,
		idMax:         cfg.RandomIDMax,
		intN:          cfg.IntN,
		log:           cfg.Logger,
	}
}

// Resolve returns a copy of m with its references checked. An unknown
// category is a field error. A missing origin is replaced by the default
// origin, and an unknown origin is registered as a new, unreleased entry;
// both only warn. A missing sample id is replaced by a random placeholder,
// prefixed by the sample name when there is one.
func (r *Resolver) Resolve(ctx context.Context, m fields.Mapped) (fields.Mapped, spectrum.Diagnostics) {
	var d spectrum.Diagnostics
	out := m.Clone()

	if out.Has(fields.KeyCategory) {
		category := strings.TrimSpace(out[fields.KeyCategory])
		ok, err := r.vocab.CategoryExists(ctx, category)
		switch {
		case err != nil:
			d.Fail(err)
		case !ok:
			d.Fail(errors.New(fmt.Errorf("%s is %w", category, ErrCategoryNotAllowed)).
				Category(errors.CategoryField).
				Context("category", category).
				Build())
		default:
			out[fields.KeyCategory] = category
		}
	}

	if !out.Has(fields.KeyOrigin) {
		out[fields.KeyOrigin] = r.defaultOrigin
		d.Warnf("No database of origin was given for this sample; it has been assigned to %s.", r.defaultOrigin)
	}
	origin := strings.TrimSpace(out[fields.KeyOrigin])
	out[fields.KeyOrigin] = origin
	created, err := r.vocab.GetOrCreateOrigin(ctx, origin)
	switch {
	case err != nil:
		d.Fail(err)
	case created:
		r.log.Info("origin registered", logger.String("origin", origin))
		d.Warnf("%s was not previously listed among our affiliate databases and has been added as a database of origin.", origin)
	}

	if !out.Has(fields.KeySampleID) {
		id := r.placeholderID(out[fields.KeySampleName])
		out[fields.KeySampleID] = id
		d.Warnf("No id was provided for this sample. It has been assigned the placeholder identifier %s.", id)
	}
	return out, d
}

func (r *Resolver) placeholderID(name string) string {
	id := strconv.Itoa(r.idMin + r.intN(r.idMax-r.idMin+1))
	if name = strings.TrimSpace(name); name != "" {
		return name + "_" + id
	}
	return id
}

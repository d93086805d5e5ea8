package filterset

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/logger"
)

// Source supplies the persisted filter sets.
type Source interface {
	ListFilterSets(ctx context.Context) ([]*FilterSet, error)
}

// Catalog is an in-memory snapshot of the known filter sets. Readers get
// immutable filter sets and may use them concurrently.
type Catalog struct {
	mu     sync.RWMutex
	sets   map[string]*FilterSet
	source Source
	log    logger.Logger
}

// NewCatalog returns an empty catalog backed by source. Call Refresh to
// load it. A nil source yields a catalog populated only through Put.
func NewCatalog(source Source, log logger.Logger) *Catalog {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Catalog{
		sets:   make(map[string]*FilterSet),
		source: source,
		log:    log,
	}
}

// Refresh replaces the snapshot with the current contents of the source.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.source == nil {
		return nil
	}
	sets, err := c.source.ListFilterSets(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]*FilterSet, len(sets))
	for _, fs := range sets {
		if err := fs.Validate(); err != nil {
			c.log.Warn("skipping invalid filter set",
				logger.String("filter_set", fs.ShortName),
				logger.Error(err))
			continue
		}
		next[fs.ShortName] = fs
	}

	c.mu.Lock()
	c.sets = next
	c.mu.Unlock()

	c.log.Debug("filter set catalog refreshed", logger.Int("count", len(next)))
	return nil
}

// Put adds or replaces a filter set in the snapshot.
func (c *Catalog) Put(fs *FilterSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[fs.ShortName] = fs
}

// Get returns the filter set with the given short name.
func (c *Catalog) Get(shortName string) (*FilterSet, error) {
	c.mu.RLock()
	fs, ok := c.sets[shortName]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.New(ErrFilterSetNotFound).
			Category(errors.CategoryNotFound).
			Context("filter_set", shortName).
			Build()
	}
	return fs, nil
}

// All returns every filter set ordered by display order, then short name.
func (c *Catalog) All() []*FilterSet {
	c.mu.RLock()
	out := slices.Collect(maps.Values(c.sets))
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b *FilterSet) int {
		if o := cmp.Compare(a.DisplayOrder, b.DisplayOrder); o != 0 {
			return o
		}
		return cmp.Compare(a.ShortName, b.ShortName)
	})
	return out
}

// Len returns the number of known filter sets.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}

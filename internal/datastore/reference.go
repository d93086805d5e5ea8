package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/visorlab/visor/internal/datastore/entities"
	"github.com/visorlab/visor/internal/datastore/mapper"
	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/observability/metrics"
)

const (
	tableOrigins    = "origins"
	tableCategories = "categories"
	tableFilterSets = "filter_sets"
)

// Origin is a database of origin as listed by the reference store.
type Origin struct {
	Name     string
	Short    string
	Released bool
}

// ReferenceStore serves the origin and category vocabularies and the
// filter set catalog.
type ReferenceStore struct {
	db      *gorm.DB
	metrics metrics.Recorder
}

// NewReferenceStore returns a reference store on db.
func NewReferenceStore(db *gorm.DB, rec metrics.Recorder) *ReferenceStore {
	return &ReferenceStore{db: db, metrics: metrics.OrNoOp(rec)}
}

// GetOrCreateOrigin ensures an origin named name exists. New origins are
// unreleased. created reports whether this call inserted it.
func (s *ReferenceStore) GetOrCreateOrigin(ctx context.Context, name string) (created bool, err error) {
	start := time.Now()
	defer func() { s.observe(metrics.OpDbInsert, tableOrigins, start, err) }()

	var origin entities.OriginEntity
	err = s.db.WithContext(ctx).Where("name = ?", name).First(&origin).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, dbError(err, "get_origin", "name", name)
	}

	origin = entities.OriginEntity{Name: name}
	createErr := s.db.WithContext(ctx).Create(&origin).Error
	if createErr != nil {
		// Handle race condition - another ingestion may have created it.
		// Try to fetch the existing row; if that also fails, return the original create error.
		if findErr := s.db.WithContext(ctx).Where("name = ?", name).First(&origin).Error; findErr != nil {
			return false, dbError(createErr, "create_origin", "name", name)
		}
		if isUniqueViolation(createErr) {
			s.metrics.RecordError(metrics.OpDbInsert+":"+tableOrigins, metrics.ErrorTypeUniqueViolation)
		}
		return false, nil
	}
	return true, nil
}

// ListOrigins returns every origin ordered by name.
func (s *ReferenceStore) ListOrigins(ctx context.Context) ([]Origin, error) {
	start := time.Now()
	var rows []entities.OriginEntity
	err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	s.observe(metrics.OpDbQuery, tableOrigins, start, err)
	if err != nil {
		return nil, dbError(err, "list_origins")
	}
	out := make([]Origin, len(rows))
	for i, o := range rows {
		out[i] = Origin{Name: o.Name, Short: o.Short, Released: o.Released}
	}
	return out, nil
}

// SetOriginReleased changes the release visibility of an origin.
func (s *ReferenceStore) SetOriginReleased(ctx context.Context, name string, released bool) error {
	start := time.Now()
	res := s.db.WithContext(ctx).Model(&entities.OriginEntity{}).
		Where("name = ?", name).
		Update("released", released)
	s.observe(metrics.OpDbUpdate, tableOrigins, start, res.Error)
	if res.Error != nil {
		return dbError(res.Error, "release_origin", "name", name)
	}
	if res.RowsAffected == 0 {
		return notFoundError(ErrOriginNotFound, "origin", name)
	}
	return nil
}

// CategoryExists reports whether name is in the category vocabulary.
// Matching is exact.
func (s *ReferenceStore) CategoryExists(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.CategoryEntity{}).
		Where("name = ?", name).
		Count(&count).Error
	s.observe(metrics.OpDbQuery, tableCategories, start, err)
	if err != nil {
		return false, dbError(err, "find_category", "name", name)
	}
	return count > 0, nil
}

// AddCategory adds name to the category vocabulary. Adding an existing
// category is a no-op.
func (s *ReferenceStore) AddCategory(ctx context.Context, name string) error {
	start := time.Now()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entities.CategoryEntity{Name: name}).Error
	s.observe(metrics.OpDbInsert, tableCategories, start, err)
	if err != nil {
		return dbError(err, "add_category", "name", name)
	}
	return nil
}

// ListCategories returns the category vocabulary ordered by name.
func (s *ReferenceStore) ListCategories(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&entities.CategoryEntity{}).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, dbError(err, "list_categories")
	}
	return names, nil
}

// SaveFilterSet inserts fs or replaces the stored set with the same short
// name.
func (s *ReferenceStore) SaveFilterSet(ctx context.Context, fs *filterset.FilterSet) error {
	start := time.Now()
	e := mapper.FilterSetToEntity(fs)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "short_name"}},
			DoUpdates: clause.AssignmentColumns(filterSetColumns),
		}).
		Create(e).Error
	s.observe(metrics.OpDbInsert, tableFilterSets, start, err)
	if err != nil {
		return dbError(err, "save_filter_set", "short_name", fs.ShortName)
	}
	return nil
}

var filterSetColumns = []string{
	"name", "description", "url", "display_order", "camera", "resample_only",
	"wavelengths", "filters", "centers", "illumination", "updated_at",
}

// ListFilterSets returns every stored filter set ordered for display.
// It satisfies filterset.Source.
func (s *ReferenceStore) ListFilterSets(ctx context.Context) ([]*filterset.FilterSet, error) {
	start := time.Now()
	var rows []entities.FilterSetEntity
	err := s.db.WithContext(ctx).Order("display_order ASC, short_name ASC").Find(&rows).Error
	s.observe(metrics.OpDbQuery, tableFilterSets, start, err)
	if err != nil {
		return nil, dbError(err, "list_filter_sets")
	}
	out := make([]*filterset.FilterSet, len(rows))
	for i := range rows {
		out[i] = mapper.EntityToFilterSet(&rows[i])
	}
	return out, nil
}

// GetFilterSet returns the stored filter set with shortName.
func (s *ReferenceStore) GetFilterSet(ctx context.Context, shortName string) (*filterset.FilterSet, error) {
	var e entities.FilterSetEntity
	err := s.db.WithContext(ctx).Where("short_name = ?", shortName).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError(filterset.ErrFilterSetNotFound, "filter_set", shortName)
	}
	if err != nil {
		return nil, dbError(err, "get_filter_set", "short_name", shortName)
	}
	return mapper.EntityToFilterSet(&e), nil
}

func (s *ReferenceStore) observe(op, table string, start time.Time, err error) {
	operation := op + ":" + table
	s.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(operation, string(errors.CategoryOf(err)))
		return
	}
	s.metrics.RecordOperation(operation, metrics.StatusSuccess)
}

package datastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/visorlab/visor/internal/datastore/entities"
	"github.com/visorlab/visor/internal/datastore/mapper"
	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/observability/metrics"
	"github.com/visorlab/visor/internal/spectrum"
)

const tableRecords = "records"

// RecordStore persists spectrum records.
type RecordStore struct {
	db      *gorm.DB
	metrics metrics.Recorder
}

// NewRecordStore returns a record store on db.
func NewRecordStore(db *gorm.DB, rec metrics.Recorder) *RecordStore {
	return &RecordStore{db: db, metrics: metrics.OrNoOp(rec)}
}

// Create inserts r, resolving its origin, category and libraries by name.
// The origin and category must already exist; libraries are created on
// demand. A sample id collision returns ErrDuplicateSampleID. On success
// r.ID is set.
func (s *RecordStore) Create(ctx context.Context, r *spectrum.Record) error {
	start := time.Now()
	e := mapper.RecordToEntity(r)
	e.ID = 0

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := resolveRelations(tx, r, e); err != nil {
			return err
		}
		return tx.Omit("Libraries.*").Create(e).Error
	})
	if isUniqueViolation(err) {
		s.metrics.RecordError(metrics.OpDbInsert+":"+tableRecords, metrics.ErrorTypeUniqueViolation)
		return conflictError(ErrDuplicateSampleID, "create_record", r.SampleID)
	}
	if err != nil {
		s.observe(metrics.OpDbInsert, start, err)
		return wrapStoreError(err, "create_record", r.SampleID)
	}
	s.observe(metrics.OpDbInsert, start, nil)
	r.ID = e.ID
	return nil
}

// Update overwrites the stored record with r's id, including its library
// memberships.
func (s *RecordStore) Update(ctx context.Context, r *spectrum.Record) error {
	start := time.Now()
	if r.ID == 0 {
		return notFoundError(ErrRecordNotFound, "record", r.SampleID)
	}
	e := mapper.RecordToEntity(r)

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := resolveRelations(tx, r, e); err != nil {
			return err
		}
		res := tx.Model(&entities.RecordEntity{ID: e.ID}).
			Select("*").Omit("ID", "CreatedAt", "Origin", "Category", "Libraries").
			Updates(e)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFoundError(ErrRecordNotFound, "record", r.SampleID)
		}
		return tx.Model(e).Omit("Libraries.*").Association("Libraries").Replace(e.Libraries)
	})
	if isUniqueViolation(err) {
		s.metrics.RecordError(metrics.OpDbUpdate+":"+tableRecords, metrics.ErrorTypeUniqueViolation)
		return conflictError(ErrDuplicateSampleID, "update_record", r.SampleID)
	}
	s.observe(metrics.OpDbUpdate, start, err)
	if err != nil {
		return wrapStoreError(err, "update_record", r.SampleID)
	}
	return nil
}

// SaveSimulated writes only the simulation caches of recs, in one
// transaction.
func (s *RecordStore) SaveSimulated(ctx context.Context, recs []*spectrum.Record) error {
	start := time.Now()
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		for _, r := range recs {
			e := mapper.RecordToEntity(r)
			if err := tx.Model(&entities.RecordEntity{ID: r.ID}).
				Update("simulated", e.Simulated).Error; err != nil {
				return err
			}
		}
		return nil
	})
	s.observe(metrics.OpDbUpdate, start, err)
	if err != nil {
		return dbError(err, "save_simulated", "records", len(recs))
	}
	return nil
}

// Get returns the record with sampleID.
func (s *RecordStore) Get(ctx context.Context, sampleID string) (*spectrum.Record, error) {
	start := time.Now()
	var e entities.RecordEntity
	err := s.preloaded(ctx).Where("sample_id = ?", sampleID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.observe(metrics.OpDbQuery, start, nil)
		return nil, notFoundError(ErrRecordNotFound, "record", sampleID)
	}
	s.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return nil, dbError(err, "get_record", "sample_id", sampleID)
	}
	return mapper.EntityToRecord(&e), nil
}

// ListByPrefix returns every record in the identifier namespace of prefix:
// records supplied with that identifier, records renamed from it, and
// any record whose id carries a rename suffix of it.
func (s *RecordStore) ListByPrefix(ctx context.Context, prefix string) ([]*spectrum.Record, error) {
	start := time.Now()
	var rows []entities.RecordEntity
	err := s.db.WithContext(ctx).
		Where("prefix = ? OR sample_id = ? OR sample_id LIKE ? ESCAPE '!'",
			prefix, prefix, escapeLike(prefix)+"!_f%").
		Order("sample_id ASC").
		Find(&rows).Error
	s.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return nil, dbError(err, "list_by_prefix", "prefix", prefix)
	}
	return toRecords(rows), nil
}

// All returns every record with its relations, ordered by sample id.
func (s *RecordStore) All(ctx context.Context) ([]*spectrum.Record, error) {
	start := time.Now()
	var rows []entities.RecordEntity
	err := s.preloaded(ctx).Order("sample_id ASC").Find(&rows).Error
	s.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return nil, dbError(err, "list_records")
	}
	return toRecords(rows), nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&entities.RecordEntity{}).Count(&n).Error
	if err != nil {
		return 0, dbError(err, "count_records")
	}
	return n, nil
}

func (s *RecordStore) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Origin").
		Preload("Category").
		Preload("Libraries", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") })
}

func (s *RecordStore) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	s.metrics.RecordOperation(metrics.OpTransaction, status)
	return err
}

func (s *RecordStore) observe(op string, start time.Time, err error) {
	operation := op + ":" + tableRecords
	s.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(operation, string(errors.CategoryOf(err)))
		return
	}
	s.metrics.RecordOperation(operation, metrics.StatusSuccess)
}

// resolveRelations fills the foreign keys and library associations of e
// from the names carried by r.
func resolveRelations(tx *gorm.DB, r *spectrum.Record, e *entities.RecordEntity) error {
	var origin entities.OriginEntity
	err := tx.Where("name = ?", r.Origin).First(&origin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError(ErrOriginNotFound, "origin", r.Origin)
	}
	if err != nil {
		return err
	}
	e.OriginID = origin.ID

	e.CategoryID = nil
	if r.Category != "" {
		var category entities.CategoryEntity
		err := tx.Where("name = ?", r.Category).First(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(ErrCategoryNotFound, "category", r.Category)
		}
		if err != nil {
			return err
		}
		e.CategoryID = &category.ID
	}

	e.Libraries = make([]entities.LibraryEntity, 0, len(r.Groups))
	for _, name := range r.Groups {
		lib := entities.LibraryEntity{Name: name}
		if err := tx.Where(entities.LibraryEntity{Name: name}).FirstOrCreate(&lib).Error; err != nil {
			return err
		}
		e.Libraries = append(e.Libraries, lib)
	}
	return nil
}

// wrapStoreError keeps categorized errors and wraps everything else as a
// database error.
func wrapStoreError(err error, operation, sampleID string) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return dbError(err, operation, "sample_id", sampleID)
}

func toRecords(rows []entities.RecordEntity) []*spectrum.Record {
	out := make([]*spectrum.Record, len(rows))
	for i := range rows {
		out[i] = mapper.EntityToRecord(&rows[i])
	}
	return out
}

// escapeLike escapes LIKE wildcards with '!'.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

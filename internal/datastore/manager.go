// Package datastore persists spectrum records, the origin, category and
// library vocabularies and the filter set catalog through GORM.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/visorlab/visor/internal/conf"
	"github.com/visorlab/visor/internal/datastore/entities"
	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/logger"
)

// Manager owns one database connection and its schema.
type Manager interface {
	// Initialize creates or migrates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location for display.
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Open returns an initialized manager for the configured database type.
func Open(settings *conf.DatabaseSettings, log logger.Logger) (Manager, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	var (
		m   Manager
		err error
	)
	switch settings.Type {
	case "", "sqlite":
		m, err = NewSQLiteManager(settings.SQLite.Path, settings.SlowQueryThreshold, log)
	case "mysql":
		m, err = NewMySQLManager(&settings.MySQL, settings.SlowQueryThreshold, log)
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("type", settings.Type).
			Build()
	}
	if err != nil {
		return nil, err
	}

	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, err
	}
	log.Info("database ready",
		logger.String("location", m.Path()),
		logger.Bool("mysql", m.IsMySQL()))
	return m, nil
}

// gormConfig routes GORM logging through the application logger and asks
// drivers to translate constraint errors into gorm.ErrDuplicatedKey.
func gormConfig(log logger.Logger, slowThreshold time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, slowThreshold),
		TranslateError: true,
	}
}

// migrate runs GORM auto-migrations for all entities.
func migrate(db *gorm.DB, log logger.Logger) error {
	start := time.Now()
	if err := db.AutoMigrate(entities.All()...); err != nil {
		return dbError(err, "auto_migrate")
	}
	log.Debug("schema migrated", logger.Duration("duration", time.Since(start)))
	return nil
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return ErrNotInitialized
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	return sqlDB.Close()
}

package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteManager handles a single-file SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
	log    logger.Logger
}

// NewSQLiteManager opens the SQLite database at path, creating its
// directory when needed. MemoryPath opens an in-memory database limited to
// one connection so every query sees the same data.
func NewSQLiteManager(path string, slowThreshold time.Duration, log logger.Logger) (*SQLiteManager, error) {
	if path == "" {
		path = MemoryPath
	}

	// Build DSN with recommended SQLite pragmas
	dsn := MemoryPath + "?_foreign_keys=ON"
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				FileContext(path).
				Build()
		}
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(log, slowThreshold))
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open", "path", path)
	}
	if path == MemoryPath {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, dbError(err, "open", "path", path)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &SQLiteManager{db: db, dbPath: path, log: log}, nil
}

// Initialize creates or migrates the schema.
func (m *SQLiteManager) Initialize() error {
	return migrate(m.db, m.log)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}

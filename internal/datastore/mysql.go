package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/visorlab/visor/internal/conf"
	"github.com/visorlab/visor/internal/logger"
)

// MySQLManager handles a shared MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
	log      logger.Logger
}

// NewMySQLManager connects to the configured MySQL server.
func NewMySQLManager(cfg *conf.MySQLSettings, slowThreshold time.Duration, log logger.Logger) (*MySQLManager, error) {
	dsn := mysqlDSN(cfg)
	location := fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), gormConfig(log, slowThreshold))
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open", "location", location)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "open", "location", location)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &MySQLManager{db: db, location: location, log: log}, nil
}

func mysqlDSN(cfg *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

// Initialize creates or migrates the schema.
func (m *MySQLManager) Initialize() error {
	return migrate(m.db, m.log)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database location (host:port/database).
func (m *MySQLManager) Path() string {
	return m.location
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns true for MySQL manager.
func (m *MySQLManager) IsMySQL() bool {
	return true
}

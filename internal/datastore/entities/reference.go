package entities

import "time"

// OriginEntity is a database of origin. Origins are created on demand
// during ingestion and start out unreleased.
type OriginEntity struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:191;not null;uniqueIndex:idx_origins_name"`
	Short     string    `gorm:"size:64"`
	Released  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (OriginEntity) TableName() string {
	return "origins"
}

// CategoryEntity is one sample type of the closed category vocabulary.
type CategoryEntity struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:191;not null;uniqueIndex:idx_categories_name"`
}

// TableName returns the table name for GORM.
func (CategoryEntity) TableName() string {
	return "categories"
}

// LibraryEntity is a named group of records.
type LibraryEntity struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:191;not null;uniqueIndex:idx_libraries_name"`
}

// TableName returns the table name for GORM.
func (LibraryEntity) TableName() string {
	return "libraries"
}

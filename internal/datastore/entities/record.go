// Package entities contains GORM models that map directly to database tables.
// These are persistence-layer structures separate from the domain model.
package entities

import (
	"time"

	"gorm.io/datatypes"
)

// RecordEntity is the GORM model for the 'records' table.
type RecordEntity struct {
	ID uint `gorm:"primaryKey"`
	// SampleID is unique; the index is the backstop for concurrent ingestion.
	SampleID         string `gorm:"size:191;not null;uniqueIndex:idx_records_sample_id"`
	Prefix           string `gorm:"size:191;not null;index:idx_records_prefix"`
	OriginalSampleID string `gorm:"size:191"`

	SampleName    string `gorm:"size:255;index:idx_records_sample_name"`
	Composition   string
	Formula       string
	GrainSize     string
	Locality      string
	MaterialClass string
	Description   string
	Other         string
	References    string
	Resolution    string
	ViewGeometry  string

	OriginID   uint  `gorm:"not null;index"`
	CategoryID *uint `gorm:"index"`
	Released   bool

	Filename string
	Image    string

	Reflectance   string `gorm:"type:longtext;not null"`
	MinWavelength float64
	MaxWavelength float64

	Simulated datatypes.JSONType[map[string]map[string]float64]
	Warnings  datatypes.JSONSlice[string]

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	// Relationships
	Origin    *OriginEntity   `gorm:"foreignKey:OriginID"`
	Category  *CategoryEntity `gorm:"foreignKey:CategoryID"`
	Libraries []LibraryEntity `gorm:"many2many:record_libraries;joinForeignKey:RecordID;joinReferences:LibraryID"`
}

// TableName returns the table name for GORM.
func (RecordEntity) TableName() string {
	return "records"
}

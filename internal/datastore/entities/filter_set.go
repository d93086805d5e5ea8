package entities

import (
	"time"

	"gorm.io/datatypes"
)

// FilterSetEntity stores one instrument filter set. Curves are stored as
// JSON payloads aligned to Wavelengths.
type FilterSetEntity struct {
	ID           uint   `gorm:"primaryKey"`
	ShortName    string `gorm:"size:64;not null;uniqueIndex:idx_filter_sets_short_name"`
	Name         string `gorm:"size:255"`
	Description  string
	URL          string
	DisplayOrder int  `gorm:"not null;default:10000"`
	Camera       bool `gorm:"not null;default:false"`
	ResampleOnly bool `gorm:"not null;default:false"`

	Wavelengths  datatypes.JSONSlice[float64]
	Filters      datatypes.JSONType[map[string][]float64]
	Centers      datatypes.JSONType[map[string]float64]
	Illumination datatypes.JSONType[[][2]float64]

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (FilterSetEntity) TableName() string {
	return "filter_sets"
}

// All returns every entity for auto-migration, in dependency order.
func All() []any {
	return []any{
		&OriginEntity{},
		&CategoryEntity{},
		&LibraryEntity{},
		&RecordEntity{},
		&FilterSetEntity{},
	}
}

// Package mapper provides conversion functions between domain models and database entities.
package mapper

import (
	"gorm.io/datatypes"

	"github.com/visorlab/visor/internal/datastore/entities"
	"github.com/visorlab/visor/internal/filterset"
	"github.com/visorlab/visor/internal/spectrum"
)

// RecordToEntity converts a domain record to a RecordEntity. Origin,
// category and libraries are resolved by the store, so only their scalar
// columns are left unset here.
func RecordToEntity(r *spectrum.Record) *entities.RecordEntity {
	return &entities.RecordEntity{
		ID:               r.ID,
		SampleID:         r.SampleID,
		Prefix:           r.Prefix(),
		OriginalSampleID: r.OriginalSampleID,
		SampleName:       r.SampleName,
		Composition:      r.Composition,
		Formula:          r.Formula,
		GrainSize:        r.GrainSize,
		Locality:         r.Locality,
		MaterialClass:    r.MaterialClass,
		Description:      r.Description,
		Other:            r.Other,
		References:       r.References,
		Resolution:       r.Resolution,
		ViewGeometry:     r.ViewGeometry,
		Released:         r.Released,
		Filename:         r.Filename,
		Image:            r.Image,
		Reflectance:      r.Reflectance,
		MinWavelength:    r.MinWavelength,
		MaxWavelength:    r.MaxWavelength,
		Simulated:        datatypes.NewJSONType(map[string]map[string]float64(r.Simulated)),
		Warnings:         datatypes.NewJSONSlice(r.Warnings),
	}
}

// EntityToRecord converts a RecordEntity back to the domain record.
// Relations that were not preloaded leave their fields empty.
func EntityToRecord(e *entities.RecordEntity) *spectrum.Record {
	r := &spectrum.Record{
		ID:               e.ID,
		SampleID:         e.SampleID,
		OriginalSampleID: e.OriginalSampleID,
		SampleName:       e.SampleName,
		Composition:      e.Composition,
		Formula:          e.Formula,
		GrainSize:        e.GrainSize,
		Locality:         e.Locality,
		MaterialClass:    e.MaterialClass,
		Description:      e.Description,
		Other:            e.Other,
		References:       e.References,
		Resolution:       e.Resolution,
		ViewGeometry:     e.ViewGeometry,
		Released:         e.Released,
		Filename:         e.Filename,
		Image:            e.Image,
		Reflectance:      e.Reflectance,
		MinWavelength:    e.MinWavelength,
		MaxWavelength:    e.MaxWavelength,
		Simulated:        spectrum.Simulated(e.Simulated.Data()),
		Warnings:         []string(e.Warnings),
	}

	// Populate names from relations
	if e.Origin != nil {
		r.Origin = e.Origin.Name
	}
	if e.Category != nil {
		r.Category = e.Category.Name
	}
	if len(e.Libraries) > 0 {
		r.Groups = make([]string, len(e.Libraries))
		for i, lib := range e.Libraries {
			r.Groups[i] = lib.Name
		}
	}
	return r
}

// FilterSetToEntity converts a filter set to its stored form.
func FilterSetToEntity(fs *filterset.FilterSet) *entities.FilterSetEntity {
	illumination := make([][2]float64, len(fs.Illumination))
	for i, p := range fs.Illumination {
		illumination[i] = [2]float64{p.Wavelength, p.Value}
	}
	return &entities.FilterSetEntity{
		ShortName:    fs.ShortName,
		Name:         fs.Name,
		Description:  fs.Description,
		URL:          fs.URL,
		DisplayOrder: fs.DisplayOrder,
		Camera:       fs.Camera,
		ResampleOnly: fs.ResampleOnly,
		Wavelengths:  datatypes.NewJSONSlice(fs.Wavelengths),
		Filters:      datatypes.NewJSONType(fs.Filters),
		Centers:      datatypes.NewJSONType(fs.Centers),
		Illumination: datatypes.NewJSONType(illumination),
	}
}

// EntityToFilterSet converts a stored filter set back to the domain type.
func EntityToFilterSet(e *entities.FilterSetEntity) *filterset.FilterSet {
	fs := &filterset.FilterSet{
		ShortName:    e.ShortName,
		Name:         e.Name,
		Description:  e.Description,
		URL:          e.URL,
		DisplayOrder: e.DisplayOrder,
		Camera:       e.Camera,
		ResampleOnly: e.ResampleOnly,
		Wavelengths:  []float64(e.Wavelengths),
		Filters:      e.Filters.Data(),
		Centers:      e.Centers.Data(),
	}
	if pairs := e.Illumination.Data(); len(pairs) > 0 {
		fs.Illumination = make(spectrum.Curve, len(pairs))
		for i, p := range pairs {
			fs.Illumination[i] = spectrum.Point{Wavelength: p[0], Value: p[1]}
		}
	}
	return fs
}

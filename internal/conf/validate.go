// conf/validate.go

package conf

import (
	"fmt"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateDatabaseSettings(&settings.Database)...)
	ve.Errors = append(ve.Errors, validateIngestSettings(&settings.Ingest)...)
	ve.Errors = append(ve.Errors, validateSimulationSettings(&settings.Simulation)...)

	if strings.TrimSpace(settings.Images.Path) == "" {
		ve.Errors = append(ve.Errors, "images.path must not be empty")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseSettings) []string {
	var errs []string

	switch strings.ToLower(settings.Type) {
	case "sqlite":
		if settings.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path must not be empty")
		}
	case "mysql":
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "database.mysql.host and database.mysql.database are required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type must be sqlite or mysql, got %q", settings.Type))
	}

	if settings.SlowQueryThreshold < 0 {
		errs = append(errs, "database.slowquerythreshold must not be negative")
	}

	return errs
}

func validateIngestSettings(settings *IngestSettings) []string {
	var errs []string

	if settings.SanityCeiling <= 0 {
		errs = append(errs, fmt.Sprintf("ingest.sanityceiling must be positive, got %g", settings.SanityCeiling))
	}
	if strings.TrimSpace(settings.DefaultOrigin) == "" {
		errs = append(errs, "ingest.defaultorigin must not be empty")
	}
	if settings.RandomIDMin < 0 || settings.RandomIDMin >= settings.RandomIDMax {
		errs = append(errs, fmt.Sprintf("ingest.randomidmin (%d) must be non-negative and below ingest.randomidmax (%d)",
			settings.RandomIDMin, settings.RandomIDMax))
	}

	return errs
}

func validateSimulationSettings(settings *SimulationSettings) []string {
	var errs []string

	if settings.Workers < 1 {
		errs = append(errs, fmt.Sprintf("simulation.workers must be at least 1, got %d", settings.Workers))
	}
	if settings.PairTolerance < 0 {
		errs = append(errs, fmt.Sprintf("simulation.pairtolerance must not be negative, got %g", settings.PairTolerance))
	}
	if settings.CacheTTL < 0 {
		errs = append(errs, "simulation.cachettl must not be negative")
	}

	return errs
}

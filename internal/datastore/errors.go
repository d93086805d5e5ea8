package datastore

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/visorlab/visor/internal/errors"
)

// Sentinel errors for store operations.
var (
	// ErrRecordNotFound indicates no record has the requested sample id.
	ErrRecordNotFound = errors.NewStd("record not found")

	// ErrOriginNotFound indicates a record references an unknown origin.
	ErrOriginNotFound = errors.NewStd("origin not found")

	// ErrCategoryNotFound indicates a record references an unknown category.
	ErrCategoryNotFound = errors.NewStd("category not found")

	// ErrDuplicateSampleID indicates the sample id unique index rejected an insert.
	ErrDuplicateSampleID = errors.NewStd("sample id already exists")

	// ErrNotInitialized indicates the store has no open connection.
	ErrNotInitialized = errors.NewStd("database connection is not initialized")
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	// Add context pairs
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// conflictError creates a conflict error for constraint violations
func conflictError(sentinel error, operation, value string) error {
	return errors.New(fmt.Errorf("%w: %s", sentinel, value)).
		Component("datastore").
		Category(errors.CategoryConflict).
		Priority(errors.PriorityMedium).
		Context("operation", operation).
		Context("value", value).
		Build()
}

// notFoundError creates a not found error (low priority, not shown to users)
func notFoundError(sentinel error, resource, identifier string) error {
	return errors.New(fmt.Errorf("%w: %s", sentinel, identifier)).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("resource", resource).
		Context("identifier", identifier).
		Build()
}

// isUniqueViolation reports whether err was raised by a unique index.
// Drivers that translate errors return gorm.ErrDuplicatedKey; the message
// checks cover connections opened without TranslateError.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry")
}

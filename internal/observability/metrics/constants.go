// Package metrics provides constants used across metric definitions.
package metrics

// Operation names accepted by the Recorder implementations.
const (
	// OpIngestFile is one spreadsheet processed by the orchestrator.
	OpIngestFile = "ingest_file"
	// OpIngestBundle is one zip bundle processed by the orchestrator.
	OpIngestBundle = "ingest_bundle"
	// OpRecord is one candidate record carried through validation and persistence.
	OpRecord = "record"
	// OpSimulateRecord is one record's full simulation cache rebuild.
	OpSimulateRecord = "simulate_record"
	// OpSimulateFilterSet is one record simulated through one filter set.
	OpSimulateFilterSet = "simulate_filterset"
	// OpPairingCache is a virtual filter pairing lookup.
	OpPairingCache = "pairing_cache"
	// OpDbQuery represents database query operations.
	OpDbQuery = "db_query"
	// OpDbInsert represents database insert operations.
	OpDbInsert = "db_insert"
	// OpDbUpdate represents database update operations.
	OpDbUpdate = "db_update"
	// OpTransaction represents database transaction operations.
	OpTransaction = "transaction"
	// OpLockWait is time spent waiting on a per-prefix lock.
	OpLockWait = "lock_wait"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
	StatusHit     = "hit"
	StatusMiss    = "miss"
)

// ErrorTypeUniqueViolation marks an insert rejected by a unique index.
const ErrorTypeUniqueViolation = "unique_violation"

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms.
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketFactor2 is the common exponential growth factor.
	BucketFactor2 = 2
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// SplitPartsCount is the expected number of parts in "operation:table".
const SplitPartsCount = 2

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewIngestMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordOperation(OpIngestBundle, "partial")
	m.RecordOperation(OpRecord, StatusSuccess)
	m.RecordOperation(OpRecord, StatusSuccess)
	m.RecordError(OpRecord, "integrity")
	m.RecordDuration(OpIngestBundle, 0.2)
	m.RecordDuration(OpLockWait, 0.001)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.unitsTotal.WithLabelValues(OpIngestBundle, "partial")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.recordsTotal.WithLabelValues(StatusSuccess)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.recordErrors.WithLabelValues("integrity")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWaitSeconds))
}

func TestSimulationMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewSimulationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordOperation(OpPairingCache, StatusHit)
	m.RecordOperation(OpPairingCache, StatusMiss)
	m.RecordDuration(OpSimulateFilterSet+":MCAM", 0.01)
	m.RecordDuration(OpSimulateFilterSet+":ZCAM", 0.01)
	m.RecordError(OpSimulateRecord, "cancellation")

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.pairingCache.WithLabelValues(StatusHit)), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.filterSetSeconds))
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpSimulateRecord, "cancellation")), 0)
}

func TestDatastoreMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewDatastoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordOperation(OpDbInsert+":records", StatusSuccess)
	m.RecordError(OpDbInsert+":records", "conflict")
	m.RecordDuration(OpDbQuery+":records", 0.003)
	m.RecordOperation(OpTransaction, StatusSuccess)
	m.RecordUniqueViolation()
	m.RecordError(OpDbInsert+":records", ErrorTypeUniqueViolation)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues(OpDbInsert, "records", StatusSuccess)), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues(OpDbInsert, "records", StatusError)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.dbOperationErrorsTotal.WithLabelValues(OpDbInsert, "records", "conflict")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.uniqueViolationsTotal), 0)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewIngestMetrics(reg)
	require.NoError(t, err)
	_, err = NewIngestMetrics(reg)
	assert.Error(t, err)
}

func TestTestRecorder(t *testing.T) {
	t.Parallel()

	r := NewTestRecorder()
	assert.False(t, r.HasRecordedMetrics())
	r.RecordOperation(OpRecord, StatusSuccess)
	r.RecordError(OpRecord, "data")
	assert.Equal(t, 1, r.GetOperationCount(OpRecord, StatusSuccess))
	assert.Equal(t, 1, r.GetErrorCount(OpRecord, "data"))
	r.Reset()
	assert.False(t, r.HasRecordedMetrics())
}

package errors

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = NewStd("marker not found")

func TestBuildWithoutHooks(t *testing.T) {
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestWrappedSentinelMatches(t *testing.T) {
	t.Parallel()

	err := New(fmt.Errorf("%w in sample.csv", errSentinel)).
		Category(CategoryStructural).
		FileContext("sample.csv").
		Build()

	assert.ErrorIs(t, err, errSentinel)
	assert.True(t, IsCategory(err, CategoryStructural))
	assert.False(t, IsCategory(err, CategoryData))
	assert.Equal(t, "csv", err.GetContext()["file_extension"])

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, CategoryStructural, CategoryOf(wrapped))
}

func TestCategoryDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"cancelled", fmt.Errorf("context canceled"), CategoryCancellation},
		{"missing", fmt.Errorf("origin not found"), CategoryNotFound},
		{"sql", fmt.Errorf("sql: no rows"), CategoryDatabase},
		{"inner enhanced", New(fmt.Errorf("x")).Category(CategoryIntegrity).Build(), CategoryIntegrity},
		{"fallback", fmt.Errorf("something odd"), CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectCategory(tt.err))
		})
	}
}

func TestHooksReceiveErrors(t *testing.T) {
	var seen atomic.Int32
	AddErrorHook(func(ee *EnhancedError) {
		if ee.Category == CategoryField {
			seen.Add(1)
		}
	})
	t.Cleanup(ClearErrorHooks)

	ee := Newf("bad label").Category(CategoryField).Build()
	require.NotNil(t, ee)
	assert.Equal(t, int32(1), seen.Load())
	assert.NotEmpty(t, ee.GetComponent())
}

func TestPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.GetPriority())
}

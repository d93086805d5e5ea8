package metrics_test

import (
	"fmt"
	"time"

	"github.com/visorlab/visor/internal/observability/metrics"
)

// ExampleComponent shows a component that depends on the Recorder interface
// instead of a concrete collector.
type ExampleComponent struct {
	metrics metrics.Recorder
}

func NewExampleComponent(recorder metrics.Recorder) *ExampleComponent {
	return &ExampleComponent{metrics: metrics.OrNoOp(recorder)}
}

func (c *ExampleComponent) IngestOne(ok bool) error {
	start := time.Now()
	if !ok {
		c.metrics.RecordError(metrics.OpRecord, "data")
		c.metrics.RecordOperation(metrics.OpRecord, metrics.StatusError)
		return fmt.Errorf("record rejected")
	}
	c.metrics.RecordOperation(metrics.OpRecord, metrics.StatusSuccess)
	c.metrics.RecordDuration(metrics.OpIngestFile, time.Since(start).Seconds())
	return nil
}

func Example_componentWithRecorder() {
	recorder := metrics.NewTestRecorder()
	component := NewExampleComponent(recorder)

	_ = component.IngestOne(true)
	_ = component.IngestOne(false)

	fmt.Printf("Succeeded: %d\n", recorder.GetOperationCount(metrics.OpRecord, metrics.StatusSuccess))
	fmt.Printf("Data errors: %d\n", recorder.GetErrorCount(metrics.OpRecord, "data"))
	fmt.Printf("Durations recorded: %d\n", len(recorder.GetDurations(metrics.OpIngestFile)))

	// Output:
	// Succeeded: 1
	// Data errors: 1
	// Durations recorded: 1
}

func Example_nilRecorder() {
	component := NewExampleComponent(nil)
	fmt.Println(component.IngestOne(true))
	// Output: <nil>
}

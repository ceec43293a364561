package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMetric struct {
	kind   string
	name   string
	count  int64
	gauge  float64
	timing time.Duration
	tags   map[string]string
}

type recordingSink struct {
	metrics []recordedMetric
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{kind: "count", name: name, count: value, tags: tags})
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{kind: "gauge", name: name, gauge: value, tags: tags})
}

func (s *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{kind: "timing", name: name, timing: value, tags: tags})
}

func TestEmitEvent(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	EmitEvent(sink, EventMetric{
		Family: "blast",
		Kind:   "job-progress",
		Result: ResultApplied,
	})

	require.Len(t, sink.metrics, 1)
	m := sink.metrics[0]
	assert.Equal(t, "count", m.kind)
	assert.Equal(t, "sync.event", m.name)
	assert.Equal(t, int64(1), m.count)
	assert.Equal(t, map[string]string{
		"family": "blast",
		"kind":   "job-progress",
		"result": ResultApplied,
	}, m.tags)
}

func TestEmitEventIncludesDropReason(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	EmitEvent(sink, EventMetric{
		Family: "warmer",
		Kind:   "job-progress",
		Result: ResultDropped,
		Reason: ReasonTombstoned,
	})

	require.Len(t, sink.metrics, 1)
	assert.Equal(t, ReasonTombstoned, sink.metrics[0].tags["reason"])
}

func TestEmitCommand(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	EmitCommand(sink, CommandMetric{
		Family:   "number_check",
		Verb:     "start",
		Result:   ResultApplied,
		Duration: 25 * time.Millisecond,
	})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "sync.command", sink.metrics[0].name)
	assert.Equal(t, "timing", sink.metrics[1].kind)
	assert.Equal(t, "sync.command.duration", sink.metrics[1].name)
	assert.Equal(t, 25*time.Millisecond, sink.metrics[1].timing)
	assert.Equal(t, sink.metrics[0].tags, sink.metrics[1].tags)
}

func TestEmitCommandSkipsZeroDuration(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	EmitCommand(sink, CommandMetric{
		Family: "blast",
		Verb:   "pause",
		Result: ResultError,
	})

	require.Len(t, sink.metrics, 1)
	assert.Equal(t, "sync.command", sink.metrics[0].name)
}

func TestEmitResync(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	EmitResync(sink, "warmer", 7)

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "sync.resync", sink.metrics[0].name)
	assert.Equal(t, map[string]string{"family": "warmer"}, sink.metrics[0].tags)
	assert.Equal(t, "sync.registry.jobs", sink.metrics[1].name)
	assert.Equal(t, 7.0, sink.metrics[1].gauge)
}

func TestEmitHelpersTolerateNilSink(t *testing.T) {
	t.Parallel()

	EmitEvent(nil, EventMetric{Family: "blast"})
	EmitCommand(nil, CommandMetric{Family: "blast"})
	EmitResync(nil, "blast", 1)
}

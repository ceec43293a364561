// Package metrics provides helpers for emitting standardised sync-layer
// metrics.
package metrics

import (
	"time"

	"github.com/sendfleet/campaignsync/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultApplied  = "applied"
	ResultCreated  = "created"
	ResultDropped  = "dropped"
	ResultDedup    = "dedup"
	ResultError    = "error"
	ResultRejected = "rejected"
)

// Drop reason constants for event metrics.
const (
	ReasonTombstoned    = "tombstoned"
	ReasonMissingJob    = "missing_job"
	ReasonBadTransition = "bad_transition"
	ReasonMalformed     = "malformed"
)

// EventMetric captures one inbound event application for metric emission.
type EventMetric struct {
	Family string
	Kind   string
	Result string
	Reason string
}

// EmitEvent emits the per-event reconciliation counter.
func EmitEvent(sink statsd.Sink, in EventMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"family": in.Family,
		"kind":   in.Kind,
		"result": in.Result,
	}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}
	sink.Count("sync.event", 1, tags)
}

// CommandMetric captures one user command for metric emission.
type CommandMetric struct {
	Family   string
	Verb     string
	Result   string
	Duration time.Duration
}

// EmitCommand emits standardised command outcome metrics.
func EmitCommand(sink statsd.Sink, in CommandMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"family": in.Family,
		"verb":   in.Verb,
		"result": in.Result,
	}
	sink.Count("sync.command", 1, tags)
	if in.Duration > 0 {
		sink.Timing("sync.command.duration", in.Duration, tags)
	}
}

// EmitResync emits the snapshot replacement counter and registry size gauge.
func EmitResync(sink statsd.Sink, family string, jobs int) {
	if sink == nil {
		return
	}
	tags := map[string]string{"family": family}
	sink.Count("sync.resync", 1, tags)
	sink.Gauge("sync.registry.jobs", float64(jobs), tags)
}

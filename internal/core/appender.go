package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
	"github.com/sendfleet/campaignsync/internal/observability/metrics"
	"github.com/sendfleet/campaignsync/internal/observability/statsd"
)

// Appender consumes per-item result events and appends them to the matching
// job's log. Redelivered events are deduplicated by their server-assigned
// sequence number; events for removed jobs are swallowed. When an archive is
// configured, every appended entry is also written through to it.
type Appender struct {
	registries *Registries
	archive    LogArchive
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// AppenderOptions holds the dependencies for creating an Appender.
type AppenderOptions struct {
	Registries *Registries
	// Archive is optional; nil disables durable archiving.
	Archive LogArchive
	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// NewAppender creates a message log appender.
func NewAppender(opts AppenderOptions) (*Appender, error) {
	if opts.Registries == nil {
		return nil, apperrors.Internal("registries are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Appender{
		registries: opts.Registries,
		archive:    opts.Archive,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// ApplyItem appends one item result to the job's log. A missing job is a
// silent no-op (the event arrived after removal); a duplicate sequence
// number is counted and skipped. The returned error reports why an event
// was not applied; callers use it for logging, not control flow.
func (a *Appender) ApplyItem(ctx context.Context, family model.JobFamily, ev model.ItemEvent) error {
	reg := a.registries.Family(family)
	if reg == nil {
		return a.drop(ctx, family, ev.JobID, metrics.ReasonMalformed,
			apperrors.StaleEventf("unknown family %q", family))
	}
	if ev.JobID == "" || !ev.Status.Valid() {
		return a.drop(ctx, family, ev.JobID, metrics.ReasonMalformed,
			apperrors.StaleEventf("malformed item event: jobId=%q status=%q", ev.JobID, ev.Status))
	}
	if reg.Tombstoned(ev.JobID) {
		return a.drop(ctx, family, ev.JobID, metrics.ReasonTombstoned,
			apperrors.StaleEventf("item for removed job %s", ev.JobID))
	}

	entry := ev.Entry()
	if entry.At.IsZero() {
		entry.At = a.now()
	}
	if ev.Seq == 0 {
		// Legacy sender without sequence assignment; appended as-is, but
		// worth counting because redelivery dedup is impossible for it.
		a.logger.WarnContext(ctx, "item event without sequence number",
			"family", family, "job_id", ev.JobID, "recipient", ev.Recipient)
	}

	appended, found := reg.AppendLog(ev.JobID, entry)
	switch {
	case !found:
		return a.drop(ctx, family, ev.JobID, metrics.ReasonMissingJob,
			apperrors.StaleEventf("item for unknown job %s", ev.JobID))
	case !appended:
		metrics.EmitEvent(a.metrics, metrics.EventMetric{
			Family: string(family), Kind: string(model.KindItem),
			Result: metrics.ResultDedup,
		})
		return nil
	}

	metrics.EmitEvent(a.metrics, metrics.EventMetric{
		Family: string(family), Kind: string(model.KindItem),
		Result: metrics.ResultApplied,
	})
	a.archiveEntry(ctx, family, ev.JobID, entry)
	return nil
}

// archiveEntry writes the entry through to the durable archive. Archive
// failures never affect the in-memory registry; a duplicate-row conflict is
// the archive's own redelivery dedup kicking in.
func (a *Appender) archiveEntry(ctx context.Context, family model.JobFamily, jobID string, entry model.LogEntry) {
	if a.archive == nil {
		return
	}
	err := a.archive.Append(ctx, family, jobID, entry)
	if err == nil || apperrors.IsConflict(err) {
		return
	}
	a.logger.ErrorContext(ctx, "archive append failed",
		"family", family, "job_id", jobID, "seq", entry.Seq, "error", err)
	metrics.EmitEvent(a.metrics, metrics.EventMetric{
		Family: string(family), Kind: string(model.KindItem),
		Result: metrics.ResultError, Reason: "archive",
	})
}

func (a *Appender) drop(ctx context.Context, family model.JobFamily, jobID, reason string, err *apperrors.AppError) error {
	a.logger.DebugContext(ctx, "item event dropped",
		"family", family, "job_id", jobID, "reason", reason, "error", err)
	metrics.EmitEvent(a.metrics, metrics.EventMetric{
		Family: string(family), Kind: string(model.KindItem),
		Result: metrics.ResultDropped, Reason: reason,
	})
	return err
}

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

// Reconciler merges inbound progress, removal and error events into the job
// registries. It is idempotent and order-tolerant: applying the same event
// twice, or applying events out of production order, never corrupts a
// registry. Events that lost a race against a local removal are dropped via
// the registry's tombstones.
type Reconciler struct {
	registries *Registries
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// ReconcilerOptions holds the dependencies for creating a Reconciler.
type ReconcilerOptions struct {
	Registries *Registries
	Logger     *slog.Logger
	Metrics    statsd.Sink
	Now        func() time.Time
}

// NewReconciler creates a progress reconciler.
func NewReconciler(opts ReconcilerOptions) (*Reconciler, error) {
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
	return &Reconciler{
		registries: opts.Registries,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// ApplyProgress applies a progress event with last-received-wins semantics on
// status, progress, message and error; config and log are never touched.
// A missing record is created from the event (a job started from another
// session, or an event overtaking the snapshot). The returned error reports
// why an event was not applied; callers use it for logging, not control flow.
func (r *Reconciler) ApplyProgress(ctx context.Context, family model.JobFamily, ev model.ProgressEvent) error {
	reg := r.registries.Family(family)
	if reg == nil {
		return r.drop(ctx, family, model.KindProgress, ev.JobID, metrics.ReasonMalformed,
			apperrors.StaleEventf("unknown family %q", family))
	}
	if ev.JobID == "" || !family.ValidStatus(ev.Status) {
		return r.drop(ctx, family, model.KindProgress, ev.JobID, metrics.ReasonMalformed,
			apperrors.StaleEventf("malformed progress event: jobId=%q status=%q", ev.JobID, ev.Status))
	}
	progress := model.Progress{Current: ev.Current, Total: ev.Total}
	if !progress.Valid() {
		return r.drop(ctx, family, model.KindProgress, ev.JobID, metrics.ReasonMalformed,
			apperrors.StaleEventf("malformed progress counters: %d/%d", ev.Current, ev.Total))
	}
	if reg.Tombstoned(ev.JobID) {
		// The job was stopped locally; this event predates the removal.
		return r.drop(ctx, family, model.KindProgress, ev.JobID, metrics.ReasonTombstoned,
			apperrors.StaleEventf("progress for removed job %s", ev.JobID))
	}

	syncedAt := r.now()
	var rejected *apperrors.AppError
	applied := reg.Mutate(ev.JobID, func(rec *model.JobRecord) {
		if !family.CanTransition(rec.Status, ev.Status) {
			rejected = apperrors.StaleEventf("illegal %s transition %s -> %s for job %s",
				family, rec.Status, ev.Status, ev.JobID)
			return
		}
		rec.Status = ev.Status
		rec.Progress = progress
		rec.Message = ev.Message
		rec.Error = ev.Error
		rec.Stale = false
		rec.LastSyncedAt = syncedAt
	})
	if rejected != nil {
		// Outside the family's state machine; log as an anomaly and ignore.
		r.logger.WarnContext(ctx, "progress event rejected",
			"family", family, "job_id", ev.JobID, "status", ev.Status, "error", rejected)
		metrics.EmitEvent(r.metrics, metrics.EventMetric{
			Family: string(family), Kind: string(model.KindProgress),
			Result: metrics.ResultRejected, Reason: metrics.ReasonBadTransition,
		})
		return rejected
	}
	if !applied {
		// First sighting of this job; create the record from the event.
		reg.Upsert(&model.JobRecord{
			JobID:        ev.JobID,
			Family:       family,
			Status:       ev.Status,
			Progress:     progress,
			Message:      ev.Message,
			Error:        ev.Error,
			LastSyncedAt: syncedAt,
		})
		metrics.EmitEvent(r.metrics, metrics.EventMetric{
			Family: string(family), Kind: string(model.KindProgress),
			Result: metrics.ResultCreated,
		})
		r.logger.InfoContext(ctx, "job discovered from progress event",
			"family", family, "job_id", ev.JobID, "status", ev.Status)
		return nil
	}

	metrics.EmitEvent(r.metrics, metrics.EventMetric{
		Family: string(family), Kind: string(model.KindProgress),
		Result: metrics.ResultApplied,
	})
	return nil
}

// ApplyRemoved handles a server-confirmed removal: the record and any
// pending tombstone for the id are dropped. A missing record is a silent
// no-op (the ack for our own optimistic removal).
func (r *Reconciler) ApplyRemoved(ctx context.Context, family model.JobFamily, ev model.RemovedEvent) error {
	reg := r.registries.Family(family)
	if reg == nil || ev.JobID == "" {
		return r.drop(ctx, family, model.KindRemoved, ev.JobID, metrics.ReasonMalformed,
			apperrors.StaleEventf("malformed removed event for family %q", family))
	}
	existed := reg.Remove(ev.JobID)
	result := metrics.ResultApplied
	if !existed {
		result = metrics.ResultDropped
	}
	metrics.EmitEvent(r.metrics, metrics.EventMetric{
		Family: string(family), Kind: string(model.KindRemoved), Result: result,
	})
	r.logger.DebugContext(ctx, "job removal confirmed",
		"family", family, "job_id", ev.JobID, "existed", existed)
	return nil
}

// ApplyError attaches a worker-reported error to the addressed job. Errors
// without a job scope are logged and counted; there is no ambient "current
// job" to attribute them to.
func (r *Reconciler) ApplyError(ctx context.Context, family model.JobFamily, ev model.ErrorEvent) error {
	reg := r.registries.Family(family)
	if reg == nil {
		return apperrors.StaleEventf("unknown family %q", family)
	}
	if ev.JobID == "" {
		r.logger.WarnContext(ctx, "unattributed worker error",
			"family", family, "message", ev.Message)
		metrics.EmitEvent(r.metrics, metrics.EventMetric{
			Family: string(family), Kind: string(model.KindError),
			Result: metrics.ResultDropped, Reason: metrics.ReasonMissingJob,
		})
		return nil
	}
	if reg.Tombstoned(ev.JobID) {
		return r.drop(ctx, family, model.KindError, ev.JobID, metrics.ReasonTombstoned,
			apperrors.StaleEventf("error for removed job %s", ev.JobID))
	}
	syncedAt := r.now()
	applied := reg.Mutate(ev.JobID, func(rec *model.JobRecord) {
		rec.Error = ev.Message
		rec.Stale = false
		rec.LastSyncedAt = syncedAt
	})
	if !applied {
		return r.drop(ctx, family, model.KindError, ev.JobID, metrics.ReasonMissingJob,
			apperrors.StaleEventf("error for unknown job %s", ev.JobID))
	}
	metrics.EmitEvent(r.metrics, metrics.EventMetric{
		Family: string(family), Kind: string(model.KindError), Result: metrics.ResultApplied,
	})
	return nil
}

// drop records a swallowed event: debug log plus a counter, per the stale
// event policy. The error is returned for tests and diagnostics only.
func (r *Reconciler) drop(ctx context.Context, family model.JobFamily, kind model.Kind, jobID, reason string, err *apperrors.AppError) error {
	r.logger.DebugContext(ctx, "inbound event dropped",
		"family", family, "kind", kind, "job_id", jobID, "reason", reason, "error", err)
	metrics.EmitEvent(r.metrics, metrics.EventMetric{
		Family: string(family), Kind: string(kind),
		Result: metrics.ResultDropped, Reason: reason,
	})
	return err
}

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

// Recovery re-establishes a server-authoritative view after every channel
// (re)connection. On disconnect it marks local records stale instead of
// wiping them, so the operator keeps visibility into jobs that are still
// running remotely. On connect it requests a full snapshot per family and
// replaces each registry wholesale when the snapshot arrives.
type Recovery struct {
	registries *Registries
	channel    Emitter
	cache      SnapshotCache
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// RecoveryOptions holds the dependencies for creating a Recovery.
type RecoveryOptions struct {
	Registries *Registries
	Channel    Emitter
	// Cache is optional; nil disables snapshot caching.
	Cache   SnapshotCache
	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// NewRecovery creates a reconnect recovery component.
func NewRecovery(opts RecoveryOptions) (*Recovery, error) {
	if opts.Registries == nil {
		return nil, apperrors.Internal("registries are required")
	}
	if opts.Channel == nil {
		return nil, apperrors.Internal("channel is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Recovery{
		registries: opts.Registries,
		channel:    opts.Channel,
		cache:      opts.Cache,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// OnConnect requests an authoritative snapshot for every family. Called on
// the first connect and on every reconnect.
func (r *Recovery) OnConnect(ctx context.Context) {
	for _, family := range model.Families() {
		env, err := model.NewEnvelope(family, model.KindGetAllJobs, "", nil)
		if err != nil {
			r.logger.ErrorContext(ctx, "build snapshot request failed",
				"family", family, "error", err)
			continue
		}
		if err := r.channel.Emit(ctx, env); err != nil {
			r.logger.WarnContext(ctx, "snapshot request failed",
				"family", family, "error", err)
		}
	}
	r.logger.InfoContext(ctx, "snapshot resync requested", "families", len(model.Families()))
}

// OnDisconnect flags every record in every family as stale. Nothing is
// deleted speculatively; the next snapshot settles which jobs still exist.
func (r *Recovery) OnDisconnect(ctx context.Context, reason string) {
	total := 0
	for _, family := range model.Families() {
		total += r.registries.Family(family).MarkAllStale()
	}
	r.logger.WarnContext(ctx, "channel disconnected, local state marked stale",
		"reason", reason, "jobs", total)
	if r.metrics != nil {
		r.metrics.Count("sync.disconnect", 1, nil)
	}
}

// ApplySnapshot replaces the family's registry with the server's snapshot:
// jobs absent from the snapshot are deleted, unknown jobs are created
// (including their log when provided), known jobs are overwritten. The
// result is written through to the snapshot cache for warm starts.
func (r *Recovery) ApplySnapshot(ctx context.Context, family model.JobFamily, ev model.SnapshotEvent) error {
	reg := r.registries.Family(family)
	if reg == nil {
		return apperrors.StaleEventf("unknown family %q", family)
	}

	syncedAt := r.now()
	records := make([]*model.JobRecord, 0, len(ev.Jobs))
	for i := range ev.Jobs {
		rec, err := ev.Jobs[i].Record(family, syncedAt)
		if err != nil {
			// One malformed job must not sink the whole snapshot.
			r.logger.WarnContext(ctx, "snapshot job skipped",
				"family", family, "error", err)
			continue
		}
		// Preserve the local config and log when the server sends slim
		// records; each may be omitted independently.
		if prev, ok := reg.Get(rec.JobID); ok {
			if ev.Jobs[i].Config == nil {
				rec.Config = prev.Config
			}
			if len(rec.Log) == 0 {
				rec.Log = prev.Log
			}
		}
		records = append(records, rec)
	}
	reg.ReplaceAll(records)

	metrics.EmitResync(r.metrics, string(family), len(records))
	r.logger.InfoContext(ctx, "registry replaced from snapshot",
		"family", family, "jobs", len(records))

	if r.cache != nil {
		if err := r.cache.Store(ctx, family, records); err != nil {
			r.logger.WarnContext(ctx, "snapshot cache store failed",
				"family", family, "error", err)
		}
	}
	return nil
}

// WarmStart pre-loads every registry from the snapshot cache, flagging each
// record stale. A client restarted while offline can then present its last
// known view; the first real snapshot replaces it.
func (r *Recovery) WarmStart(ctx context.Context) {
	if r.cache == nil {
		return
	}
	for _, family := range model.Families() {
		records, err := r.cache.Load(ctx, family)
		if err != nil {
			if !apperrors.IsNotFound(err) {
				r.logger.WarnContext(ctx, "snapshot cache load failed",
					"family", family, "error", err)
			}
			continue
		}
		for _, rec := range records {
			rec.Stale = true
		}
		r.registries.Family(family).ReplaceAll(records)
		r.logger.InfoContext(ctx, "registry warm-started from cache",
			"family", family, "jobs", len(records))
	}
}

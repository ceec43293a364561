package core

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
)

// Orchestrator routes inbound envelopes to the reconciler, appender and
// recovery components, and exposes the channel lifecycle hooks. Every
// handler is defensive: a malformed payload or a stale reference is logged
// and swallowed, never propagated.
type Orchestrator struct {
	registries *Registries
	reconciler *Reconciler
	appender   *Appender
	recovery   *Recovery
	logger     *slog.Logger
}

// OrchestratorOptions holds the dependencies for creating an Orchestrator.
type OrchestratorOptions struct {
	Registries *Registries
	Reconciler *Reconciler
	Appender   *Appender
	Recovery   *Recovery
	Logger     *slog.Logger
}

// NewOrchestrator wires the orchestration components together.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Registries == nil || opts.Reconciler == nil || opts.Appender == nil || opts.Recovery == nil {
		return nil, apperrors.Internal("all orchestration components are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registries: opts.Registries,
		reconciler: opts.Reconciler,
		appender:   opts.Appender,
		recovery:   opts.Recovery,
		logger:     logger,
	}, nil
}

// Registries returns the per-family registries, for read paths.
func (o *Orchestrator) Registries() *Registries {
	return o.registries
}

// HandleEnvelope applies one inbound envelope. Unapplied events (stale,
// malformed, out-of-graph) are already logged and counted by the component
// that dropped them.
func (o *Orchestrator) HandleEnvelope(ctx context.Context, env model.Envelope) {
	if err := env.Validate(); err != nil {
		o.logger.WarnContext(ctx, "invalid envelope dropped", "error", err)
		return
	}
	if !env.Kind.Inbound() {
		o.logger.WarnContext(ctx, "outbound kind received from gateway",
			"family", env.Family, "kind", env.Kind)
		return
	}

	switch env.Kind {
	case model.KindProgress:
		var ev model.ProgressEvent
		if !o.decode(ctx, env, &ev) {
			return
		}
		if ev.JobID == "" {
			ev.JobID = env.JobID
		}
		//nolint:errcheck // drops are logged and counted inside the reconciler
		_ = o.reconciler.ApplyProgress(ctx, env.Family, ev)
	case model.KindItem:
		var ev model.ItemEvent
		if !o.decode(ctx, env, &ev) {
			return
		}
		if ev.JobID == "" {
			ev.JobID = env.JobID
		}
		//nolint:errcheck // drops are logged and counted inside the appender
		_ = o.appender.ApplyItem(ctx, env.Family, ev)
	case model.KindSnapshot:
		var ev model.SnapshotEvent
		if !o.decode(ctx, env, &ev) {
			return
		}
		if err := o.recovery.ApplySnapshot(ctx, env.Family, ev); err != nil {
			o.logger.ErrorContext(ctx, "snapshot apply failed",
				"family", env.Family, "error", err)
		}
	case model.KindRemoved:
		ev := model.RemovedEvent{JobID: env.JobID}
		if len(env.Payload) > 0 && !o.decode(ctx, env, &ev) {
			return
		}
		if ev.JobID == "" {
			ev.JobID = env.JobID
		}
		//nolint:errcheck // drops are logged and counted inside the reconciler
		_ = o.reconciler.ApplyRemoved(ctx, env.Family, ev)
	case model.KindError:
		var ev model.ErrorEvent
		if !o.decode(ctx, env, &ev) {
			return
		}
		if ev.JobID == "" {
			ev.JobID = env.JobID
		}
		//nolint:errcheck // unattributed errors are logged inside the reconciler
		_ = o.reconciler.ApplyError(ctx, env.Family, ev)
	}
}

// OnConnect implements the channel connect hook.
func (o *Orchestrator) OnConnect(ctx context.Context) {
	o.recovery.OnConnect(ctx)
}

// OnDisconnect implements the channel disconnect hook.
func (o *Orchestrator) OnDisconnect(ctx context.Context, reason string) {
	o.recovery.OnDisconnect(ctx, reason)
}

// OnConnectError implements the channel connect_error hook.
func (o *Orchestrator) OnConnectError(ctx context.Context, err error) {
	o.logger.WarnContext(ctx, "channel connect failed", "error", err)
}

func (o *Orchestrator) decode(ctx context.Context, env model.Envelope, dst any) bool {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		o.logger.WarnContext(ctx, "malformed payload dropped",
			"family", env.Family, "kind", env.Kind, "error", err)
		return false
	}
	return true
}

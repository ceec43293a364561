package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
	"github.com/sendfleet/campaignsync/internal/observability/metrics"
	"github.com/sendfleet/campaignsync/internal/observability/statsd"
)

// Dispatcher translates user intents into outbound channel messages. Start,
// stop and remove apply an optimistic local mutation before any server
// acknowledgement; pause and resume leave the local status untouched and
// defer to the next authoritative progress event.
type Dispatcher struct {
	registries *Registries
	channel    Emitter
	logger     *slog.Logger
	metrics    statsd.Sink

	newID func() string
	now   func() time.Time
}

// DispatcherOptions holds the dependencies for creating a Dispatcher.
type DispatcherOptions struct {
	Registries *Registries
	Channel    Emitter
	Logger     *slog.Logger
	Metrics    statsd.Sink

	// Optional overrides for tests.
	NewID func() string
	Now   func() time.Time
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
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
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		registries: opts.Registries,
		channel:    opts.Channel,
		logger:     logger,
		metrics:    opts.Metrics,
		newID:      newID,
		now:        now,
	}, nil
}

// Start validates req, inserts an optimistic record with the family's initial
// status and zero progress, and emits the start envelope. The record exists
// locally before the server confirms anything; the first progress event or
// snapshot makes it authoritative.
func (d *Dispatcher) Start(ctx context.Context, family model.JobFamily, req *model.StartRequest) (*model.JobRecord, error) {
	started := d.now()
	rec, err := d.start(ctx, family, req)
	d.emitCommand(family, "start", started, err)
	return rec, err
}

func (d *Dispatcher) start(ctx context.Context, family model.JobFamily, req *model.StartRequest) (*model.JobRecord, error) {
	reg := d.registries.Family(family)
	if reg == nil {
		return nil, apperrors.Validationf("unknown family %q", family)
	}
	if err := d.requireConnected(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.Validation("start request is required")
	}
	if err := req.Validate(family); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid start request")
	}
	if family != model.FamilyWarmer {
		// The mapping has to resolve against the actual rows before the
		// workload is shipped to the worker.
		if _, err := ResolveRecipients(req.Rows, req.Mapping); err != nil {
			return nil, err
		}
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = d.newID()
	}
	if _, exists := reg.Get(jobID); exists {
		return nil, apperrors.Conflict("a job with this id already exists")
	}

	rec := &model.JobRecord{
		JobID:    jobID,
		Family:   family,
		Status:   family.InitialStatus(req.Scheduled()),
		Progress: model.Progress{Current: 0, Total: req.Total(family)},
		Config:   req.Config(),
	}
	reg.Upsert(rec)

	env, err := model.NewEnvelope(family, model.KindStart, jobID, model.StartPayload{
		JobID:  jobID,
		Config: rec.Config,
		Total:  rec.Progress.Total,
	})
	if err != nil {
		reg.Remove(jobID)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build start envelope")
	}
	if err := d.channel.Emit(ctx, env); err != nil {
		// Roll the optimistic insert back; the server never saw the job.
		reg.Remove(jobID)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTransport, "send start command")
	}

	d.logger.InfoContext(ctx, "job started",
		"family", family, "job_id", jobID, "total", rec.Progress.Total)
	return rec.Clone(), nil
}

// Pause asks the worker to suspend the job. The local status is not mutated;
// the authoritative change arrives via the progress reconciler. Pausing a
// terminal job is a no-op.
func (d *Dispatcher) Pause(ctx context.Context, family model.JobFamily, jobID string) error {
	return d.control(ctx, family, model.KindPause, jobID)
}

// Resume asks the worker to resume a paused job. Like Pause, the local
// status is left untouched until a progress event confirms the change.
func (d *Dispatcher) Resume(ctx context.Context, family model.JobFamily, jobID string) error {
	return d.control(ctx, family, model.KindResume, jobID)
}

func (d *Dispatcher) control(ctx context.Context, family model.JobFamily, kind model.Kind, jobID string) error {
	started := d.now()
	err := d.doControl(ctx, family, kind, jobID)
	d.emitCommand(family, string(kind), started, err)
	return err
}

func (d *Dispatcher) doControl(ctx context.Context, family model.JobFamily, kind model.Kind, jobID string) error {
	reg := d.registries.Family(family)
	if reg == nil {
		return apperrors.Validationf("unknown family %q", family)
	}
	if err := d.requireConnected(); err != nil {
		return err
	}
	rec, ok := reg.Get(jobID)
	if !ok {
		return apperrors.NotFoundf("no %s job %s", family, jobID)
	}
	if rec.Terminal() {
		// Mistimed pause/resume against a finished job; nothing to send.
		d.logger.DebugContext(ctx, "control command on terminal job ignored",
			"family", family, "job_id", jobID, "kind", kind, "status", rec.Status)
		return nil
	}

	env, err := model.NewEnvelope(family, kind, jobID, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build control envelope")
	}
	if err := d.channel.Emit(ctx, env); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeTransport, "send %s command", kind)
	}
	return nil
}

// Stop asks the worker to cancel the job and optimistically removes the
// local record: stopping is user-intended deletion. A tombstone guards
// against a late progress event resurrecting the job. Stopping a job that is
// already gone is a safe no-op, so repeated stops never fail.
func (d *Dispatcher) Stop(ctx context.Context, family model.JobFamily, jobID string) error {
	return d.removeCommand(ctx, family, model.KindStop, jobID)
}

// Remove dismisses a job that reached a terminal status. Like Stop it
// removes the record optimistically and is safe to repeat.
func (d *Dispatcher) Remove(ctx context.Context, family model.JobFamily, jobID string) error {
	return d.removeCommand(ctx, family, model.KindRemove, jobID)
}

func (d *Dispatcher) removeCommand(ctx context.Context, family model.JobFamily, kind model.Kind, jobID string) error {
	started := d.now()
	err := d.doRemove(ctx, family, kind, jobID)
	d.emitCommand(family, string(kind), started, err)
	return err
}

func (d *Dispatcher) doRemove(ctx context.Context, family model.JobFamily, kind model.Kind, jobID string) error {
	reg := d.registries.Family(family)
	if reg == nil {
		return apperrors.Validationf("unknown family %q", family)
	}
	if err := d.requireConnected(); err != nil {
		return err
	}
	rec, ok := reg.Get(jobID)
	if !ok {
		// Repeated stop/remove for a job already gone.
		d.logger.DebugContext(ctx, "remove command on missing job ignored",
			"family", family, "job_id", jobID, "kind", kind)
		return nil
	}
	if kind == model.KindStop && !family.Stoppable(rec.Status) {
		return apperrors.Validationf("cannot stop a %s job in status %q", family, rec.Status)
	}

	env, err := model.NewEnvelope(family, kind, jobID, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build remove envelope")
	}
	gen := reg.RemoveOptimistic(jobID)
	if err := d.channel.Emit(ctx, env); err != nil {
		// The record stays removed: the user asked for it to go away, and
		// the next snapshot settles what the server still knows.
		return apperrors.Wrapf(err, apperrors.ErrCodeTransport, "send %s command", kind)
	}

	d.logger.InfoContext(ctx, "job removed locally",
		"family", family, "job_id", jobID, "kind", kind, "generation", gen)
	return nil
}

func (d *Dispatcher) requireConnected() error {
	if !d.channel.Connected() {
		return apperrors.Transport("not connected to the worker gateway")
	}
	return nil
}

func (d *Dispatcher) emitCommand(family model.JobFamily, verb string, started time.Time, err error) {
	result := metrics.ResultApplied
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitCommand(d.metrics, metrics.CommandMetric{
		Family:   string(family),
		Verb:     verb,
		Result:   result,
		Duration: d.now().Sub(started),
	})
}

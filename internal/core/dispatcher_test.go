package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
	"github.com/sendfleet/campaignsync/internal/mocks"
)

func newTestDispatcher(t *testing.T, emitter Emitter) (*Dispatcher, *Registries) {
	t.Helper()
	regs := NewRegistries()
	d, err := NewDispatcher(DispatcherOptions{
		Registries: regs,
		Channel:    emitter,
		NewID:      func() string { return "generated-id" },
	})
	require.NoError(t, err)
	return d, regs
}

func checkStartRequest() *model.StartRequest {
	return &model.StartRequest{
		Accounts: []string{"acct-1"},
		Rows: []model.WorkloadRow{
			{"phone_number": "+15550000001"},
			{"phone_number": "+15550000002"},
		},
		Mapping: &model.ColumnMapping{Phone: "phone_number"},
	}
}

func TestDispatcher_Start(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)

	var sent model.Envelope
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env model.Envelope) error {
			sent = env
			return nil
		})

	d, regs := newTestDispatcher(t, emitter)

	rec, err := d.Start(context.Background(), model.FamilyNumberCheck, checkStartRequest())
	require.NoError(t, err)
	assert.Equal(t, "generated-id", rec.JobID)
	assert.Equal(t, model.StatusRunning, rec.Status)
	assert.Equal(t, model.Progress{Current: 0, Total: 2}, rec.Progress)

	// The optimistic record exists before any server confirmation.
	stored, ok := regs.Family(model.FamilyNumberCheck).Get("generated-id")
	require.True(t, ok)
	assert.Equal(t, model.StatusRunning, stored.Status)
	assert.True(t, stored.LastSyncedAt.IsZero())

	assert.Equal(t, model.KindStart, sent.Kind)
	assert.Equal(t, "generated-id", sent.JobID)

	var payload model.StartPayload
	require.NoError(t, json.Unmarshal(sent.Payload, &payload))
	assert.Equal(t, 2, payload.Total)
	assert.Equal(t, []string{"acct-1"}, payload.Config.Accounts)
}

func TestDispatcher_Start_ScheduledBlast(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	d, _ := newTestDispatcher(t, emitter)

	req := checkStartRequest()
	req.Messages = []string{"promo"}
	at := testTime()
	req.ScheduleAt = &at

	rec, err := d.Start(context.Background(), model.FamilyBlast, req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, rec.Status)
}

func TestDispatcher_Start_Warmer_SkipsWorkloadResolution(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	d, _ := newTestDispatcher(t, emitter)

	rec, err := d.Start(context.Background(), model.FamilyWarmer, &model.StartRequest{
		Accounts: []string{"acct-1", "acct-2"},
		Messages: []string{"hey", "what's up"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, rec.Status)
	assert.Equal(t, 2, rec.Progress.Total)
}

func TestDispatcher_Start_Disconnected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(false)

	d, regs := newTestDispatcher(t, emitter)

	_, err := d.Start(context.Background(), model.FamilyNumberCheck, checkStartRequest())
	assert.True(t, apperrors.IsTransport(err))
	assert.Equal(t, 0, regs.Family(model.FamilyNumberCheck).Len())
}

func TestDispatcher_Start_InvalidRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true).AnyTimes()

	d, regs := newTestDispatcher(t, emitter)

	t.Run("missing workload", func(t *testing.T) {
		_, err := d.Start(context.Background(), model.FamilyNumberCheck, &model.StartRequest{
			Accounts: []string{"acct-1"},
		})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("unresolvable phone mapping", func(t *testing.T) {
		req := checkStartRequest()
		req.Mapping.Phone = "missing_column"
		_, err := d.Start(context.Background(), model.FamilyNumberCheck, req)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := d.Start(context.Background(), model.FamilyNumberCheck, nil)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("unknown family", func(t *testing.T) {
		_, err := d.Start(context.Background(), model.JobFamily("bogus"), checkStartRequest())
		assert.True(t, apperrors.IsValidation(err))
	})

	assert.Equal(t, 0, regs.Family(model.FamilyNumberCheck).Len())
}

func TestDispatcher_Start_DuplicateID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)

	d, regs := newTestDispatcher(t, emitter)
	regs.Family(model.FamilyNumberCheck).Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyNumberCheck,
		Status: model.StatusRunning,
	})

	req := checkStartRequest()
	req.JobID = "job-1"
	_, err := d.Start(context.Background(), model.FamilyNumberCheck, req)
	assert.True(t, apperrors.IsConflict(err))
}

func TestDispatcher_Start_EmitFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Return(apperrors.Transport("write failed"))

	d, regs := newTestDispatcher(t, emitter)

	_, err := d.Start(context.Background(), model.FamilyNumberCheck, checkStartRequest())
	assert.True(t, apperrors.IsTransport(err))
	// The server never saw the job, so the optimistic insert is rolled back.
	assert.Equal(t, 0, regs.Family(model.FamilyNumberCheck).Len())
}

func TestDispatcher_Pause(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)

	var sent model.Envelope
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env model.Envelope) error {
			sent = env
			return nil
		})

	d, regs := newTestDispatcher(t, emitter)
	regs.Family(model.FamilyNumberCheck).Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyNumberCheck,
		Status: model.StatusRunning,
	})

	require.NoError(t, d.Pause(context.Background(), model.FamilyNumberCheck, "job-1"))
	assert.Equal(t, model.KindPause, sent.Kind)

	// Pause is not applied locally; the next progress event decides.
	rec, _ := regs.Family(model.FamilyNumberCheck).Get("job-1")
	assert.Equal(t, model.StatusRunning, rec.Status)
}

func TestDispatcher_Pause_MissingJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)

	d, _ := newTestDispatcher(t, emitter)
	err := d.Pause(context.Background(), model.FamilyNumberCheck, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDispatcher_Resume_TerminalJobIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)
	// No Emit expectation: nothing goes to the gateway.

	d, regs := newTestDispatcher(t, emitter)
	regs.Family(model.FamilyNumberCheck).Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyNumberCheck,
		Status: model.StatusCompleted,
	})

	assert.NoError(t, d.Resume(context.Background(), model.FamilyNumberCheck, "job-1"))
}

func TestDispatcher_Stop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)

	var sent model.Envelope
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env model.Envelope) error {
			sent = env
			return nil
		})

	d, regs := newTestDispatcher(t, emitter)
	reg := regs.Family(model.FamilyBlast)
	reg.Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyBlast,
		Status: model.StatusInProgress,
	})

	require.NoError(t, d.Stop(context.Background(), model.FamilyBlast, "job-1"))
	assert.Equal(t, model.KindStop, sent.Kind)

	// Removed immediately, with a tombstone against late events.
	_, ok := reg.Get("job-1")
	assert.False(t, ok)
	assert.True(t, reg.Tombstoned("job-1"))
}

func TestDispatcher_Stop_MissingJobIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)

	d, _ := newTestDispatcher(t, emitter)
	// Repeated stop for a job already gone must not fail.
	assert.NoError(t, d.Stop(context.Background(), model.FamilyBlast, "already-gone"))
}

func TestDispatcher_Stop_NotStoppable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)

	d, regs := newTestDispatcher(t, emitter)
	reg := regs.Family(model.FamilyNumberCheck)
	reg.Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyNumberCheck,
		Status: model.StatusIdle,
	})

	err := d.Stop(context.Background(), model.FamilyNumberCheck, "job-1")
	assert.True(t, apperrors.IsValidation(err))
	_, ok := reg.Get("job-1")
	assert.True(t, ok)
}

func TestDispatcher_Stop_BlastOutsideStoppableStatuses(t *testing.T) {
	// Stop only applies to in_progress, paused and failed blasts. Jobs that
	// have not started and finished jobs are dismissed with remove instead.
	for _, status := range []model.JobStatus{
		model.StatusPending,
		model.StatusScheduled,
		model.StatusCompleted,
		model.StatusCanceled,
	} {
		t.Run(string(status), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			emitter := mocks.NewMockEmitter(ctrl)
			emitter.EXPECT().Connected().Return(true)

			d, regs := newTestDispatcher(t, emitter)
			reg := regs.Family(model.FamilyBlast)
			reg.Upsert(&model.JobRecord{
				JobID:  "job-1",
				Family: model.FamilyBlast,
				Status: status,
			})

			err := d.Stop(context.Background(), model.FamilyBlast, "job-1")
			assert.True(t, apperrors.IsValidation(err))
			_, ok := reg.Get("job-1")
			assert.True(t, ok)
			assert.False(t, reg.Tombstoned("job-1"))
		})
	}
}

func TestDispatcher_Stop_EmitFailureKeepsRemoval(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Return(apperrors.Transport("write failed"))

	d, regs := newTestDispatcher(t, emitter)
	reg := regs.Family(model.FamilyBlast)
	reg.Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyBlast,
		Status: model.StatusInProgress,
	})

	err := d.Stop(context.Background(), model.FamilyBlast, "job-1")
	assert.True(t, apperrors.IsTransport(err))
	// The user asked for the job to go away; it stays gone and the next
	// snapshot settles what the server still knows.
	_, ok := reg.Get("job-1")
	assert.False(t, ok)
}

func TestDispatcher_Remove_TerminalJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Connected().Return(true)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	d, regs := newTestDispatcher(t, emitter)
	reg := regs.Family(model.FamilyBlast)
	reg.Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyBlast,
		Status: model.StatusCompleted,
	})

	require.NoError(t, d.Remove(context.Background(), model.FamilyBlast, "job-1"))
	_, ok := reg.Get("job-1")
	assert.False(t, ok)
}

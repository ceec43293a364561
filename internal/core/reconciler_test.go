package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
)

func testTime() time.Time {
	return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
}

func newTestReconciler(t *testing.T) (*Reconciler, *Registries) {
	t.Helper()
	regs := NewRegistries()
	r, err := NewReconciler(ReconcilerOptions{
		Registries: regs,
		Now:        testTime,
	})
	require.NoError(t, err)
	return r, regs
}

func TestReconciler_ApplyProgress(t *testing.T) {
	r, regs := newTestReconciler(t)
	reg := regs.Family(model.FamilyNumberCheck)
	reg.Upsert(&model.JobRecord{
		JobID:    "job-1",
		Family:   model.FamilyNumberCheck,
		Status:   model.StatusRunning,
		Progress: model.Progress{Current: 2, Total: 10},
		Stale:    true,
		Config:   model.JobConfig{Accounts: []string{"acct-1"}},
	})

	err := r.ApplyProgress(context.Background(), model.FamilyNumberCheck, model.ProgressEvent{
		JobID:   "job-1",
		Status:  model.StatusPaused,
		Current: 5,
		Total:   10,
		Message: "paused by operator",
	})
	require.NoError(t, err)

	rec, _ := reg.Get("job-1")
	assert.Equal(t, model.StatusPaused, rec.Status)
	assert.Equal(t, 5, rec.Progress.Current)
	assert.Equal(t, "paused by operator", rec.Message)
	assert.False(t, rec.Stale, "a confirmed event clears staleness")
	assert.Equal(t, testTime(), rec.LastSyncedAt)
	// Config is never touched by reconciliation.
	assert.Equal(t, []string{"acct-1"}, rec.Config.Accounts)
}

func TestReconciler_ApplyProgress_OutOfOrderIsIdempotent(t *testing.T) {
	r, regs := newTestReconciler(t)
	reg := regs.Family(model.FamilyNumberCheck)
	reg.Upsert(&model.JobRecord{
		JobID:    "job-1",
		Family:   model.FamilyNumberCheck,
		Status:   model.StatusRunning,
		Progress: model.Progress{Current: 8, Total: 10},
	})

	// A delayed older event still wins: last received, not last produced.
	err := r.ApplyProgress(context.Background(), model.FamilyNumberCheck, model.ProgressEvent{
		JobID: "job-1", Status: model.StatusRunning, Current: 3, Total: 10,
	})
	require.NoError(t, err)
	rec, _ := reg.Get("job-1")
	assert.Equal(t, 3, rec.Progress.Current)

	// Replaying the same event changes nothing further.
	require.NoError(t, r.ApplyProgress(context.Background(), model.FamilyNumberCheck, model.ProgressEvent{
		JobID: "job-1", Status: model.StatusRunning, Current: 3, Total: 10,
	}))
	rec, _ = reg.Get("job-1")
	assert.Equal(t, 3, rec.Progress.Current)
	assert.Equal(t, model.StatusRunning, rec.Status)
}

func TestReconciler_ApplyProgress_CreatesMissingJob(t *testing.T) {
	r, regs := newTestReconciler(t)

	// A progress event for a job this client never started (another session,
	// or an event overtaking the snapshot) creates the record.
	err := r.ApplyProgress(context.Background(), model.FamilyBlast, model.ProgressEvent{
		JobID:   "elsewhere-1",
		Status:  model.StatusInProgress,
		Current: 4,
		Total:   20,
	})
	require.NoError(t, err)

	rec, ok := regs.Family(model.FamilyBlast).Get("elsewhere-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusInProgress, rec.Status)
	assert.Equal(t, model.Progress{Current: 4, Total: 20}, rec.Progress)
}

func TestReconciler_ApplyProgress_RejectsBadTransition(t *testing.T) {
	r, regs := newTestReconciler(t)
	reg := regs.Family(model.FamilyNumberCheck)
	reg.Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyNumberCheck,
		Status: model.StatusCompleted,
	})

	err := r.ApplyProgress(context.Background(), model.FamilyNumberCheck, model.ProgressEvent{
		JobID: "job-1", Status: model.StatusRunning, Current: 1, Total: 10,
	})
	assert.True(t, apperrors.IsStaleEvent(err))

	rec, _ := reg.Get("job-1")
	assert.Equal(t, model.StatusCompleted, rec.Status, "terminal status must stick")
}

func TestReconciler_ApplyProgress_DropsMalformed(t *testing.T) {
	r, regs := newTestReconciler(t)

	tests := []struct {
		name string
		ev   model.ProgressEvent
	}{
		{"missing jobId", model.ProgressEvent{Status: model.StatusRunning, Total: 10}},
		{"status outside vocabulary", model.ProgressEvent{JobID: "job-1", Status: model.StatusInProgress}},
		{"current above total", model.ProgressEvent{JobID: "job-1", Status: model.StatusRunning, Current: 11, Total: 10}},
		{"negative counters", model.ProgressEvent{JobID: "job-1", Status: model.StatusRunning, Current: -1, Total: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ApplyProgress(context.Background(), model.FamilyNumberCheck, tt.ev)
			assert.True(t, apperrors.IsStaleEvent(err))
		})
	}
	assert.Equal(t, 0, regs.Family(model.FamilyNumberCheck).Len())
}

func TestReconciler_ApplyProgress_DropsTombstoned(t *testing.T) {
	r, regs := newTestReconciler(t)
	reg := regs.Family(model.FamilyBlast)
	reg.Upsert(&model.JobRecord{
		JobID:  "job-1",
		Family: model.FamilyBlast,
		Status: model.StatusInProgress,
	})
	reg.RemoveOptimistic("job-1")

	// The late progress event lost the race against the local stop; it must
	// not resurrect the job.
	err := r.ApplyProgress(context.Background(), model.FamilyBlast, model.ProgressEvent{
		JobID: "job-1", Status: model.StatusInProgress, Current: 5, Total: 10,
	})
	assert.True(t, apperrors.IsStaleEvent(err))
	_, ok := reg.Get("job-1")
	assert.False(t, ok)
}

func TestReconciler_ApplyProgress_CrossJobIsolation(t *testing.T) {
	r, regs := newTestReconciler(t)
	reg := regs.Family(model.FamilyNumberCheck)
	reg.Upsert(&model.JobRecord{
		JobID: "job-a", Family: model.FamilyNumberCheck,
		Status: model.StatusRunning, Progress: model.Progress{Current: 1, Total: 5},
	})
	reg.Upsert(&model.JobRecord{
		JobID: "job-b", Family: model.FamilyNumberCheck,
		Status: model.StatusRunning, Progress: model.Progress{Current: 2, Total: 8},
	})

	require.NoError(t, r.ApplyProgress(context.Background(), model.FamilyNumberCheck, model.ProgressEvent{
		JobID: "job-a", Status: model.StatusCompleted, Current: 5, Total: 5,
	}))

	recB, _ := reg.Get("job-b")
	assert.Equal(t, model.StatusRunning, recB.Status)
	assert.Equal(t, 2, recB.Progress.Current)
}

func TestReconciler_ApplyRemoved(t *testing.T) {
	r, regs := newTestReconciler(t)
	reg := regs.Family(model.FamilyNumberCheck)
	reg.Upsert(&model.JobRecord{
		JobID: "job-1", Family: model.FamilyNumberCheck, Status: model.StatusCompleted,
	})

	require.NoError(t, r.ApplyRemoved(context.Background(), model.FamilyNumberCheck, model.RemovedEvent{JobID: "job-1"}))
	_, ok := reg.Get("job-1")
	assert.False(t, ok)

	// The ack for our own optimistic removal: silent no-op.
	assert.NoError(t, r.ApplyRemoved(context.Background(), model.FamilyNumberCheck, model.RemovedEvent{JobID: "job-1"}))

	err := r.ApplyRemoved(context.Background(), model.FamilyNumberCheck, model.RemovedEvent{})
	assert.True(t, apperrors.IsStaleEvent(err))
}

func TestReconciler_ApplyError(t *testing.T) {
	r, regs := newTestReconciler(t)
	reg := regs.Family(model.FamilyWarmer)
	reg.Upsert(&model.JobRecord{
		JobID: "job-1", Family: model.FamilyWarmer, Status: model.StatusRunning, Stale: true,
	})

	t.Run("job-scoped error is attached", func(t *testing.T) {
		require.NoError(t, r.ApplyError(context.Background(), model.FamilyWarmer, model.ErrorEvent{
			JobID: "job-1", Message: "account banned",
		}))
		rec, _ := reg.Get("job-1")
		assert.Equal(t, "account banned", rec.Error)
		assert.False(t, rec.Stale)
	})

	t.Run("unattributed error is swallowed", func(t *testing.T) {
		assert.NoError(t, r.ApplyError(context.Background(), model.FamilyWarmer, model.ErrorEvent{
			Message: "gateway hiccup",
		}))
	})

	t.Run("error for unknown job is dropped", func(t *testing.T) {
		err := r.ApplyError(context.Background(), model.FamilyWarmer, model.ErrorEvent{
			JobID: "missing", Message: "whatever",
		})
		assert.True(t, apperrors.IsStaleEvent(err))
	})

	t.Run("error for tombstoned job is dropped", func(t *testing.T) {
		reg.RemoveOptimistic("job-1")
		err := r.ApplyError(context.Background(), model.FamilyWarmer, model.ErrorEvent{
			JobID: "job-1", Message: "late",
		})
		assert.True(t, apperrors.IsStaleEvent(err))
	})
}

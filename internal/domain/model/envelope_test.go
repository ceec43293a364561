package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr string
	}{
		{
			name: "valid job-scoped command",
			env:  Envelope{Family: FamilyBlast, Kind: KindPause, JobID: "job-1"},
		},
		{
			name: "valid snapshot request without job scope",
			env:  Envelope{Family: FamilyWarmer, Kind: KindGetAllJobs},
		},
		{
			name: "valid unattributed error",
			env:  Envelope{Family: FamilyNumberCheck, Kind: KindError},
		},
		{
			name:    "missing jobId on job-scoped kind",
			env:     Envelope{Family: FamilyBlast, Kind: KindProgress},
			wantErr: "jobId is required",
		},
		{
			name:    "unknown family",
			env:     Envelope{Family: "mailer", Kind: KindStart, JobID: "job-1"},
			wantErr: "invalid family",
		},
		{
			name:    "unknown kind",
			env:     Envelope{Family: FamilyBlast, Kind: "restart", JobID: "job-1"},
			wantErr: "invalid kind",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestKind_Direction(t *testing.T) {
	for _, k := range []Kind{KindStart, KindPause, KindResume, KindStop, KindRemove, KindGetAllJobs} {
		assert.True(t, k.Outbound(), "%s", k)
		assert.False(t, k.Inbound(), "%s", k)
	}
	for _, k := range []Kind{KindProgress, KindItem, KindSnapshot, KindRemoved, KindError} {
		assert.True(t, k.Inbound(), "%s", k)
		assert.False(t, k.Outbound(), "%s", k)
	}
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(FamilyBlast, KindStart, "job-1", StartPayload{
		JobID: "job-1",
		Total: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, FamilyBlast, env.Family)
	assert.Equal(t, "job-1", env.JobID)

	var payload StartPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 10, payload.Total)

	_, err = NewEnvelope(FamilyBlast, KindStart, "", nil)
	assert.ErrorContains(t, err, "jobId is required")
}

func TestItemEvent_Entry(t *testing.T) {
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	ev := ItemEvent{
		JobID:     "job-1",
		Seq:       7,
		Recipient: "+15550000001",
		Status:    ItemStatusSent,
		Message:   "delivered",
		At:        at,
	}
	entry := ev.Entry()
	assert.Equal(t, uint64(7), entry.Seq)
	assert.Equal(t, "+15550000001", entry.Recipient)
	assert.Equal(t, ItemStatusSent, entry.Status)
	assert.Equal(t, at, entry.At)
}

func TestSnapshotJob_Record(t *testing.T) {
	syncedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	t.Run("full record", func(t *testing.T) {
		sj := SnapshotJob{
			JobID:   "job-1",
			Status:  StatusInProgress,
			Current: 3,
			Total:   10,
			Config:  &JobConfig{Accounts: []string{"acct-1"}},
			Log:     []LogEntry{{Seq: 1, Recipient: "+15550000001", Status: ItemStatusSent}},
		}
		rec, err := sj.Record(FamilyBlast, syncedAt)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, rec.Status)
		assert.Equal(t, Progress{Current: 3, Total: 10}, rec.Progress)
		assert.Equal(t, []string{"acct-1"}, rec.Config.Accounts)
		assert.Len(t, rec.Log, 1)
		assert.Equal(t, syncedAt, rec.LastSyncedAt)
		assert.False(t, rec.Stale)
	})

	t.Run("missing jobId", func(t *testing.T) {
		sj := SnapshotJob{Status: StatusInProgress}
		_, err := sj.Record(FamilyBlast, syncedAt)
		assert.ErrorContains(t, err, "missing jobId")
	})

	t.Run("status outside the family vocabulary", func(t *testing.T) {
		sj := SnapshotJob{JobID: "job-1", Status: StatusRunning}
		_, err := sj.Record(FamilyBlast, syncedAt)
		assert.ErrorContains(t, err, "invalid")
	})
}

func TestJobRecord_Clone_IsDeep(t *testing.T) {
	rec := &JobRecord{
		JobID:  "job-1",
		Family: FamilyBlast,
		Status: StatusInProgress,
		Config: JobConfig{
			Accounts: []string{"acct-1"},
			Mapping:  &ColumnMapping{Phone: "phone", Variables: map[string]string{"v": "col"}},
		},
		Log: []LogEntry{{Seq: 1}},
	}
	clone := rec.Clone()
	clone.Config.Accounts[0] = "changed"
	clone.Config.Mapping.Variables["v"] = "changed"
	clone.Log[0].Seq = 99

	assert.Equal(t, "acct-1", rec.Config.Accounts[0])
	assert.Equal(t, "col", rec.Config.Mapping.Variables["v"])
	assert.Equal(t, uint64(1), rec.Log[0].Seq)
}

func TestProgress_Valid(t *testing.T) {
	assert.True(t, Progress{Current: 0, Total: 0}.Valid())
	assert.True(t, Progress{Current: 5, Total: 10}.Valid())
	assert.True(t, Progress{Current: 10, Total: 10}.Valid())
	assert.False(t, Progress{Current: 11, Total: 10}.Valid())
	assert.False(t, Progress{Current: -1, Total: 10}.Valid())
	assert.False(t, Progress{Current: 0, Total: -1}.Valid())
}

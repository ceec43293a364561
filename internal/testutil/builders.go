package testutil

import (
	"fmt"
	"time"

	"github.com/sendfleet/campaignsync/internal/domain/model"
)

// JobRecordBuilder provides a fluent interface for building JobRecord
// objects for testing.
type JobRecordBuilder struct {
	rec *model.JobRecord
}

// NewJobRecord creates a JobRecordBuilder with sensible defaults: a running
// number-check job, halfway through a ten-row workload.
func NewJobRecord(jobID string) *JobRecordBuilder {
	return &JobRecordBuilder{
		rec: &model.JobRecord{
			JobID:    jobID,
			Family:   model.FamilyNumberCheck,
			Status:   model.StatusRunning,
			Progress: model.Progress{Current: 5, Total: 10},
			Config: model.JobConfig{
				Accounts: []string{"acct-1"},
			},
			LastSyncedAt: TestTime(),
		},
	}
}

// WithFamily sets the job family.
func (b *JobRecordBuilder) WithFamily(family model.JobFamily) *JobRecordBuilder {
	b.rec.Family = family
	return b
}

// WithStatus sets the job status.
func (b *JobRecordBuilder) WithStatus(status model.JobStatus) *JobRecordBuilder {
	b.rec.Status = status
	return b
}

// WithProgress sets the progress counters.
func (b *JobRecordBuilder) WithProgress(current, total int) *JobRecordBuilder {
	b.rec.Progress = model.Progress{Current: current, Total: total}
	return b
}

// WithLog sets the per-item log.
func (b *JobRecordBuilder) WithLog(entries ...model.LogEntry) *JobRecordBuilder {
	b.rec.Log = entries
	return b
}

// WithError sets the last-known error message.
func (b *JobRecordBuilder) WithError(msg string) *JobRecordBuilder {
	b.rec.Error = msg
	return b
}

// WithStale marks the record stale.
func (b *JobRecordBuilder) WithStale() *JobRecordBuilder {
	b.rec.Stale = true
	return b
}

// Build returns the constructed record.
func (b *JobRecordBuilder) Build() *model.JobRecord {
	return b.rec.Clone()
}

// StartRequestBuilder provides a fluent interface for building StartRequest
// objects for testing.
type StartRequestBuilder struct {
	req *model.StartRequest
}

// NewStartRequest creates a StartRequestBuilder with a small valid
// number-check workload.
func NewStartRequest() *StartRequestBuilder {
	return &StartRequestBuilder{
		req: &model.StartRequest{
			Accounts: []string{"acct-1"},
			Rows: []model.WorkloadRow{
				{"phone_number": "+15550000001", "name": "Ada"},
				{"phone_number": "+15550000002", "name": "Grace"},
			},
			Mapping: &model.ColumnMapping{Phone: "phone_number", Name: "name"},
		},
	}
}

// ForWarmer reshapes the request into a valid warmer start: two accounts, a
// chat script, no workload rows.
func (b *StartRequestBuilder) ForWarmer() *StartRequestBuilder {
	b.req.Accounts = []string{"acct-1", "acct-2"}
	b.req.Rows = nil
	b.req.Mapping = nil
	b.req.Messages = []string{"hey", "how are you"}
	return b
}

// ForBlast reshapes the request into a valid blast start.
func (b *StartRequestBuilder) ForBlast() *StartRequestBuilder {
	b.req.Messages = []string{"promo message"}
	return b
}

// WithAccounts sets the sender accounts.
func (b *StartRequestBuilder) WithAccounts(accounts ...string) *StartRequestBuilder {
	b.req.Accounts = accounts
	return b
}

// WithRows generates n workload rows with sequential phone numbers.
func (b *StartRequestBuilder) WithRows(n int) *StartRequestBuilder {
	rows := make([]model.WorkloadRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, model.WorkloadRow{
			"phone_number": fmt.Sprintf("+1555%07d", i+1),
			"name":         fmt.Sprintf("contact-%d", i+1),
		})
	}
	b.req.Rows = rows
	return b
}

// WithMapping sets the column mapping.
func (b *StartRequestBuilder) WithMapping(mapping *model.ColumnMapping) *StartRequestBuilder {
	b.req.Mapping = mapping
	return b
}

// WithMessages sets the message blocks.
func (b *StartRequestBuilder) WithMessages(messages ...string) *StartRequestBuilder {
	b.req.Messages = messages
	return b
}

// WithScheduleAt schedules the blast for the given time.
func (b *StartRequestBuilder) WithScheduleAt(at time.Time) *StartRequestBuilder {
	b.req.ScheduleAt = &at
	return b
}

// Build returns the constructed request.
func (b *StartRequestBuilder) Build() model.StartRequest {
	return *b.req
}

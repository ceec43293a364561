package model

import (
	"errors"
	"time"
)

// Progress tracks how far a job has advanced through its workload.
// Invariant: 0 <= Current <= Total.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Valid returns true if the progress counters are internally consistent.
func (p Progress) Valid() bool {
	return p.Current >= 0 && p.Total >= 0 && p.Current <= p.Total
}

// ItemStatus is the outcome of a single per-item send or check.
type ItemStatus string

const (
	// ItemStatusSent indicates the item was delivered/verified successfully.
	ItemStatusSent ItemStatus = "sent"
	// ItemStatusFailed indicates the item failed.
	ItemStatusFailed ItemStatus = "failed"
)

// Valid returns true if the ItemStatus is valid.
func (s ItemStatus) Valid() bool {
	return s == ItemStatusSent || s == ItemStatusFailed
}

// LogEntry is one per-item result in a job's append-only log. Seq is a
// server-assigned, per-job, 1-based sequence number used to deduplicate
// redelivered events; 0 marks a legacy sender that did not assign one.
type LogEntry struct {
	Seq       uint64     `json:"seq"`
	Recipient string     `json:"recipient"`
	Status    ItemStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	At        time.Time  `json:"at"`
}

// DelayConfig shapes the pacing of a campaign: a random delay between Min and
// Max per item, plus an extra pause after every AfterN items.
type DelayConfig struct {
	MinDelayMs   int `json:"minDelayMs"`
	MaxDelayMs   int `json:"maxDelayMs"`
	DelayAfterN  int `json:"delayAfterN"`
	DelayAfterMs int `json:"delayAfterNMs"`
}

// Validate checks the delay window for internal consistency.
func (d DelayConfig) Validate() error {
	if d.MinDelayMs < 0 || d.MaxDelayMs < 0 {
		return errors.New("delays must be non-negative")
	}
	if d.MinDelayMs > d.MaxDelayMs {
		return errors.New("min delay must not exceed max delay")
	}
	if d.DelayAfterN < 0 || d.DelayAfterMs < 0 {
		return errors.New("delay-after settings must be non-negative")
	}
	return nil
}

// WorkloadRow is one spreadsheet row of the imported workload. Keys are the
// column names from the import; values are the raw cell contents.
type WorkloadRow map[string]any

// ColumnMapping selects fields out of workload rows using JMESPath
// expressions, e.g. Phone: "phone_number" or Phone: "contact.msisdn".
type ColumnMapping struct {
	Phone     string            `json:"phone"`
	Name      string            `json:"name,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// JobConfig is the immutable snapshot of the parameters a job was started
// with. It is set at creation and never mutated by reconciliation.
type JobConfig struct {
	// Accounts are the sender/checker account identifiers involved.
	Accounts []string `json:"accounts"`
	// Delay is the pacing configuration.
	Delay DelayConfig `json:"delay"`
	// Rows is the imported workload (NumberCheck, Blast).
	Rows []WorkloadRow `json:"rows,omitempty"`
	// Mapping selects the relevant columns out of Rows (NumberCheck, Blast).
	Mapping *ColumnMapping `json:"mapping,omitempty"`
	// Messages is the chat script (Warmer) or message blocks (Blast).
	Messages []string `json:"messages,omitempty"`
	// ScheduleAt delays the start of a blast until the given time.
	ScheduleAt *time.Time `json:"scheduleAt,omitempty"`
}

// JobRecord is the client-side representation of one remote job: its status,
// progress, configuration and per-item log.
type JobRecord struct {
	JobID    string     `json:"jobId"`
	Family   JobFamily  `json:"family"`
	Status   JobStatus  `json:"status"`
	Progress Progress   `json:"progress"`
	Config   JobConfig  `json:"config"`
	Log      []LogEntry `json:"log,omitempty"`
	// Message is the last human-readable status message from the worker.
	Message string `json:"message,omitempty"`
	// Error is the last-known error message reported by the worker.
	Error string `json:"error,omitempty"`
	// Stale marks a record whose server-confirmed state may be out of date
	// (set on channel disconnect, cleared by the next confirmed event).
	Stale bool `json:"stale,omitempty"`
	// LastSyncedAt is the time of the last server-confirmed mutation. The
	// zero value means the record is purely optimistic.
	LastSyncedAt time.Time `json:"lastSyncedAt,omitzero"`
}

// Terminal returns true if the record's status is terminal for its family.
func (r *JobRecord) Terminal() bool {
	return r.Family.Terminal(r.Status)
}

// Clone returns a deep copy of the record so callers can hand it out without
// exposing registry-owned slices to mutation.
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Log != nil {
		out.Log = make([]LogEntry, len(r.Log))
		copy(out.Log, r.Log)
	}
	out.Config = r.Config.clone()
	return &out
}

func (c JobConfig) clone() JobConfig {
	out := c
	if c.Accounts != nil {
		out.Accounts = append([]string(nil), c.Accounts...)
	}
	if c.Messages != nil {
		out.Messages = append([]string(nil), c.Messages...)
	}
	if c.Rows != nil {
		out.Rows = make([]WorkloadRow, len(c.Rows))
		copy(out.Rows, c.Rows)
	}
	if c.Mapping != nil {
		m := *c.Mapping
		if c.Mapping.Variables != nil {
			m.Variables = make(map[string]string, len(c.Mapping.Variables))
			for k, v := range c.Mapping.Variables {
				m.Variables[k] = v
			}
		}
		out.Mapping = &m
	}
	if c.ScheduleAt != nil {
		t := *c.ScheduleAt
		out.ScheduleAt = &t
	}
	return out
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the messages exchanged with the worker gateway. A single
// envelope shape carries every family and verb; the family field qualifies
// which registry the message addresses.
type Kind string

const (
	// Outbound control verbs (client -> gateway).

	// KindStart asks the gateway to start a new job.
	KindStart Kind = "start"
	// KindPause asks the gateway to suspend a job.
	KindPause Kind = "pause"
	// KindResume asks the gateway to resume a paused job.
	KindResume Kind = "resume"
	// KindStop asks the gateway to cancel a job.
	KindStop Kind = "stop"
	// KindRemove asks the gateway to drop a finished job.
	KindRemove Kind = "remove"
	// KindGetAllJobs requests an authoritative snapshot of a family.
	KindGetAllJobs Kind = "get-all-jobs"

	// Inbound events (gateway -> client).

	// KindProgress carries a job's status and progress counters.
	KindProgress Kind = "progress"
	// KindItem carries one per-item send/check result.
	KindItem Kind = "item"
	// KindSnapshot carries the full list of a family's jobs.
	KindSnapshot Kind = "snapshot"
	// KindRemoved confirms a job was dropped server-side.
	KindRemoved Kind = "removed"
	// KindError carries a job-scoped or generic worker error.
	KindError Kind = "error"
)

// Outbound returns true for kinds the client sends.
func (k Kind) Outbound() bool {
	switch k {
	case KindStart, KindPause, KindResume, KindStop, KindRemove, KindGetAllJobs:
		return true
	default:
		return false
	}
}

// Inbound returns true for kinds the gateway sends.
func (k Kind) Inbound() bool {
	switch k {
	case KindProgress, KindItem, KindSnapshot, KindRemoved, KindError:
		return true
	default:
		return false
	}
}

// Envelope is the wire frame for every channel message, in both directions.
type Envelope struct {
	Family  JobFamily       `json:"family"`
	Kind    Kind            `json:"kind"`
	JobID   string          `json:"jobId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the envelope at the channel boundary. Malformed envelopes
// are dropped before they reach the registries.
func (e *Envelope) Validate() error {
	if !e.Family.Valid() {
		return fmt.Errorf("invalid family: %q", e.Family)
	}
	if !e.Kind.Outbound() && !e.Kind.Inbound() {
		return fmt.Errorf("invalid kind: %q", e.Kind)
	}
	switch e.Kind {
	case KindStart, KindPause, KindResume, KindStop, KindRemove,
		KindProgress, KindItem, KindRemoved:
		if e.JobID == "" {
			return fmt.Errorf("jobId is required for kind %q", e.Kind)
		}
	case KindGetAllJobs, KindSnapshot, KindError:
		// No job scope required.
	}
	return nil
}

// NewEnvelope builds an envelope with a JSON-encoded payload.
func NewEnvelope(family JobFamily, kind Kind, jobID string, payload any) (Envelope, error) {
	env := Envelope{Family: family, Kind: kind, JobID: jobID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		env.Payload = raw
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// StartPayload is the payload of an outbound start envelope: the jobId chosen
// by the client plus the full job configuration.
type StartPayload struct {
	JobID  string    `json:"jobId"`
	Config JobConfig `json:"config"`
	Total  int       `json:"total"`
}

// ProgressEvent is the payload of an inbound progress envelope.
type ProgressEvent struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Current int       `json:"current"`
	Total   int       `json:"total"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// ItemEvent is the payload of an inbound per-item result envelope.
type ItemEvent struct {
	JobID     string     `json:"jobId"`
	Seq       uint64     `json:"seq"`
	Recipient string     `json:"recipient"`
	Status    ItemStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	At        time.Time  `json:"at"`
}

// Entry converts the event into its log representation.
func (e *ItemEvent) Entry() LogEntry {
	return LogEntry{
		Seq:       e.Seq,
		Recipient: e.Recipient,
		Status:    e.Status,
		Message:   e.Message,
		Error:     e.Error,
		At:        e.At,
	}
}

// SnapshotJob is one job's full server-side state inside a snapshot event.
type SnapshotJob struct {
	JobID   string     `json:"jobId"`
	Status  JobStatus  `json:"status"`
	Current int        `json:"current"`
	Total   int        `json:"total"`
	Error   string     `json:"error,omitempty"`
	Config  *JobConfig `json:"config,omitempty"`
	Log     []LogEntry `json:"log,omitempty"`
}

// SnapshotEvent is the payload of an inbound all-jobs snapshot envelope.
type SnapshotEvent struct {
	Jobs []SnapshotJob `json:"jobs"`
}

// RemovedEvent is the payload of an inbound job-removed envelope.
type RemovedEvent struct {
	JobID string `json:"jobId"`
}

// ErrorEvent is the payload of an inbound error envelope. JobID is empty for
// errors the worker could not attribute to a specific job.
type ErrorEvent struct {
	JobID   string `json:"jobId,omitempty"`
	Message string `json:"message"`
}

// Record builds a JobRecord from a snapshot entry. The server is
// authoritative, so no transition check applies here.
func (s *SnapshotJob) Record(family JobFamily, syncedAt time.Time) (*JobRecord, error) {
	if s.JobID == "" {
		return nil, errors.New("snapshot job is missing jobId")
	}
	if !family.ValidStatus(s.Status) {
		return nil, fmt.Errorf("snapshot job %s has invalid %s status %q", s.JobID, family, s.Status)
	}
	rec := &JobRecord{
		JobID:        s.JobID,
		Family:       family,
		Status:       s.Status,
		Progress:     Progress{Current: s.Current, Total: s.Total},
		Error:        s.Error,
		LastSyncedAt: syncedAt,
	}
	if s.Config != nil {
		rec.Config = s.Config.clone()
	}
	if len(s.Log) > 0 {
		rec.Log = append([]LogEntry(nil), s.Log...)
	}
	return rec, nil
}

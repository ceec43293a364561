package model

import (
	"errors"
	"fmt"
	"time"
)

// StartRequest is a request to start a new job. JobID is optional; the
// dispatcher assigns one when empty.
type StartRequest struct {
	JobID      string         `json:"jobId,omitempty"`
	Accounts   []string       `json:"accounts"`
	Delay      DelayConfig    `json:"delay"`
	Rows       []WorkloadRow  `json:"rows,omitempty"`
	Mapping    *ColumnMapping `json:"mapping,omitempty"`
	Messages   []string       `json:"messages,omitempty"`
	ScheduleAt *time.Time     `json:"scheduleAt,omitempty"`
}

// Validate applies the family-specific preconditions checked locally before
// anything is sent to the channel.
func (r *StartRequest) Validate(family JobFamily) error {
	if !family.Valid() {
		return fmt.Errorf("invalid family: %q", family)
	}
	if err := r.Delay.Validate(); err != nil {
		return err
	}
	switch family {
	case FamilyNumberCheck:
		if len(r.Accounts) == 0 {
			return errors.New("at least one account is required")
		}
		if err := r.validateWorkload(); err != nil {
			return err
		}
	case FamilyWarmer:
		if len(r.Accounts) < 2 {
			return errors.New("warmer requires at least two accounts")
		}
		if len(r.Messages) == 0 {
			return errors.New("at least one warm-up message is required")
		}
	case FamilyBlast:
		if len(r.Accounts) == 0 {
			return errors.New("at least one sender account is required")
		}
		if len(r.Messages) == 0 {
			return errors.New("at least one message block is required")
		}
		if err := r.validateWorkload(); err != nil {
			return err
		}
	}
	return nil
}

func (r *StartRequest) validateWorkload() error {
	if len(r.Rows) == 0 {
		return errors.New("workload rows are required")
	}
	if r.Mapping == nil || r.Mapping.Phone == "" {
		return errors.New("a phone column mapping is required")
	}
	return nil
}

// Total returns the size of the workload the job will report progress
// against: spreadsheet rows for NumberCheck and Blast, script messages for
// Warmer.
func (r *StartRequest) Total(family JobFamily) int {
	if family == FamilyWarmer {
		return len(r.Messages)
	}
	return len(r.Rows)
}

// Config captures the immutable configuration snapshot for the new record.
func (r *StartRequest) Config() JobConfig {
	cfg := JobConfig{
		Accounts: r.Accounts,
		Delay:    r.Delay,
		Rows:     r.Rows,
		Mapping:  r.Mapping,
		Messages: r.Messages,
	}
	if r.ScheduleAt != nil {
		t := *r.ScheduleAt
		cfg.ScheduleAt = &t
	}
	return cfg.clone()
}

// Scheduled returns true if the request carries a future schedule.
func (r *StartRequest) Scheduled() bool {
	return r.ScheduleAt != nil && !r.ScheduleAt.IsZero()
}

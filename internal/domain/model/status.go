package model

// JobStatus represents the current status of a job. The set of valid statuses
// and the transitions between them depend on the job family.
type JobStatus string

const (
	// StatusIdle indicates a job that exists but has not started working yet
	// (NumberCheck, Warmer).
	StatusIdle JobStatus = "idle"
	// StatusRunning indicates a job that is actively working (NumberCheck, Warmer).
	StatusRunning JobStatus = "running"
	// StatusPaused indicates a job that was suspended and can be resumed.
	StatusPaused JobStatus = "paused"
	// StatusCompleted indicates a job that finished successfully.
	StatusCompleted JobStatus = "completed"
	// StatusError indicates a job that stopped on an unrecoverable error
	// (NumberCheck, Warmer).
	StatusError JobStatus = "error"

	// StatusPending indicates a blast waiting for the worker to pick it up.
	StatusPending JobStatus = "pending"
	// StatusScheduled indicates a blast waiting for its scheduled send time.
	StatusScheduled JobStatus = "scheduled"
	// StatusInProgress indicates a blast that is actively sending.
	StatusInProgress JobStatus = "in_progress"
	// StatusFailed indicates a blast that stopped on an unrecoverable error.
	StatusFailed JobStatus = "failed"
	// StatusCanceled indicates a blast that was canceled server-side.
	StatusCanceled JobStatus = "canceled"
)

// checkerStatuses is the vocabulary shared by NumberCheck and Warmer.
var checkerStatuses = map[JobStatus]bool{
	StatusIdle:      true,
	StatusRunning:   true,
	StatusPaused:    true,
	StatusCompleted: true,
	StatusError:     true,
}

var blastStatuses = map[JobStatus]bool{
	StatusPending:    true,
	StatusScheduled:  true,
	StatusInProgress: true,
	StatusPaused:     true,
	StatusCompleted:  true,
	StatusFailed:     true,
	StatusCanceled:   true,
}

// ValidStatus returns true if s belongs to the family's status vocabulary.
func (f JobFamily) ValidStatus(s JobStatus) bool {
	switch f {
	case FamilyNumberCheck, FamilyWarmer:
		return checkerStatuses[s]
	case FamilyBlast:
		return blastStatuses[s]
	default:
		return false
	}
}

// InitialStatus returns the status a freshly started job is created with.
// Blast jobs started with a future schedule begin scheduled instead of
// sending immediately.
func (f JobFamily) InitialStatus(scheduled bool) JobStatus {
	if f == FamilyBlast {
		if scheduled {
			return StatusScheduled
		}
		return StatusInProgress
	}
	return StatusRunning
}

// Terminal returns true if s is a terminal status for the family: no
// transition out of it is legal except wholesale snapshot replacement.
func (f JobFamily) Terminal(s JobStatus) bool {
	switch s {
	case StatusCompleted, StatusError, StatusFailed, StatusCanceled:
		return f.ValidStatus(s)
	default:
		return false
	}
}

// checkerEdges are the legal transitions for NumberCheck and Warmer:
// idle -> running <-> paused -> {completed|error}.
var checkerEdges = map[JobStatus][]JobStatus{
	StatusIdle:    {StatusRunning},
	StatusRunning: {StatusPaused, StatusCompleted, StatusError},
	StatusPaused:  {StatusRunning, StatusCompleted, StatusError},
}

// blastEdges are the legal transitions for Blast:
// {pending|scheduled} -> in_progress <-> paused -> {completed|failed|canceled}.
var blastEdges = map[JobStatus][]JobStatus{
	StatusPending:    {StatusInProgress},
	StatusScheduled:  {StatusInProgress},
	StatusInProgress: {StatusPaused, StatusCompleted, StatusFailed, StatusCanceled},
	StatusPaused:     {StatusInProgress, StatusCompleted, StatusFailed, StatusCanceled},
}

// CanTransition reports whether moving from 'from' to 'to' follows an edge of
// the family's state machine. A self-transition is always legal so that
// redelivered progress events stay idempotent.
func (f JobFamily) CanTransition(from, to JobStatus) bool {
	if !f.ValidStatus(from) || !f.ValidStatus(to) {
		return false
	}
	if from == to {
		return true
	}
	var edges map[JobStatus][]JobStatus
	switch f {
	case FamilyNumberCheck, FamilyWarmer:
		edges = checkerEdges
	case FamilyBlast:
		edges = blastEdges
	default:
		return false
	}
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stoppable returns true if a job in status s may be removed by a user stop
// command for the given family. Jobs that have not started (pending,
// scheduled, idle) and terminal jobs other than failed blasts are dismissed
// with the remove verb instead.
func (f JobFamily) Stoppable(s JobStatus) bool {
	switch f {
	case FamilyNumberCheck, FamilyWarmer:
		return s == StatusRunning || s == StatusPaused
	case FamilyBlast:
		return s == StatusInProgress || s == StatusPaused || s == StatusFailed
	default:
		return false
	}
}

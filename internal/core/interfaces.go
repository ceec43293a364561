package core

import (
	"context"

	"github.com/sendfleet/campaignsync/internal/domain/model"
)

// This file contains the ports between the orchestration core and its
// adapters. Core components depend on these interfaces, never on concrete
// adapter implementations.

// Emitter is the outbound side of the duplex channel to the worker gateway.
// Emit is fire-and-forget: there is no per-command acknowledgement; the
// authoritative outcome arrives later as progress/snapshot events.
type Emitter interface {
	// Connected reports whether the channel currently has a live connection.
	Connected() bool
	// Emit sends one envelope. It fails fast when disconnected.
	Emit(ctx context.Context, env model.Envelope) error
}

// SnapshotCache persists the last server-confirmed view of a family so a
// restarted client can present a stale view before the first resync.
type SnapshotCache interface {
	Store(ctx context.Context, family model.JobFamily, records []*model.JobRecord) error
	Load(ctx context.Context, family model.JobFamily) ([]*model.JobRecord, error)
}

// LogArchive durably archives per-item results. Appends are idempotent on
// (family, jobId, seq); a redelivered entry must not produce a second row.
type LogArchive interface {
	Append(ctx context.Context, family model.JobFamily, jobID string, entry model.LogEntry) error
}

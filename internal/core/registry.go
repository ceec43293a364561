// Package core implements the job orchestration and state-synchronization
// layer: per-family job registries, the command dispatcher, the progress
// reconciler, the message log appender and reconnect recovery.
package core

import (
	"sort"
	"sync"

	"github.com/sendfleet/campaignsync/internal/domain/model"
)

// Registry is the in-memory job store for one family. All mutation of job
// records flows through its narrow operation set so the record invariants are
// enforced in one place. It is safe for concurrent use; each operation is
// atomic, so commands arriving from HTTP handlers never interleave with
// channel events mid-mutation.
type Registry struct {
	family model.JobFamily

	mu   sync.RWMutex
	jobs map[string]*model.JobRecord
	// seqs tracks the item sequence numbers already appended per job, for
	// redelivery dedup.
	seqs map[string]map[uint64]struct{}
	// tombstones maps a jobId removed optimistically (stop/remove command)
	// to the generation of that removal. Inbound events addressing a
	// tombstoned id are stale and must not resurrect the record.
	tombstones map[string]uint64
	generation uint64
}

// NewRegistry creates an empty registry for the given family.
func NewRegistry(family model.JobFamily) *Registry {
	return &Registry{
		family:     family,
		jobs:       make(map[string]*model.JobRecord),
		seqs:       make(map[string]map[uint64]struct{}),
		tombstones: make(map[string]uint64),
	}
}

// Family returns the family this registry holds jobs for.
func (r *Registry) Family() model.JobFamily {
	return r.family
}

// Get returns a deep copy of the record for jobID, if present.
func (r *Registry) Get(jobID string) (*model.JobRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.jobs[jobID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len returns the number of records in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// List returns deep copies of all records, sorted by jobId for stable output.
func (r *Registry) List() []*model.JobRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.JobRecord, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

// Upsert inserts or replaces the record for rec.JobID. It clears any
// tombstone for that id: an explicit insert starts a fresh epoch for the job.
func (r *Registry) Upsert(rec *model.JobRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(rec.Clone())
}

// insertLocked stores rec (already owned by the registry) and rebuilds its
// sequence index from the log.
func (r *Registry) insertLocked(rec *model.JobRecord) {
	delete(r.tombstones, rec.JobID)
	r.jobs[rec.JobID] = rec
	seen := make(map[uint64]struct{}, len(rec.Log))
	for _, entry := range rec.Log {
		if entry.Seq > 0 {
			seen[entry.Seq] = struct{}{}
		}
	}
	r.seqs[rec.JobID] = seen
}

// Mutate atomically applies fn to the record for jobID. It returns false
// without calling fn when the record is absent. fn must not retain the
// record beyond the call.
func (r *Registry) Mutate(jobID string, fn func(*model.JobRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[jobID]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Remove deletes the record for jobID without installing a tombstone. Used
// for server-confirmed removals, where no stale-event protection is needed
// anymore; any pending tombstone for the id is resolved too.
func (r *Registry) Remove(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[jobID]
	delete(r.jobs, jobID)
	delete(r.seqs, jobID)
	delete(r.tombstones, jobID)
	return ok
}

// RemoveOptimistic deletes the record for jobID ahead of any server
// acknowledgement and installs a tombstone so that a late progress or item
// event cannot resurrect the job. It returns the generation of the removal.
func (r *Registry) RemoveOptimistic(jobID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
	delete(r.seqs, jobID)
	r.generation++
	r.tombstones[jobID] = r.generation
	return r.generation
}

// Tombstoned reports whether jobID was optimistically removed in the current
// epoch. Tombstones are cleared by Upsert, Remove and ReplaceAll.
func (r *Registry) Tombstoned(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tombstones[jobID]
	return ok
}

// AppendLog appends entry to the job's log if the job exists and the entry's
// sequence number has not been seen before. It returns true when the entry
// was appended. Entries with Seq == 0 come from legacy senders without
// sequence assignment and are appended without dedup.
func (r *Registry) AppendLog(jobID string, entry model.LogEntry) (appended, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[jobID]
	if !ok {
		return false, false
	}
	if entry.Seq > 0 {
		seen := r.seqs[jobID]
		if seen == nil {
			seen = make(map[uint64]struct{})
			r.seqs[jobID] = seen
		}
		if _, dup := seen[entry.Seq]; dup {
			return false, true
		}
		seen[entry.Seq] = struct{}{}
	}
	rec.Log = append(rec.Log, entry)
	return true, true
}

// ReplaceAll replaces the registry contents wholesale with records. This is
// the only operation that may delete jobs in bulk; it is reserved for
// snapshot resync, where the server is authoritative for job existence.
// All tombstones are cleared: a snapshot starts a new epoch.
func (r *Registry) ReplaceAll(records []*model.JobRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = make(map[string]*model.JobRecord, len(records))
	r.seqs = make(map[string]map[uint64]struct{}, len(records))
	r.tombstones = make(map[string]uint64)
	for _, rec := range records {
		if rec == nil || rec.JobID == "" {
			continue
		}
		r.insertLocked(rec.Clone())
	}
}

// MarkAllStale flags every record as possibly out of date. Called on channel
// disconnect: records are kept visible but no longer trusted until the next
// server-confirmed event or snapshot.
func (r *Registry) MarkAllStale() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.jobs {
		rec.Stale = true
	}
	return len(r.jobs)
}

// Registries is the set of per-family registries behind the orchestration
// components. It is created once and passed explicitly; there is no ambient
// global store.
type Registries struct {
	byFamily map[model.JobFamily]*Registry
}

// NewRegistries creates one registry per job family.
func NewRegistries() *Registries {
	byFamily := make(map[model.JobFamily]*Registry, len(model.Families()))
	for _, f := range model.Families() {
		byFamily[f] = NewRegistry(f)
	}
	return &Registries{byFamily: byFamily}
}

// Family returns the registry for f, or nil for an unknown family.
func (r *Registries) Family(f model.JobFamily) *Registry {
	return r.byFamily[f]
}

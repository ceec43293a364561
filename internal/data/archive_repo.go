// Package data provides the persistence layer for the campaignsync system.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Register the pgx stdlib driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
)

// ErrArchiveNotConfigured is returned when the archive is used without a
// database connection.
var ErrArchiveNotConfigured = errors.New("log archive is not configured")

// ArchiveRepo durably archives per-item send/check results, one row per
// (family, jobId, seq). The unique constraint doubles as redelivery dedup:
// inserting an already-archived entry surfaces as a Conflict, which callers
// treat as success.
type ArchiveRepo struct {
	DB *sql.DB
}

// NewArchiveRepo constructs an ArchiveRepo.
func NewArchiveRepo(db *sql.DB) *ArchiveRepo {
	return &ArchiveRepo{DB: db}
}

// archiveSchema creates the archive table. Entries without a sequence number
// (legacy senders) store NULL, which the unique index ignores, so they are
// archived without dedup, matching the in-memory behavior.
const archiveSchema = `
	CREATE TABLE IF NOT EXISTS job_log_archive (
		id         BIGSERIAL PRIMARY KEY,
		family     TEXT        NOT NULL,
		job_id     TEXT        NOT NULL,
		seq        BIGINT,
		recipient  TEXT        NOT NULL,
		status     TEXT        NOT NULL,
		message    TEXT        NOT NULL DEFAULT '',
		error      TEXT        NOT NULL DEFAULT '',
		sent_at    TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT job_log_archive_family_check
			CHECK (family IN ('number_check', 'warmer', 'blast'))
	);
	CREATE UNIQUE INDEX IF NOT EXISTS job_log_archive_family_job_seq_idx
		ON job_log_archive (family, job_id, seq);
	CREATE INDEX IF NOT EXISTS job_log_archive_family_job_idx
		ON job_log_archive (family, job_id);`

// EnsureSchema creates the archive table and indexes if missing.
func (r *ArchiveRepo) EnsureSchema(ctx context.Context) error {
	if r == nil || r.DB == nil {
		return ErrArchiveNotConfigured
	}
	if _, err := r.DB.ExecContext(ctx, archiveSchema); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// Append archives one log entry. A redelivered entry (same family, jobId and
// seq) returns a Conflict error.
func (r *ArchiveRepo) Append(ctx context.Context, family model.JobFamily, jobID string, entry model.LogEntry) error {
	if r == nil || r.DB == nil {
		return ErrArchiveNotConfigured
	}
	if jobID == "" {
		return apperrors.ValidationField("job_id", "job id is required")
	}

	var seq any
	if entry.Seq > 0 {
		seq = int64(entry.Seq)
	}
	const query = `
		INSERT INTO job_log_archive (family, job_id, seq, recipient, status, message, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		family, jobID, seq, entry.Recipient, entry.Status, entry.Message, entry.Error, entry.At)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// ListByJob returns the archived entries for one job in sequence order,
// capped at limit (0 means no cap).
func (r *ArchiveRepo) ListByJob(ctx context.Context, family model.JobFamily, jobID string, limit int) ([]model.LogEntry, error) {
	if r == nil || r.DB == nil {
		return nil, ErrArchiveNotConfigured
	}

	query := `
		SELECT COALESCE(seq, 0), recipient, status, message, error, sent_at
		FROM job_log_archive
		WHERE family = $1 AND job_id = $2
		ORDER BY seq NULLS LAST, id`
	args := []any{family, jobID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var seq int64
		if err := rows.Scan(&seq, &e.Recipient, &e.Status, &e.Message, &e.Error, &e.At); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		e.Seq = uint64(seq)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return entries, nil
}

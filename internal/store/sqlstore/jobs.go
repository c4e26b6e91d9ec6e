package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bedrockmate/internal/jobs"
	"bedrockmate/internal/store"
)

const jobColumns = `id, world_id, job_type, parameters, status, progress, result,
	error_message, created_at, started_at, completed_at`

// jobRow is the scan target for the jobs table. JSON columns are nullable text.
type jobRow struct {
	ID           string         `db:"id"`
	WorldID      string         `db:"world_id"`
	Type         string         `db:"job_type"`
	Parameters   sql.NullString `db:"parameters"`
	Status       string         `db:"status"`
	Progress     int            `db:"progress"`
	Result       sql.NullString `db:"result"`
	ErrorMessage string         `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	StartedAt    sql.NullTime   `db:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
}

func (r *jobRow) job() *jobs.Job {
	j := &jobs.Job{
		ID:           r.ID,
		WorldID:      r.WorldID,
		Type:         jobs.Type(r.Type),
		Status:       jobs.Status(r.Status),
		Progress:     r.Progress,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.Parameters.Valid {
		j.Parameters = json.RawMessage(r.Parameters.String)
	}
	if r.Result.Valid {
		j.Result = json.RawMessage(r.Result.String)
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time.UTC()
		j.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time.UTC()
		j.CompletedAt = &t
	}
	return j
}

// nullableText stores absent JSON as SQL NULL.
func nullableText(b json.RawMessage) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func (s *Store) CreateJob(ctx context.Context, worldID string, t jobs.Type, params json.RawMessage) (*jobs.Job, error) {
	j := &jobs.Job{
		ID:         uuid.NewString(),
		WorldID:    worldID,
		Type:       t,
		Parameters: params,
		Status:     jobs.StatusPending,
		CreatedAt:  s.now(),
	}
	query := s.db.Rebind(`INSERT INTO jobs (id, world_id, job_type, parameters, status, progress, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`)
	if _, err := s.db.ExecContext(ctx, query, j.ID, j.WorldID, j.Type, nullableText(params), j.Status, j.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	var row jobRow
	query := s.db.Rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.job(), nil
}

func (s *Store) ListJobs(ctx context.Context, f store.JobFilter) ([]*jobs.Job, error) {
	var (
		where []string
		args  []any
	)
	if f.WorldID != "" {
		where = append(where, "world_id = ?")
		args = append(args, f.WorldID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	list := make([]*jobs.Job, len(rows))
	for i := range rows {
		list[i] = rows[i].job()
	}
	return list, nil
}

// UpdateJobStatus issues one conditional UPDATE guarded by the transition's
// source states. Timestamps use COALESCE so the first write wins.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, tr jobs.Transition) (bool, error) {
	if err := tr.Validate(); err != nil {
		return false, err
	}
	now := s.now()

	var (
		set  string
		args []any
	)
	switch tr.To {
	case jobs.StatusRunning:
		set = "status = ?, progress = ?, started_at = COALESCE(started_at, ?)"
		args = []any{tr.To, tr.Progress, now}
	case jobs.StatusCompleted:
		set = "status = ?, progress = 100, result = ?, error_message = '', completed_at = COALESCE(completed_at, ?)"
		args = []any{tr.To, string(tr.Result), now}
	case jobs.StatusFailed:
		set = "status = ?, error_message = ?, completed_at = COALESCE(completed_at, ?)"
		args = []any{tr.To, tr.Error, now}
	}

	query, inArgs, err := sqlx.In(`UPDATE jobs SET `+set+` WHERE id = ? AND status IN (?)`,
		append(args, id, tr.Sources())...)
	if err != nil {
		return false, fmt.Errorf("failed to build job update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), inArgs...)
	if err != nil {
		return false, fmt.Errorf("failed to update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update job: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM jobs WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	return n > 0, nil
}

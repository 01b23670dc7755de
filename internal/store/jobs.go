package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parley/internal/services"
)

// ErrInvalidTransition indicates a status change outside the allowed set.
var ErrInvalidTransition = errors.New("invalid status transition")

const jobColumns = "id, source_url, mode, status, pages_json, final_context, error_message, created_at, updated_at"

// CreateJob inserts a new job. The job's CreatedAt/UpdatedAt are assigned here.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job id required")
	}
	if _, ok := statusSet[job.Status]; !ok {
		return fmt.Errorf("unknown status %q", job.Status)
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	pagesJSON, err := encodePages(job.Pages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO scrape_jobs (
            id, source_url, mode, status, pages_json, final_context,
            error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.SourceURL,
		string(job.Mode),
		job.Status,
		nullableString(pagesJSON),
		nullableString(job.FinalContext),
		nullableString(job.ErrorMessage),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "insert job", job.ID, err)
	}
	return nil
}

// UpsertJob persists changes to an existing job, validating the status
// transition against the current row, or inserts the job when absent.
// Terminal jobs reject every further mutation.
func (s *Store) UpsertJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	existing, err := s.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.CreateJob(ctx, job)
	}
	if existing.Status.IsTerminal() {
		return services.Wrap(services.ErrTerminal, "store", "update job", string(existing.Status), nil)
	}
	if !CanTransition(existing.Status, job.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, existing.Status, job.Status)
	}

	job.UpdatedAt = time.Now().UTC()
	pagesJSON, err := encodePages(job.Pages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE scrape_jobs
         SET source_url = ?, mode = ?, status = ?, pages_json = ?,
             final_context = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		job.SourceURL,
		string(job.Mode),
		job.Status,
		nullableString(pagesJSON),
		nullableString(job.FinalContext),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "update job", job.ID, err)
	}
	return nil
}

// GetJob fetches a job by identifier. Returns (nil, nil) when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scrape_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "get job", id, err)
	}
	return job, nil
}

// GetJobs fetches jobs for the given ids, skipping ids with no row.
func (s *Store) GetJobs(ctx context.Context, ids []string) ([]*Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs WHERE id IN (`+placeholders+`) ORDER BY created_at`,
		args...,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "get jobs", "", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListJobs returns jobs filtered by status set (or all jobs when no status
// is provided), ordered by creation time.
func (s *Store) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM scrape_jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "list jobs", "", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ClearJobs removes all jobs. Destructive reset used by debugging/testing.
func (s *Store) ClearJobs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scrape_jobs`)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "clear jobs", "", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM scrape_jobs GROUP BY status`)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "job stats", "", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusQueued:
			health.Queued += count
		case status == StatusCompleted:
			health.Completed += count
		case status == StatusError:
			health.Errored += count
		case status.IsProcessing():
			health.Processing += count
		}
	}
	return health, nil
}

// MarkStaleProcessing moves non-terminal jobs whose last update predates the
// cutoff into the error state. There is no retry: an interrupted job must be
// resubmitted.
func (s *Store) MarkStaleProcessing(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, error_message = ?, updated_at = ?
         WHERE status IN (?, ?, ?, ?) AND updated_at < ?`,
		StatusError,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusQueued,
		StatusMapping,
		StatusScraping,
		StatusSummarizing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "mark stale jobs", "", err)
	}
	return res.RowsAffected()
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		sourceURL    string
		mode         sql.NullString
		statusStr    string
		pagesJSON    sql.NullString
		finalContext sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&sourceURL,
		&mode,
		&statusStr,
		&pagesJSON,
		&finalContext,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		SourceURL:    sourceURL,
		Mode:         Mode(mode.String),
		Status:       Status(statusStr),
		FinalContext: finalContext.String,
		ErrorMessage: errorMessage.String,
	}
	if pagesJSON.Valid && pagesJSON.String != "" {
		if err := json.Unmarshal([]byte(pagesJSON.String), &job.Pages); err != nil {
			return nil, fmt.Errorf("decode pages for job %s: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func encodePages(pages []Page) (string, error) {
	if len(pages) == 0 {
		return "", nil
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return "", fmt.Errorf("encode pages: %w", err)
	}
	return string(data), nil
}

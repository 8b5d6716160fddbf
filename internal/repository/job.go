package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
)

const jobColumns = `
	id, source_id, status, triggered_by, started_at, completed_at,
	sessions_found, error_message, error_kind, log_lines, created_at`

type JobRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewJobRepository(db *sql.DB, log logger.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: log,
	}
}

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.CreatedAt = time.Now()

	query := `
		INSERT INTO jobs (
			id, source_id, status, triggered_by, started_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		job.ID,
		job.SourceID,
		job.Status,
		job.TriggeredBy,
		job.StartedAt,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

// MarkRunning transitions a pending job to running. The status predicate
// keeps terminal jobs immutable at the database level.
func (r *JobRepository) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	query := `UPDATE jobs SET status = $2, started_at = $3 WHERE id = $1 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, jobID, models.JobRunning, startedAt, models.JobPending)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("job %s is not pending: %w", jobID, ErrNotFound)
	}

	return nil
}

// Finish applies a terminal job outcome atomically: the job row, the
// source's health snapshot, the lease release, and the session upserts all
// commit together. A reader can never observe the job as terminal without
// its catalog rows.
func (r *JobRepository) Finish(
	ctx context.Context,
	job *models.Job,
	health *models.Health,
	sessions []*models.CampSession,
) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("failed to rollback transaction",
					logger.Error(rbErr),
				)
			}
		}
	}()

	jobQuery := `
		UPDATE jobs
		SET status = $2, completed_at = $3, sessions_found = $4,
		    error_message = $5, error_kind = $6, log_lines = $7
		WHERE id = $1 AND status = $8
	`
	result, err := tx.ExecContext(ctx,
		jobQuery,
		job.ID,
		job.Status,
		job.CompletedAt,
		job.SessionsFound,
		job.ErrorMessage,
		job.ErrorKind,
		job.LogLines,
		models.JobRunning,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = fmt.Errorf("job %s is not running: %w", job.ID, ErrNotFound)
		return err
	}

	healthQuery := `
		UPDATE sources
		SET total_runs = $2, success_count = $3, consecutive_failures = $4,
		    success_rate = $5, last_success_at = $6, last_failure_at = $7,
		    last_error = $8, needs_regeneration = $9,
		    running_job_id = NULL, updated_at = $10
		WHERE id = $1
	`
	if _, err = tx.ExecContext(ctx,
		healthQuery,
		job.SourceID,
		health.TotalRuns,
		health.SuccessCount,
		health.ConsecutiveFailures,
		health.SuccessRate,
		health.LastSuccessAt,
		health.LastFailureAt,
		health.LastError,
		health.NeedsRegeneration,
		time.Now(),
	); err != nil {
		return fmt.Errorf("update source health: %w", err)
	}

	for _, session := range sessions {
		if err = upsertSession(ctx, tx, session); err != nil {
			return fmt.Errorf("upsert session %q: %w", session.Name, err)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return err
	}

	return nil
}

// JobListFilter holds query params for List.
type JobListFilter struct {
	SourceID string
	Status   models.JobStatus
	Limit    int
}

func (r *JobRepository) List(ctx context.Context, filter JobListFilter) ([]models.Job, error) {
	query := `SELECT` + jobColumns + ` FROM jobs WHERE 1=1`
	args := make([]any, 0)

	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		query += fmt.Sprintf(" AND source_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.Job, 0)
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, *job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate jobs: %w", rowsErr)
	}

	return jobs, nil
}

// ListRunningOlderThan returns running jobs that started before the cutoff.
// The timeout sweeper force-fails them.
func (r *JobRepository) ListRunningOlderThan(ctx context.Context, cutoff time.Time) ([]models.Job, error) {
	query := `SELECT` + jobColumns + ` FROM jobs
		WHERE status = $1 AND started_at < $2
		ORDER BY started_at`

	rows, err := r.db.QueryContext(ctx, query, models.JobRunning, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.Job, 0)
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, *job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate stale jobs: %w", rowsErr)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.ID,
		&job.SourceID,
		&job.Status,
		&job.TriggeredBy,
		&job.StartedAt,
		&job.CompletedAt,
		&job.SessionsFound,
		&job.ErrorMessage,
		&job.ErrorKind,
		&job.LogLines,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// upsertSession merges a validated record into the catalog. The conflict key
// (source_id, name, coalesced start_date) makes job re-runs refresh rows
// instead of duplicating them; coalescing keeps undated sessions in the key,
// since NULLs never conflict with each other.
func upsertSession(ctx context.Context, tx *sql.Tx, session *models.CampSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO camp_sessions (
			id, source_id, organization_id, location_id, name,
			start_date, end_date, raw_dates, start_time, end_time,
			price_cents, age_min, age_max, grade_min, grade_max,
			location_text, registration_url, image_urls,
			completeness_score, is_complete, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23
		)
		ON CONFLICT (source_id, name, coalesce(start_date, '0001-01-01'::date)) DO UPDATE SET
			end_date = EXCLUDED.end_date,
			raw_dates = EXCLUDED.raw_dates,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			price_cents = EXCLUDED.price_cents,
			age_min = EXCLUDED.age_min,
			age_max = EXCLUDED.age_max,
			grade_min = EXCLUDED.grade_min,
			grade_max = EXCLUDED.grade_max,
			location_text = EXCLUDED.location_text,
			registration_url = EXCLUDED.registration_url,
			image_urls = EXCLUDED.image_urls,
			completeness_score = EXCLUDED.completeness_score,
			is_complete = EXCLUDED.is_complete,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := tx.QueryRowContext(ctx,
		query,
		session.ID,
		session.SourceID,
		session.OrganizationID,
		session.LocationID,
		session.Name,
		session.StartDate,
		session.EndDate,
		session.RawDates,
		session.StartTime,
		session.EndTime,
		session.PriceCents,
		session.AgeMin,
		session.AgeMax,
		session.GradeMin,
		session.GradeMax,
		session.LocationText,
		session.RegistrationURL,
		session.ImageURLs,
		session.CompletenessScore,
		session.IsComplete,
		session.Active,
		session.CreatedAt,
		session.UpdatedAt,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

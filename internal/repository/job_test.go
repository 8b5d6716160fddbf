//nolint:testpackage // Testing internal repository requires same package access
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
)

func TestJobRepository_Create(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewJobRepository(db, logger.NewNopLogger())
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"src-1",
			models.JobRunning,
			"manual",
			sqlmock.AnyArg(), // started_at
			sqlmock.AnyArg(), // created_at
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	job := &models.Job{
		SourceID:    "src-1",
		Status:      models.JobRunning,
		TriggeredBy: "manual",
		StartedAt:   &now,
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Errorf("Create() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

func TestJobRepository_MarkRunning_NotPending(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewJobRepository(db, logger.NewNopLogger())

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", models.JobRunning, sqlmock.AnyArg(), models.JobPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRunning(context.Background(), "job-1", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRunning() error = %v, want ErrNotFound", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

// Finish must commit the job row, the health snapshot, the lease release,
// and the session upserts as one transaction.
func TestJobRepository_Finish(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewJobRepository(db, logger.NewNopLogger())
	ctx := context.Background()

	completedAt := time.Now()
	job := &models.Job{
		ID:            "job-1",
		SourceID:      "src-1",
		Status:        models.JobCompleted,
		CompletedAt:   &completedAt,
		SessionsFound: 1,
	}
	health := &models.Health{
		TotalRuns:     10,
		SuccessCount:  9,
		SuccessRate:   0.9,
		LastSuccessAt: &completedAt,
	}
	sessions := []*models.CampSession{
		{SourceID: "src-1", Name: "Robotics Camp", Active: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", models.JobCompleted, sqlmock.AnyArg(), 1,
			"", models.ErrorKind(""), sqlmock.AnyArg(), models.JobRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sources").
		WithArgs("src-1", 10, 9, 0, 0.9,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO camp_sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("session-1"))
	mock.ExpectCommit()

	if err := repo.Finish(ctx, job, health, sessions); err != nil {
		t.Errorf("Finish() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

// Sessions without a start date still hit the coalesced merge key, so a
// re-run updates the existing row instead of inserting a duplicate.
func TestJobRepository_Finish_UndatedSessionUsesCoalescedMergeKey(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewJobRepository(db, logger.NewNopLogger())
	ctx := context.Background()

	completedAt := time.Now()
	job := &models.Job{
		ID:            "job-1",
		SourceID:      "src-1",
		Status:        models.JobCompleted,
		CompletedAt:   &completedAt,
		SessionsFound: 1,
	}
	health := &models.Health{
		TotalRuns:     4,
		SuccessCount:  4,
		SuccessRate:   1.0,
		LastSuccessAt: &completedAt,
	}
	sessions := []*models.CampSession{
		{SourceID: "src-1", Name: "Drop-In Art Camp", RawDates: "dates TBD", Active: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sources").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`ON CONFLICT \(source_id, name, coalesce\(start_date, '0001-01-01'::date\)\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("session-1"))
	mock.ExpectCommit()

	if err := repo.Finish(ctx, job, health, sessions); err != nil {
		t.Errorf("Finish() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

func TestJobRepository_Finish_AlreadyTerminalRollsBack(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewJobRepository(db, logger.NewNopLogger())

	completedAt := time.Now()
	job := &models.Job{
		ID:          "job-1",
		SourceID:    "src-1",
		Status:      models.JobFailed,
		CompletedAt: &completedAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Finish(context.Background(), job, &models.Health{}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish() error = %v, want ErrNotFound", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

func TestJobRepository_List_FiltersBySourceAndStatus(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewJobRepository(db, logger.NewNopLogger())

	rows := sqlmock.NewRows([]string{
		"id", "source_id", "status", "triggered_by", "started_at",
		"completed_at", "sessions_found", "error_message", "error_kind",
		"log_lines", "created_at",
	}).AddRow(
		"job-1", "src-1", "completed", "manual", time.Now(),
		time.Now(), 3, "", "", nil, time.Now(),
	)

	mock.ExpectQuery("SELECT").
		WithArgs("src-1", models.JobCompleted, 20).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background(), JobListFilter{
		SourceID: "src-1",
		Status:   models.JobCompleted,
		Limit:    20,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("List() returned %d jobs, want 1", len(jobs))
	}
	if jobs[0].ID != "job-1" {
		t.Errorf("List() job ID = %s, want job-1", jobs[0].ID)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

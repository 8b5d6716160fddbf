package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/camphubhq/pipeline/internal/events"
	"github.com/camphubhq/pipeline/internal/health"
	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
	"github.com/camphubhq/pipeline/internal/repository"
	"github.com/camphubhq/pipeline/internal/validation"
)

// ErrJobTerminal is returned when a caller tries to mutate a completed or
// failed job.
var ErrJobTerminal = errors.New("job is already terminal")

// JobStore is the persistence surface the service needs for jobs.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error
	Finish(ctx context.Context, job *models.Job, h *models.Health, sessions []*models.CampSession) error
	List(ctx context.Context, filter repository.JobListFilter) ([]models.Job, error)
	ListRunningOlderThan(ctx context.Context, cutoff time.Time) ([]models.Job, error)
}

// SourceStore is the persistence surface the service needs for sources.
type SourceStore interface {
	GetByID(ctx context.Context, id string) (*models.Source, error)
	ClaimRunningJob(ctx context.Context, sourceID, jobID string) error
	ReleaseRunningJob(ctx context.Context, sourceID string) error
}

// Publisher is the subset of the event publisher the service uses.
type Publisher interface {
	PublishAsync(event events.Event)
}

// Service coordinates the job lifecycle. The extraction itself happens
// outside this process; SubmitResult is the collaborator's sole callback.
type Service struct {
	jobs      JobStore
	sources   SourceStore
	publisher Publisher
	logger    logger.Logger
}

func NewService(jobs JobStore, sources SourceStore, publisher Publisher, log logger.Logger) *Service {
	return &Service{
		jobs:      jobs,
		sources:   sources,
		publisher: publisher,
		logger:    log,
	}
}

// Trigger creates and starts a job against a source. Exactly one job may be
// running per source; a losing trigger returns
// repository.ErrRunningJobConflict so the caller can distinguish "already in
// progress" from "accepted".
func (s *Service) Trigger(ctx context.Context, sourceID, triggeredBy string) (*models.Job, error) {
	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	jobID := uuid.New().String()
	if claimErr := s.sources.ClaimRunningJob(ctx, source.ID, jobID); claimErr != nil {
		return nil, claimErr
	}

	job := &models.Job{
		ID:          jobID,
		SourceID:    source.ID,
		Status:      models.JobPending,
		TriggeredBy: triggeredBy,
	}
	if createErr := s.jobs.Create(ctx, job); createErr != nil {
		s.releaseLease(ctx, source.ID)
		return nil, fmt.Errorf("create job: %w", createErr)
	}

	if transitionErr := ValidateTransition(job.Status, models.JobRunning); transitionErr != nil {
		s.releaseLease(ctx, source.ID)
		return nil, transitionErr
	}
	startedAt := time.Now()
	if runErr := s.jobs.MarkRunning(ctx, job.ID, startedAt); runErr != nil {
		s.releaseLease(ctx, source.ID)
		return nil, fmt.Errorf("start job: %w", runErr)
	}
	job.Status = models.JobRunning
	job.StartedAt = &startedAt

	s.logger.Info("Job triggered",
		logger.String("job_id", job.ID),
		logger.String("source_id", source.ID),
		logger.String("triggered_by", triggeredBy),
	)

	return job, nil
}

func (s *Service) releaseLease(ctx context.Context, sourceID string) {
	if err := s.sources.ReleaseRunningJob(ctx, sourceID); err != nil {
		s.logger.Error("Failed to release running-job lease",
			logger.String("source_id", sourceID),
			logger.Error(err),
		)
	}
}

// Result is the extraction collaborator's terminal report for a job.
// Either Records (success, possibly empty) or Error is set.
type Result struct {
	Records  []models.ExtractedRecord
	Error    string
	Kind     models.ErrorKind
	LogLines []string
}

// Failed reports whether the result is an extraction failure.
func (r Result) Failed() bool {
	return r.Error != ""
}

// SubmitResult applies a terminal outcome to a running job: validation,
// catalog upserts, the job row, and the source health update commit in one
// transaction. A job with zero extracted records still completes; absence of
// sessions is a valid, if unhelpful, outcome.
func (s *Service) SubmitResult(ctx context.Context, jobID string, result Result) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobTerminal)
	}

	source, err := s.sources.GetByID(ctx, job.SourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	if result.Failed() {
		return s.finishFailed(ctx, job, source, result)
	}
	return s.finishCompleted(ctx, job, source, result)
}

func (s *Service) finishCompleted(
	ctx context.Context,
	job *models.Job,
	source *models.Source,
	result Result,
) (*models.Job, error) {
	if err := ValidateTransition(job.Status, models.JobCompleted); err != nil {
		return nil, err
	}

	now := time.Now()
	sessions := make([]*models.CampSession, 0, len(result.Records))
	scoreTotal := 0
	for i := range result.Records {
		session, validation := buildSession(source, result.Records[i])
		scoreTotal += validation.Score
		sessions = append(sessions, session)
	}

	job.Status = models.JobCompleted
	job.CompletedAt = &now
	job.SessionsFound = len(result.Records)
	job.LogLines = result.LogLines

	h := source.Health
	health.RecordOutcome(&h, health.Outcome{Success: true, At: now})

	if err := s.jobs.Finish(ctx, job, &h, sessions); err != nil {
		return nil, err
	}

	avgScore := 0
	if len(sessions) > 0 {
		avgScore = scoreTotal / len(sessions)
	}
	s.logger.Info("Job completed",
		logger.String("job_id", job.ID),
		logger.String("source_id", source.ID),
		logger.Int("sessions_found", job.SessionsFound),
		logger.Int("avg_completeness", avgScore),
	)

	s.publishOutcome(events.JobCompleted, job, h)
	return job, nil
}

func (s *Service) finishFailed(
	ctx context.Context,
	job *models.Job,
	source *models.Source,
	result Result,
) (*models.Job, error) {
	if err := ValidateTransition(job.Status, models.JobFailed); err != nil {
		return nil, err
	}

	kind := result.Kind
	if kind == "" {
		kind = models.ErrorKindTransient
	}

	now := time.Now()
	job.Status = models.JobFailed
	job.CompletedAt = &now
	// Raw collaborator errors keep their diagnostic value; never re-wrap.
	job.ErrorMessage = result.Error
	job.ErrorKind = kind
	job.LogLines = result.LogLines

	h := source.Health
	health.RecordOutcome(&h, health.Outcome{
		Success:    false,
		Error:      result.Error,
		Structural: kind.IsStructural(),
		At:         now,
	})

	if err := s.jobs.Finish(ctx, job, &h, nil); err != nil {
		return nil, err
	}

	s.logger.Warn("Job failed",
		logger.String("job_id", job.ID),
		logger.String("source_id", source.ID),
		logger.String("error_kind", string(kind)),
		logger.String("error", result.Error),
	)

	s.publishOutcome(events.JobFailed, job, h)
	if health.Classify(h) == health.ClassCritical && health.Classify(source.Health) != health.ClassCritical {
		s.publisher.PublishAsync(events.Event{
			EventType: events.SourceHealthCritical,
			EntityID:  source.ID,
		})
	}
	return job, nil
}

// Cancel forces a running job to failed with a cancellation-classified
// error. Health treats cancellations as transient.
func (s *Service) Cancel(ctx context.Context, jobID, cancelledBy string) (*models.Job, error) {
	return s.SubmitResult(ctx, jobID, Result{
		Error: fmt.Sprintf("cancelled by %s", cancelledBy),
		Kind:  models.ErrorKindCancelled,
	})
}

// SweepTimeouts fails every running job that started before now-timeout.
// Returns the number of jobs swept.
func (s *Service) SweepTimeouts(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-timeout)
	stale, err := s.jobs.ListRunningOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stale {
		_, submitErr := s.SubmitResult(ctx, stale[i].ID, Result{
			Error: fmt.Sprintf("job exceeded %s running deadline", timeout),
			Kind:  models.ErrorKindTimeout,
		})
		if submitErr != nil {
			s.logger.Error("Failed to time out stale job",
				logger.String("job_id", stale[i].ID),
				logger.Error(submitErr),
			)
			continue
		}
		swept++
	}

	return swept, nil
}

// GetByID returns one job.
func (s *Service) GetByID(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// List returns jobs matching the filter.
func (s *Service) List(ctx context.Context, filter repository.JobListFilter) ([]models.Job, error) {
	return s.jobs.List(ctx, filter)
}

func (s *Service) publishOutcome(eventType events.EventType, job *models.Job, h models.Health) {
	s.publisher.PublishAsync(events.Event{
		EventType: eventType,
		EntityID:  job.ID,
		Payload: events.JobOutcomePayload{
			SourceID:      job.SourceID,
			SessionsFound: job.SessionsFound,
			ErrorMessage:  job.ErrorMessage,
			ErrorKind:     string(job.ErrorKind),
			HealthClass:   string(health.Classify(h)),
		},
	})
}

// buildSession converts a validated record into a catalog row. Validation
// failures never abort the job; incomplete sessions land with their score
// and missing fields reflected on the row.
func buildSession(source *models.Source, rec models.ExtractedRecord) (*models.CampSession, models.Validation) {
	parsed, v := validation.ParseRecord(rec)

	session := &models.CampSession{
		SourceID:          source.ID,
		OrganizationID:    source.OrganizationID,
		Name:              rec.Name,
		StartDate:         parsed.StartDate,
		EndDate:           parsed.EndDate,
		RawDates:          rec.Dates,
		StartTime:         parsed.StartTime,
		EndTime:           parsed.EndTime,
		PriceCents:        parsed.PriceCents,
		AgeMin:            parsed.AgeMin,
		AgeMax:            parsed.AgeMax,
		GradeMin:          parsed.GradeMin,
		GradeMax:          parsed.GradeMax,
		LocationText:      rec.LocationText,
		RegistrationURL:   parsed.RegistrationURL,
		ImageURLs:         rec.ImageURLs,
		CompletenessScore: v.Score,
		IsComplete:        v.IsComplete,
		Active:            true,
	}
	return session, v
}

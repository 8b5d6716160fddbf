package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
)

// sourceColumns is the column list shared by every source SELECT.
const sourceColumns = `
	id, name, url, additional_urls, organization_id, active, parsing_notes,
	needs_rescan, rescan_reason, running_job_id,
	total_runs, success_count, consecutive_failures, success_rate,
	last_success_at, last_failure_at, last_error, needs_regeneration,
	created_at, updated_at`

type SourceRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSourceRepository(db *sql.DB, log logger.Logger) *SourceRepository {
	return &SourceRepository{
		db:     db,
		logger: log,
	}
}

func (r *SourceRepository) Create(ctx context.Context, source *models.Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	source.CreatedAt = time.Now()
	source.UpdatedAt = source.CreatedAt

	query := `
		INSERT INTO sources (
			id, name, url, additional_urls, organization_id, active,
			parsing_notes, needs_rescan, rescan_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		source.ID,
		source.Name,
		source.URL,
		nullableURLs(source.AdditionalURLs),
		source.OrganizationID,
		source.Active,
		source.ParsingNotes,
		source.NeedsRescan,
		source.RescanReason,
		source.CreatedAt,
		source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	query := `SELECT` + sourceColumns + ` FROM sources WHERE id = $1`

	source, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}
	return source, nil
}

func (r *SourceRepository) Update(ctx context.Context, source *models.Source) error {
	source.UpdatedAt = time.Now()

	query := `
		UPDATE sources
		SET name = $2, url = $3, additional_urls = $4, organization_id = $5,
		    active = $6, parsing_notes = $7, needs_rescan = $8,
		    rescan_reason = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx,
		query,
		source.ID,
		source.Name,
		source.URL,
		nullableURLs(source.AdditionalURLs),
		source.OrganizationID,
		source.Active,
		source.ParsingNotes,
		source.NeedsRescan,
		source.RescanReason,
		source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("source %s: %w", source.ID, ErrNotFound)
	}

	return nil
}

// Delete removes a source. By default sessions it produced survive with
// source_id cleared (the FK unlinks them on delete); cascade removes the
// sessions as well.
func (r *SourceRepository) Delete(ctx context.Context, id string, cascade bool) error {
	if cascade {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM camp_sessions WHERE source_id = $1`, id,
		); err != nil {
			return fmt.Errorf("delete sessions for source: %w", err)
		}
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("source %s: %w", id, ErrNotFound)
	}

	return nil
}

// ClaimRunningJob takes the per-source lease via compare-and-swap. Exactly
// one caller wins under concurrent triggers; losers get
// ErrRunningJobConflict.
func (r *SourceRepository) ClaimRunningJob(ctx context.Context, sourceID, jobID string) error {
	query := `
		UPDATE sources
		SET running_job_id = $2, updated_at = $3
		WHERE id = $1 AND running_job_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, sourceID, jobID, time.Now())
	if err != nil {
		return fmt.Errorf("claim running job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRunningJobConflict
	}

	return nil
}

// ReleaseRunningJob drops the lease without a job outcome. Used when job
// creation fails after the claim succeeded.
func (r *SourceRepository) ReleaseRunningJob(ctx context.Context, sourceID string) error {
	query := `UPDATE sources SET running_job_id = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sourceID, time.Now()); err != nil {
		return fmt.Errorf("release running job: %w", err)
	}
	return nil
}

// ClearRegeneration is the operator action that resets the sticky
// needs_regeneration flag.
func (r *SourceRepository) ClearRegeneration(ctx context.Context, sourceID string) error {
	query := `UPDATE sources SET needs_regeneration = false, updated_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, sourceID, time.Now())
	if err != nil {
		return fmt.Errorf("clear regeneration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}

	return nil
}

// ExistsByDomain reports whether a managed source already covers the
// normalized domain. Discovery uses this to short-circuit duplicates.
func (r *SourceRepository) ExistsByDomain(ctx context.Context, domain string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sources
			WHERE lower(regexp_replace(url, '^https?://(www\.)?([^/]+).*$', '\2')) = $1
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, domain).Scan(&exists); err != nil {
		return false, fmt.Errorf("check source domain: %w", err)
	}
	return exists, nil
}

// SourceFilter selects a display slice of sources.
type SourceFilter string

const (
	FilterAll     SourceFilter = "all"
	FilterActive  SourceFilter = "active"
	FilterFailing SourceFilter = "failing"
	FilterNoData  SourceFilter = "nodata"
)

// IsValid reports whether f is a recognised filter.
func (f SourceFilter) IsValid() bool {
	switch f {
	case FilterAll, FilterActive, FilterFailing, FilterNoData:
		return true
	}
	return false
}

// FilterCounts holds per-filter source counts for the list response.
type FilterCounts struct {
	All     int `json:"all"`
	Active  int `json:"active"`
	Failing int `json:"failing"`
	NoData  int `json:"nodata"`
}

// ListFiltered returns sources matching the filter plus the counts for every
// filter. failingThreshold is the consecutive-failure cutoff shared with
// health classification; city optionally restricts to organizations serving
// that city.
func (r *SourceRepository) ListFiltered(
	ctx context.Context,
	filter SourceFilter,
	failingThreshold int,
	city string,
	limit int,
) ([]models.Source, *FilterCounts, error) {
	args := make([]any, 0, 3)
	cityClause := ""
	if city != "" {
		args = append(args, city)
		cityClause = ` AND s.organization_id IN (
			SELECT o.id FROM organizations o WHERE o.cities ? $` + strconv.Itoa(len(args)) + `)`
	}

	var filterClause string
	switch filter {
	case FilterActive:
		filterClause = ` AND s.active`
	case FilterFailing:
		args = append(args, failingThreshold)
		filterClause = ` AND s.consecutive_failures >= $` + strconv.Itoa(len(args))
	case FilterNoData:
		filterClause = ` AND NOT EXISTS (
			SELECT 1 FROM camp_sessions cs WHERE cs.source_id = s.id AND cs.active)`
	default:
		// FilterAll: no extra clause.
	}

	args = append(args, limit)
	limitPlaceholder := strconv.Itoa(len(args))

	// filterClause and cityClause are assembled from fixed fragments; all
	// values travel as parameters.
	query := `SELECT` + sourceColumns + `
		FROM sources s
		WHERE 1=1` + cityClause + filterClause + `
		ORDER BY s.name
		LIMIT $` + limitPlaceholder

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	sources := make([]models.Source, 0)
	for rows.Next() {
		source, scanErr := scanSource(rows)
		if scanErr != nil {
			return nil, nil, fmt.Errorf("scan source: %w", scanErr)
		}
		sources = append(sources, *source)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, nil, fmt.Errorf("iterate sources: %w", rowsErr)
	}

	counts, err := r.countsByFilter(ctx, failingThreshold, city)
	if err != nil {
		return nil, nil, err
	}

	return sources, counts, nil
}

func (r *SourceRepository) countsByFilter(ctx context.Context, failingThreshold int, city string) (*FilterCounts, error) {
	args := []any{failingThreshold}
	cityClause := ""
	if city != "" {
		args = append(args, city)
		cityClause = ` WHERE s.organization_id IN (
			SELECT o.id FROM organizations o WHERE o.cities ? $2)`
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE s.active),
			COUNT(*) FILTER (WHERE s.consecutive_failures >= $1),
			COUNT(*) FILTER (WHERE NOT EXISTS (
				SELECT 1 FROM camp_sessions cs WHERE cs.source_id = s.id AND cs.active))
		FROM sources s` + cityClause

	var counts FilterCounts
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&counts.All,
		&counts.Active,
		&counts.Failing,
		&counts.NoData,
	)
	if err != nil {
		return nil, fmt.Errorf("count sources by filter: %w", err)
	}
	return &counts, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var source models.Source
	err := row.Scan(
		&source.ID,
		&source.Name,
		&source.URL,
		&source.AdditionalURLs,
		&source.OrganizationID,
		&source.Active,
		&source.ParsingNotes,
		&source.NeedsRescan,
		&source.RescanReason,
		&source.RunningJobID,
		&source.Health.TotalRuns,
		&source.Health.SuccessCount,
		&source.Health.ConsecutiveFailures,
		&source.Health.SuccessRate,
		&source.Health.LastSuccessAt,
		&source.Health.LastFailureAt,
		&source.Health.LastError,
		&source.Health.NeedsRegeneration,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &source, nil
}

// nullableURLs maps an empty list to NULL so the Valuer's empty-list error
// never reaches the driver.
func nullableURLs(urls models.AdditionalURLs) any {
	if len(urls) == 0 {
		return nil
	}
	return urls
}

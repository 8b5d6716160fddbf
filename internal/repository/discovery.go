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

const discoveryColumns = `
	id, url, domain, title, snippet, discovery_query, analysis, status,
	reviewed_by, reviewed_at, created_at, updated_at`

type DiscoveryRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDiscoveryRepository(db *sql.DB, log logger.Logger) *DiscoveryRepository {
	return &DiscoveryRepository{
		db:     db,
		logger: log,
	}
}

func (r *DiscoveryRepository) Create(ctx context.Context, ds *models.DiscoveredSource) error {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	ds.CreatedAt = time.Now()
	ds.UpdatedAt = ds.CreatedAt

	query := `
		INSERT INTO discovered_sources (
			id, url, domain, title, snippet, discovery_query, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		ds.ID,
		ds.URL,
		ds.Domain,
		ds.Title,
		ds.Snippet,
		ds.DiscoveryQuery,
		ds.Status,
		ds.CreatedAt,
		ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert discovered source: %w", err)
	}

	return nil
}

func (r *DiscoveryRepository) GetByID(ctx context.Context, id string) (*models.DiscoveredSource, error) {
	query := `SELECT` + discoveryColumns + ` FROM discovered_sources WHERE id = $1`

	ds, err := scanDiscovery(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("discovered source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query discovered source: %w", err)
	}
	return ds, nil
}

// UpdateStatus moves a discovered source to a new status, guarded by the
// expected current status so concurrent reviews cannot double-apply.
func (r *DiscoveryRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to models.DiscoveryStatus,
	reviewedBy string,
) error {
	query := `
		UPDATE discovered_sources
		SET status = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $6
		WHERE id = $1 AND status = $2
	`

	// reviewed_at stays NULL on machine transitions; updated_at is NOT NULL
	// and always advances.
	now := time.Now()
	var reviewedAt any
	if reviewedBy != "" {
		reviewedAt = now
	}

	result, err := r.db.ExecContext(ctx, query, id, from, to, reviewedBy, reviewedAt, now)
	if err != nil {
		return fmt.Errorf("update discovery status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("discovered source %s is not %s: %w", id, from, ErrNotFound)
	}

	return nil
}

// SaveAnalysis stores the AI classification and the status it produced.
func (r *DiscoveryRepository) SaveAnalysis(
	ctx context.Context,
	id string,
	analysis *models.SiteAnalysis,
	status models.DiscoveryStatus,
) error {
	query := `
		UPDATE discovered_sources
		SET analysis = $2, status = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, id, analysis, status, time.Now(), models.DiscoveryPendingAnalysis)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("discovered source %s is not awaiting analysis: %w", id, ErrNotFound)
	}

	return nil
}

func (r *DiscoveryRepository) List(ctx context.Context, status models.DiscoveryStatus, limit int) ([]models.DiscoveredSource, error) {
	query := `SELECT` + discoveryColumns + ` FROM discovered_sources WHERE 1=1`
	args := make([]any, 0)

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query discovered sources: %w", err)
	}
	defer rows.Close()

	items := make([]models.DiscoveredSource, 0)
	for rows.Next() {
		ds, scanErr := scanDiscovery(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan discovered source: %w", scanErr)
		}
		items = append(items, *ds)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate discovered sources: %w", rowsErr)
	}

	return items, nil
}

// ExistsNonTerminalForDomain reports whether another discovery for the same
// domain is already in flight.
func (r *DiscoveryRepository) ExistsNonTerminalForDomain(ctx context.Context, domain string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM discovered_sources
			WHERE domain = $1 AND status IN ($2, $3, $4)
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query,
		domain,
		models.DiscoveryPendingAnalysis,
		models.DiscoveryPendingReview,
		models.DiscoveryApproved,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check discovery domain: %w", err)
	}
	return exists, nil
}

func scanDiscovery(row rowScanner) (*models.DiscoveredSource, error) {
	var ds models.DiscoveredSource
	var analysisJSON []byte

	err := row.Scan(
		&ds.ID,
		&ds.URL,
		&ds.Domain,
		&ds.Title,
		&ds.Snippet,
		&ds.DiscoveryQuery,
		&analysisJSON,
		&ds.Status,
		&ds.ReviewedBy,
		&ds.ReviewedAt,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(analysisJSON) > 0 {
		var analysis models.SiteAnalysis
		if unmarshalErr := analysis.Scan(analysisJSON); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", unmarshalErr)
		}
		ds.Analysis = &analysis
	}
	return &ds, nil
}

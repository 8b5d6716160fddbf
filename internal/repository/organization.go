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

const organizationColumns = `
	id, name, slug, website, logo_url, cities, created_at, updated_at`

type OrganizationRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewOrganizationRepository(db *sql.DB, log logger.Logger) *OrganizationRepository {
	return &OrganizationRepository{
		db:     db,
		logger: log,
	}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if org.Slug == "" {
		org.Slug = models.Slugify(org.Name)
	}
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt

	query := `
		INSERT INTO organizations (
			id, name, slug, website, logo_url, cities, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		org.ID,
		org.Name,
		org.Slug,
		org.Website,
		org.LogoURL,
		org.Cities,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}

	return nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT` + organizationColumns + ` FROM organizations WHERE id = $1`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query organization: %w", err)
	}
	return org, nil
}

// GetByDomain finds the first organization whose website matches the
// normalized domain. Discovery promotion uses this to avoid creating a
// duplicate provider for an already-known domain.
func (r *OrganizationRepository) GetByDomain(ctx context.Context, domain string) (*models.Organization, error) {
	query := `SELECT` + organizationColumns + ` FROM organizations
		WHERE lower(regexp_replace(website, '^https?://(www\.)?([^/]+).*$', '\2')) = $1
		ORDER BY created_at
		LIMIT 1`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, domain))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization for domain %s: %w", domain, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query organization by domain: %w", err)
	}
	return org, nil
}

func (r *OrganizationRepository) List(ctx context.Context, limit int) ([]models.Organization, error) {
	query := `SELECT` + organizationColumns + ` FROM organizations ORDER BY name`
	args := make([]any, 0)
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]models.Organization, 0)
	for rows.Next() {
		org, scanErr := scanOrganization(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan organization: %w", scanErr)
		}
		orgs = append(orgs, *org)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate organizations: %w", rowsErr)
	}

	return orgs, nil
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Website,
		&org.LogoURL,
		&org.Cities,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
)

// DedupRepository provides the duplicate-group scans and merge transactions
// the deduplication engine runs on. Each merge is its own transaction so one
// group's failure never aborts the rest of a batch.
type DedupRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDedupRepository(db *sql.DB, log logger.Logger) *DedupRepository {
	return &DedupRepository{
		db:     db,
		logger: log,
	}
}

// ListOrganizationCandidates returns the members of up to limit duplicate
// groups, in creation order. Grouping happens in SQL over the whole table so
// duplicates created far apart still land in the same batch; singletons are
// never returned, so a pass that finds nothing means the table is clean. The
// key mirrors the engine's grouping: normalized website domain when present,
// normalized name otherwise. Creation order keeps survivor selection stable
// across re-runs.
func (r *DedupRepository) ListOrganizationCandidates(ctx context.Context, limit int) ([]models.Organization, error) {
	query := `
		WITH keyed AS (
			SELECT id,
				CASE
					WHEN website IS NOT NULL AND btrim(website) <> ''
					THEN 'domain:' || lower(regexp_replace(btrim(website), '^(https?://)?(www\.)?([^/:]+).*$', '\3'))
					ELSE 'name:' || lower(regexp_replace(btrim(name), '\s+', ' ', 'g'))
				END AS dup_key
			FROM organizations
		), dup_keys AS (
			SELECT dup_key FROM keyed
			GROUP BY dup_key
			HAVING count(*) > 1
			ORDER BY dup_key
			LIMIT $1
		)
		SELECT` + organizationColumns + ` FROM organizations
		WHERE id IN (
			SELECT k.id FROM keyed k
			JOIN dup_keys d ON d.dup_key = k.dup_key
		)
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query organization candidates: %w", err)
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

// ListLocationCandidates returns the members of up to limit duplicate
// groups, in creation order. Locations group by normalized name within their
// organization.
func (r *DedupRepository) ListLocationCandidates(ctx context.Context, limit int) ([]models.Location, error) {
	query := `
		WITH keyed AS (
			SELECT id,
				coalesce(organization_id::text, '') || '|' ||
					lower(regexp_replace(btrim(name), '\s+', ' ', 'g')) AS dup_key
			FROM locations
		), dup_keys AS (
			SELECT dup_key FROM keyed
			GROUP BY dup_key
			HAVING count(*) > 1
			ORDER BY dup_key
			LIMIT $1
		)
		SELECT id, organization_id, name, address, latitude, longitude,
		       created_at, updated_at
		FROM locations
		WHERE id IN (
			SELECT k.id FROM keyed k
			JOIN dup_keys d ON d.dup_key = k.dup_key
		)
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query location candidates: %w", err)
	}
	defer rows.Close()

	locations := make([]models.Location, 0)
	for rows.Next() {
		var loc models.Location
		if scanErr := rows.Scan(
			&loc.ID,
			&loc.OrganizationID,
			&loc.Name,
			&loc.Address,
			&loc.Latitude,
			&loc.Longitude,
			&loc.CreatedAt,
			&loc.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan location: %w", scanErr)
		}
		locations = append(locations, loc)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate locations: %w", rowsErr)
	}

	return locations, nil
}

// MergeOrganizations repoints every reference from donor to survivor and
// deletes the donor, in one transaction. Re-running on an already-merged
// pair is a no-op failure: the donor no longer exists.
func (r *DedupRepository) MergeOrganizations(ctx context.Context, survivorID, donorID string) (err error) {
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

	repoints := []string{
		`UPDATE sources SET organization_id = $1 WHERE organization_id = $2`,
		`UPDATE locations SET organization_id = $1 WHERE organization_id = $2`,
		`UPDATE camp_sessions SET organization_id = $1 WHERE organization_id = $2`,
	}
	for _, query := range repoints {
		if _, err = tx.ExecContext(ctx, query, survivorID, donorID); err != nil {
			return fmt.Errorf("repoint organization references: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, donorID)
	if err != nil {
		return fmt.Errorf("delete donor organization: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = fmt.Errorf("organization %s: %w", donorID, ErrNotFound)
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return err
	}

	return nil
}

// MergeLocations repoints session references from donor to survivor and
// deletes the donor, in one transaction.
func (r *DedupRepository) MergeLocations(ctx context.Context, survivorID, donorID string) (err error) {
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

	if _, err = tx.ExecContext(ctx,
		`UPDATE camp_sessions SET location_id = $1 WHERE location_id = $2`,
		survivorID, donorID,
	); err != nil {
		return fmt.Errorf("repoint location references: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, donorID)
	if err != nil {
		return fmt.Errorf("delete donor location: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = fmt.Errorf("location %s: %w", donorID, ErrNotFound)
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return err
	}

	return nil
}

// ListBadLocations returns locations with a placeholder address ("TBD" or
// empty street) or placeholder coordinates, and no sessions referencing
// them. These are cleanup targets, not duplicates.
func (r *DedupRepository) ListBadLocations(
	ctx context.Context,
	placeholderLat, placeholderLng float64,
	limit int,
) ([]models.Location, error) {
	query := `
		SELECT l.id, l.organization_id, l.name, l.address, l.latitude,
		       l.longitude, l.created_at, l.updated_at
		FROM locations l
		WHERE (
			upper(trim(l.address)) = 'TBD'
			OR trim(l.address) = ''
			OR (l.latitude = $1 AND l.longitude = $2)
		)
		AND NOT EXISTS (
			SELECT 1 FROM camp_sessions cs WHERE cs.location_id = l.id
		)
		ORDER BY l.created_at, l.id
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, placeholderLat, placeholderLng, limit)
	if err != nil {
		return nil, fmt.Errorf("query bad locations: %w", err)
	}
	defer rows.Close()

	locations := make([]models.Location, 0)
	for rows.Next() {
		var loc models.Location
		if scanErr := rows.Scan(
			&loc.ID,
			&loc.OrganizationID,
			&loc.Name,
			&loc.Address,
			&loc.Latitude,
			&loc.Longitude,
			&loc.CreatedAt,
			&loc.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan location: %w", scanErr)
		}
		locations = append(locations, loc)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate bad locations: %w", rowsErr)
	}

	return locations, nil
}

// DeleteLocation removes a location outright. The session-count predicate
// is re-checked so a session linked between the scan and the delete keeps
// the location alive.
func (r *DedupRepository) DeleteLocation(ctx context.Context, id string) error {
	query := `
		DELETE FROM locations l
		WHERE l.id = $1
		AND NOT EXISTS (
			SELECT 1 FROM camp_sessions cs WHERE cs.location_id = l.id
		)`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("location %s: %w", id, ErrNotFound)
	}

	return nil
}

package dedup

import (
	"context"
	"fmt"

	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
)

// Kind selects which catalog entity a dedup pass operates on.
type Kind string

const (
	KindOrganizations Kind = "organizations"
	KindLocations     Kind = "locations"
)

// Placeholder coordinates written by scrapers that could not geocode an
// address. Locations pinned here with no sessions are cleanup targets.
const (
	PlaceholderLatitude  = 0.0
	PlaceholderLongitude = 0.0
)

// Store is the persistence surface for merge and cleanup passes.
type Store interface {
	ListOrganizationCandidates(ctx context.Context, limit int) ([]models.Organization, error)
	ListLocationCandidates(ctx context.Context, limit int) ([]models.Location, error)
	MergeOrganizations(ctx context.Context, survivorID, donorID string) error
	MergeLocations(ctx context.Context, survivorID, donorID string) error
	ListBadLocations(ctx context.Context, placeholderLat, placeholderLng float64, limit int) ([]models.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

// Result summarizes one bounded pass.
type Result struct {
	Kind     Kind `json:"kind"`
	Examined int  `json:"examined"`
	Merged   int  `json:"merged"`
	Failed   int  `json:"failed"`
	// Continue reports whether the pass hit the group limit and made
	// progress, meaning another pass may find more work.
	Continue bool `json:"continue"`
}

// CleanupResult summarizes one bad-location cleanup pass.
type CleanupResult struct {
	Examined int  `json:"examined"`
	Deleted  int  `json:"deleted"`
	Failed   int  `json:"failed"`
	Continue bool `json:"continue"`
}

// Engine merges duplicate organizations and locations in bounded batches.
// Each merge group is independent: a failed merge is logged and skipped, the
// rest of the batch proceeds. Passes are idempotent; a re-run over already
// merged data finds no groups and changes nothing.
type Engine struct {
	store     Store
	logger    logger.Logger
	batchSize int
}

func NewEngine(store Store, log logger.Logger, batchSize int) *Engine {
	return &Engine{
		store:     store,
		logger:    log,
		batchSize: batchSize,
	}
}

// RunBatch executes one bounded merge pass for the given kind. batchSize
// bounds the number of duplicate groups examined, not rows; a non-positive
// batchSize falls back to the engine default.
func (e *Engine) RunBatch(ctx context.Context, kind Kind, batchSize int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = e.batchSize
	}
	switch kind {
	case KindOrganizations:
		return e.runOrganizations(ctx, batchSize)
	case KindLocations:
		return e.runLocations(ctx, batchSize)
	default:
		return nil, fmt.Errorf("unknown dedup kind: %s", kind)
	}
}

func (e *Engine) runOrganizations(ctx context.Context, batchSize int) (*Result, error) {
	orgs, err := e.store.ListOrganizationCandidates(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list organization candidates: %w", err)
	}

	result := &Result{
		Kind:     KindOrganizations,
		Examined: len(orgs),
	}

	// Group key is the normalized website domain; organizations without a
	// usable website fall back to the normalized display name. The first
	// member of each group in creation order survives.
	survivors := make(map[string]string)
	for _, org := range orgs {
		key := organizationKey(&org)
		survivorID, seen := survivors[key]
		if !seen {
			survivors[key] = org.ID
			continue
		}

		if mergeErr := e.store.MergeOrganizations(ctx, survivorID, org.ID); mergeErr != nil {
			result.Failed++
			e.logger.Error("Organization merge failed",
				logger.String("survivor_id", survivorID),
				logger.String("donor_id", org.ID),
				logger.Error(mergeErr),
			)
			continue
		}
		result.Merged++
		e.logger.Info("Merged duplicate organization",
			logger.String("survivor_id", survivorID),
			logger.String("donor_id", org.ID),
			logger.String("group_key", key),
		)
	}

	// Stop when the group limit was not reached (no more groups exist) or
	// when a full pass merged nothing: re-scanning would return the same
	// failing groups.
	result.Continue = len(survivors) >= batchSize && result.Merged > 0

	return result, nil
}

func (e *Engine) runLocations(ctx context.Context, batchSize int) (*Result, error) {
	locations, err := e.store.ListLocationCandidates(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list location candidates: %w", err)
	}

	result := &Result{
		Kind:     KindLocations,
		Examined: len(locations),
	}

	// Locations group by normalized name scoped to their organization so
	// distinct organizations sharing a venue name never merge.
	survivors := make(map[string]string)
	for _, loc := range locations {
		key := locationKey(&loc)
		survivorID, seen := survivors[key]
		if !seen {
			survivors[key] = loc.ID
			continue
		}

		if mergeErr := e.store.MergeLocations(ctx, survivorID, loc.ID); mergeErr != nil {
			result.Failed++
			e.logger.Error("Location merge failed",
				logger.String("survivor_id", survivorID),
				logger.String("donor_id", loc.ID),
				logger.Error(mergeErr),
			)
			continue
		}
		result.Merged++
		e.logger.Info("Merged duplicate location",
			logger.String("survivor_id", survivorID),
			logger.String("donor_id", loc.ID),
			logger.String("group_key", key),
		)
	}

	result.Continue = len(survivors) >= batchSize && result.Merged > 0

	return result, nil
}

// CleanupBadLocations deletes locations with placeholder addresses or
// coordinates that no session references. A non-positive batchSize falls
// back to the engine default.
func (e *Engine) CleanupBadLocations(ctx context.Context, batchSize int) (*CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = e.batchSize
	}
	locations, err := e.store.ListBadLocations(ctx, PlaceholderLatitude, PlaceholderLongitude, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list bad locations: %w", err)
	}

	result := &CleanupResult{
		Examined: len(locations),
		Continue: len(locations) == batchSize,
	}

	for _, loc := range locations {
		if deleteErr := e.store.DeleteLocation(ctx, loc.ID); deleteErr != nil {
			result.Failed++
			e.logger.Error("Bad location delete failed",
				logger.String("location_id", loc.ID),
				logger.Error(deleteErr),
			)
			continue
		}
		result.Deleted++
	}

	if result.Deleted > 0 {
		e.logger.Info("Cleaned up bad locations",
			logger.Int("deleted", result.Deleted),
			logger.Int("examined", result.Examined),
		)
	}

	return result, nil
}

func organizationKey(org *models.Organization) string {
	if org.Website != "" {
		if domain := models.NormalizeDomain(org.Website); domain != "unknown" {
			return "domain:" + domain
		}
	}
	return "name:" + models.NormalizeName(org.Name)
}

func locationKey(loc *models.Location) string {
	orgID := ""
	if loc.OrganizationID != nil {
		orgID = *loc.OrganizationID
	}
	return orgID + "|" + models.NormalizeName(loc.Name)
}

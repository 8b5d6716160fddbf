package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/camphubhq/pipeline/internal/events"
	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
	"github.com/camphubhq/pipeline/internal/repository"
)

// Decision is an operator review verdict.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ErrNotReviewable is returned when a review decision arrives for an item
// that is not awaiting one.
var ErrNotReviewable = errors.New("discovered source is not awaiting review")

// DiscoveryStore is the persistence surface for the review queue.
type DiscoveryStore interface {
	Create(ctx context.Context, ds *models.DiscoveredSource) error
	GetByID(ctx context.Context, id string) (*models.DiscoveredSource, error)
	UpdateStatus(ctx context.Context, id string, from, to models.DiscoveryStatus, reviewedBy string) error
	SaveAnalysis(ctx context.Context, id string, analysis *models.SiteAnalysis, status models.DiscoveryStatus) error
	List(ctx context.Context, status models.DiscoveryStatus, limit int) ([]models.DiscoveredSource, error)
	ExistsNonTerminalForDomain(ctx context.Context, domain string) (bool, error)
}

// SourceStore checks for and creates managed sources.
type SourceStore interface {
	ExistsByDomain(ctx context.Context, domain string) (bool, error)
	Create(ctx context.Context, source *models.Source) error
}

// OrganizationStore finds or creates the owning organization on promotion.
type OrganizationStore interface {
	GetByDomain(ctx context.Context, domain string) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
}

// MetadataFetcher fills a missing title/snippet for a discovered URL.
// Implementations are best-effort; failures are logged and ignored.
type MetadataFetcher interface {
	Fetch(ctx context.Context, url string) (title, description string, err error)
}

// Publisher is the subset of the event publisher the queue uses.
type Publisher interface {
	PublishAsync(event events.Event)
}

// Service runs the discovery review queue.
type Service struct {
	discoveries DiscoveryStore
	sources     SourceStore
	orgs        OrganizationStore
	metadata    MetadataFetcher
	publisher   Publisher
	logger      logger.Logger

	// confidenceThreshold gates analyses into review; below it the item is
	// rejected automatically.
	confidenceThreshold float64
}

func NewService(
	discoveries DiscoveryStore,
	sources SourceStore,
	orgs OrganizationStore,
	metadata MetadataFetcher,
	publisher Publisher,
	log logger.Logger,
	confidenceThreshold float64,
) *Service {
	return &Service{
		discoveries:         discoveries,
		sources:             sources,
		orgs:                orgs,
		metadata:            metadata,
		publisher:           publisher,
		logger:              log,
		confidenceThreshold: confidenceThreshold,
	}
}

// Record registers a candidate URL found by the external discovery
// collaborator. The item enters pending_analysis, unless the normalized
// domain is already covered by a managed source or by another discovery
// still moving through the queue, in which case it is recorded as a
// duplicate immediately.
func (s *Service) Record(ctx context.Context, url, title, snippet, query string) (*models.DiscoveredSource, error) {
	domain := models.NormalizeDomain(url)

	ds := &models.DiscoveredSource{
		URL:            url,
		Domain:         domain,
		Title:          title,
		Snippet:        snippet,
		DiscoveryQuery: query,
		Status:         models.DiscoveryPendingAnalysis,
	}

	exists, err := s.sources.ExistsByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("check managed sources: %w", err)
	}
	if !exists {
		exists, err = s.discoveries.ExistsNonTerminalForDomain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("check in-flight discoveries: %w", err)
		}
	}
	if exists {
		ds.Status = models.DiscoveryDuplicate
	}

	if ds.Title == "" && ds.Status == models.DiscoveryPendingAnalysis && s.metadata != nil {
		if fetchedTitle, fetchedDesc, fetchErr := s.metadata.Fetch(ctx, url); fetchErr == nil {
			ds.Title = fetchedTitle
			if ds.Snippet == "" {
				ds.Snippet = fetchedDesc
			}
		} else {
			s.logger.Debug("Metadata fetch failed for discovered URL",
				logger.String("url", url),
				logger.Error(fetchErr),
			)
		}
	}

	if createErr := s.discoveries.Create(ctx, ds); createErr != nil {
		return nil, createErr
	}

	s.logger.Info("Discovery recorded",
		logger.String("discovery_id", ds.ID),
		logger.String("domain", domain),
		logger.String("status", string(ds.Status)),
	)

	return ds, nil
}

// ApplyAnalysis stores the AI collaborator's classification and advances the
// queue: below-threshold or not-likely items are rejected, a domain already
// covered by a managed source is marked duplicate, everything else waits for
// an operator in pending_review.
func (s *Service) ApplyAnalysis(ctx context.Context, id string, analysis *models.SiteAnalysis) (*models.DiscoveredSource, error) {
	ds, err := s.discoveries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := models.DiscoveryPendingReview
	if !analysis.IsLikelyCampSite || analysis.Confidence < s.confidenceThreshold {
		next = models.DiscoveryRejected
	}

	exists, err := s.sources.ExistsByDomain(ctx, ds.Domain)
	if err != nil {
		return nil, fmt.Errorf("check managed sources: %w", err)
	}
	if exists {
		next = models.DiscoveryDuplicate
	}

	if transitionErr := ValidateTransition(ds.Status, next); transitionErr != nil {
		return nil, transitionErr
	}
	if saveErr := s.discoveries.SaveAnalysis(ctx, id, analysis, next); saveErr != nil {
		return nil, saveErr
	}

	ds.Analysis = analysis
	ds.Status = next

	s.logger.Info("Discovery analysis applied",
		logger.String("discovery_id", id),
		logger.Bool("is_likely_camp_site", analysis.IsLikelyCampSite),
		logger.Float64("confidence", analysis.Confidence),
		logger.String("status", string(next)),
	)

	return ds, nil
}

// Review applies an operator decision. Approval synchronously creates the
// organization (when none exists for the domain) and the source, moves the
// item to scraper_generated, and enqueues scraper-development work for the
// automation collaborator.
func (s *Service) Review(ctx context.Context, id string, decision Decision, reviewedBy string) (*models.DiscoveredSource, error) {
	ds, err := s.discoveries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Reviewable(ds.Status) {
		return nil, fmt.Errorf("discovered source %s in status %s: %w", id, ds.Status, ErrNotReviewable)
	}

	switch decision {
	case DecisionRejected:
		if updateErr := s.discoveries.UpdateStatus(ctx, id, ds.Status, models.DiscoveryRejected, reviewedBy); updateErr != nil {
			return nil, updateErr
		}
		ds.Status = models.DiscoveryRejected
		return ds, nil

	case DecisionApproved:
		return s.promote(ctx, ds, reviewedBy)

	default:
		return nil, fmt.Errorf("unknown review decision: %s", decision)
	}
}

func (s *Service) promote(ctx context.Context, ds *models.DiscoveredSource, reviewedBy string) (*models.DiscoveredSource, error) {
	if err := s.discoveries.UpdateStatus(ctx, ds.ID, ds.Status, models.DiscoveryApproved, reviewedBy); err != nil {
		return nil, err
	}
	ds.Status = models.DiscoveryApproved

	org, err := s.orgs.GetByDomain(ctx, ds.Domain)
	if errors.Is(err, repository.ErrNotFound) {
		org = &models.Organization{
			Name:    organizationName(ds),
			Website: ds.URL,
		}
		if createErr := s.orgs.Create(ctx, org); createErr != nil {
			return nil, fmt.Errorf("create organization: %w", createErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}

	source := &models.Source{
		Name:           organizationName(ds),
		URL:            ds.URL,
		OrganizationID: &org.ID,
		Active:         true,
	}
	if err := s.sources.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	if err := s.discoveries.UpdateStatus(ctx, ds.ID, models.DiscoveryApproved, models.DiscoveryScraperGenerated, reviewedBy); err != nil {
		return nil, err
	}
	ds.Status = models.DiscoveryScraperGenerated

	s.publisher.PublishAsync(events.Event{
		EventType: events.SourceCreated,
		EntityID:  source.ID,
	})
	s.publisher.PublishAsync(events.Event{
		EventType: events.DiscoveryPromoted,
		EntityID:  ds.ID,
		Payload: events.DiscoveryPromotedPayload{
			SourceID:       source.ID,
			OrganizationID: org.ID,
			URL:            ds.URL,
			Domain:         ds.Domain,
		},
	})

	s.logger.Info("Discovery promoted to managed source",
		logger.String("discovery_id", ds.ID),
		logger.String("source_id", source.ID),
		logger.String("organization_id", org.ID),
		logger.String("reviewed_by", reviewedBy),
	)

	return ds, nil
}

// List returns queue items, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.DiscoveryStatus, limit int) ([]models.DiscoveredSource, error) {
	return s.discoveries.List(ctx, status, limit)
}

// GetByID returns one queue item.
func (s *Service) GetByID(ctx context.Context, id string) (*models.DiscoveredSource, error) {
	return s.discoveries.GetByID(ctx, id)
}

// organizationName prefers the analysis's first detected organization name,
// then the page title, then the domain.
func organizationName(ds *models.DiscoveredSource) string {
	if ds.Analysis != nil && len(ds.Analysis.OrganizationNames) > 0 {
		return ds.Analysis.OrganizationNames[0]
	}
	if ds.Title != "" {
		return ds.Title
	}
	return ds.Domain
}

// Package events publishes pipeline lifecycle events to Redis Streams for
// downstream consumers (dashboards, alerting, the scraper-development
// automation).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/camphubhq/pipeline/internal/logger"
)

// StreamName is the Redis stream all pipeline events land on.
const StreamName = "pipeline-events"

// asyncPublishTimeout is the context timeout for async publish operations.
const asyncPublishTimeout = 5 * time.Second

// EventType identifies a pipeline event.
type EventType string

const (
	// JobCompleted fires when a job reaches completed.
	JobCompleted EventType = "JOB_COMPLETED"
	// JobFailed fires when a job reaches failed.
	JobFailed EventType = "JOB_FAILED"
	// SourceCreated fires when a source is created, manually or by
	// discovery promotion.
	SourceCreated EventType = "SOURCE_CREATED"
	// SourceHealthCritical fires when a job outcome pushes a source's
	// classification to critical.
	SourceHealthCritical EventType = "SOURCE_HEALTH_CRITICAL"
	// DiscoveryPromoted fires on approval; its payload is the
	// scraper-development work request for the automation collaborator.
	DiscoveryPromoted EventType = "DISCOVERY_PROMOTED"
)

// Event is the envelope for all pipeline events.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// JobOutcomePayload carries job terminal data for JOB_COMPLETED/JOB_FAILED.
type JobOutcomePayload struct {
	SourceID      string `json:"source_id"`
	SessionsFound int    `json:"sessions_found"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	HealthClass   string `json:"health_class"`
}

// DiscoveryPromotedPayload carries the scraper-development work request.
type DiscoveryPromotedPayload struct {
	SourceID       string `json:"source_id"`
	OrganizationID string `json:"organization_id"`
	URL            string `json:"url"`
	Domain         string `json:"domain"`
}

// Publisher publishes pipeline events to Redis Streams.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher creates a new event publisher. Returns nil if client is nil;
// a nil *Publisher is a safe no-op.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{
		client: client,
		log:    log,
	}
}

// Publish sends an event to the Redis stream.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil // No-op if publisher not configured
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]any{
			"event": string(payload),
		},
	})

	if publishErr := result.Err(); publishErr != nil {
		if p.log != nil {
			p.log.Error("Failed to publish event",
				logger.String("event_type", string(event.EventType)),
				logger.String("entity_id", event.EntityID),
				logger.Error(publishErr),
			)
		}
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	if p.log != nil {
		p.log.Info("Published pipeline event",
			logger.String("event_type", string(event.EventType)),
			logger.String("entity_id", event.EntityID),
			logger.String("stream_id", result.Val()),
		)
	}

	return nil
}

// PublishAsync publishes an event asynchronously. Errors are logged but not
// returned.
func (p *Publisher) PublishAsync(event Event) {
	if p == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil && p.log != nil {
			p.log.Error("Async publish failed",
				logger.String("event_type", string(event.EventType)),
				logger.String("entity_id", event.EntityID),
				logger.Error(err),
			)
		}
	}()
}

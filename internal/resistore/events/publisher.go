package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	// EventTypeCatalogAggregated is published after a category query was aggregated.
	EventTypeCatalogAggregated EventType = "CATALOG_AGGREGATED"

	DefaultStream = "stream:catalog_aggregations"
)

// CatalogAggregated describes one finished category aggregation.
type CatalogAggregated struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	Category   string    `json:"category"`
	Discovered int       `json:"discovered"`
	Aggregated int       `json:"aggregated"`
	Dropped    int       `json:"dropped"`
	Returned   int       `json:"returned"`
	DurationMS int64     `json:"duration_ms"`
}

// Notifier receives aggregation events. Implementations never fail the caller.
type Notifier interface {
	CatalogAggregated(ctx context.Context, event CatalogAggregated)
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher appends events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// CatalogAggregated publishes event; failures are logged only.
func (p *Publisher) CatalogAggregated(ctx context.Context, event CatalogAggregated) {
	if err := p.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish event",
			"type", EventTypeCatalogAggregated,
			"category", event.Category,
			"error", err,
		)
	}
}

// Publish fills in the event metadata and XAdds it to the stream.
func (p *Publisher) Publish(ctx context.Context, event CatalogAggregated) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.EventType == "" {
		event.EventType = string(EventTypeCatalogAggregated)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":   event.EventID,
			"event_type": event.EventType,
			"category":   event.Category,
			"payload":    string(payload),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"type", event.EventType,
		"event_id", event.EventID,
		"stream", p.stream,
		"stream_id", id,
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}

// Noop discards every event.
type Noop struct{}

func (Noop) CatalogAggregated(context.Context, CatalogAggregated) {}

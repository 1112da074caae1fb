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

// EventType names a step of a cart run.
type EventType string

const (
	EventTypeStageChanged       EventType = "STAGE_CHANGED"
	EventTypeCandidatesFiltered EventType = "CANDIDATES_FILTERED"
	EventTypeAddAttempted       EventType = "ADD_ATTEMPTED"
	EventTypeCheckoutFinished   EventType = "CHECKOUT_FINISHED"
	EventTypeRunFinished        EventType = "RUN_FINISHED"
)

type Event struct {
	EventID   string          `json:"event_id"`
	EventType EventType       `json:"event_type"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Source    string          `json:"source"`
}

// New builds an event with a fresh ID. A payload that cannot be marshalled
// is dropped rather than failing the run.
func New(runID string, eventType EventType, payload any) Event {
	e := Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		RunID:     runID,
		Timestamp: time.Now(),
		Source:    "cart-agent",
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Payload = data
		}
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewRedisPublisher(client RedisClient, stream string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"event_type": string(e.EventType),
			"event_id":   e.EventID,
			"run_id":     e.RunID,
			"timestamp":  fmt.Sprintf("%d", e.Timestamp.UnixNano()),
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published", "type", e.EventType, "event_id", e.EventID, "stream_id", id)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Nop discards events. It is used when no Redis address is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }

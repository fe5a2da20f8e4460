// Package auditlog records who did what to which audit job.
package auditlog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is one audit-trail entry.
type Event struct {
	ActorID    string         `json:"actor_id"`
	Module     string         `json:"module"`
	EntityID   string         `json:"entity_id,omitempty"`
	EntityType string         `json:"entity_type,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	At         time.Time      `json:"at"`
}

// Publisher fans events out to an external sink.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Logger writes audit events to the structured log and, when a publisher is
// configured, to an external topic. Recording never fails the caller: sink
// errors are logged and dropped.
type Logger struct {
	logger    *zap.Logger
	publisher Publisher
	topic     string
	timeout   time.Duration
}

// Option configures the Logger.
type Option func(*Logger)

// WithPublisher fans events out to the given topic.
func WithPublisher(p Publisher, topic string) Option {
	return func(l *Logger) {
		l.publisher = p
		l.topic = topic
	}
}

// New constructs a Logger.
func New(logger *zap.Logger, opts ...Option) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Logger{
		logger:  logger,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record emits one audit event. It is fire-and-forget: the publish happens
// on a detached context so a slow sink cannot stall request handling.
func (l *Logger) Record(actorID, module, entityID, entityType string, payload map[string]any) {
	event := Event{
		ActorID:    actorID,
		Module:     module,
		EntityID:   entityID,
		EntityType: entityType,
		Payload:    payload,
		At:         time.Now().UTC(),
	}
	l.logger.Info("audit event",
		zap.String("actor_id", event.ActorID),
		zap.String("module", event.Module),
		zap.String("entity_id", event.EntityID),
		zap.String("entity_type", event.EntityType),
		zap.Any("payload", event.Payload),
	)
	if l.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if _, err := l.publisher.Publish(ctx, l.topic, event); err != nil {
			l.logger.Warn("audit event publish failed",
				zap.String("module", event.Module),
				zap.Error(err),
			)
		}
	}()
}

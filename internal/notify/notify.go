// Package notify publishes an event after each finished assessment.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
)

// EventAssessmentCompleted is the event type carried by every message
const EventAssessmentCompleted = "assessment.completed"

// Publisher delivers an encoded message. *rabbitmq.Client satisfies it.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// AssessmentCompleted is the payload of an assessment.completed event
type AssessmentCompleted struct {
	Event        string                 `json:"event"`
	RunID        string                 `json:"run_id"`
	Name         string                 `json:"name"`
	FeatureType  string                 `json:"feature_type"`
	FinishedAt   time.Time              `json:"finished_at"`
	WorkerErrors int                    `json:"worker_errors"`
	Targets      []domain.TargetSummary `json:"targets"`
}

// Notifier publishes assessment lifecycle events
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewNotifier returns a notifier. A nil publisher turns every call into a no-op.
func NewNotifier(publisher Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    logger,
	}
}

// AssessmentCompleted publishes the event. Failures are logged and returned
// so the caller can decide; the runner ignores them.
func (n *Notifier) AssessmentCompleted(ctx context.Context, event AssessmentCompleted) error {
	if n == nil || n.publisher == nil {
		return nil
	}

	event.Event = EventAssessmentCompleted
	if event.Targets == nil {
		event.Targets = []domain.TargetSummary{}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := n.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		n.logger.Error("Failed to publish assessment completed event",
			slog.String("run_id", event.RunID),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	n.logger.Info("Published assessment completed event",
		slog.String("run_id", event.RunID),
		slog.String("name", event.Name),
	)
	return nil
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"carprice/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrInvalidEvent marks a message that can never be processed.
var ErrInvalidEvent = errors.New("invalid prediction event")

// Auditor records a prediction event.
type Auditor interface {
	Audit(ctx context.Context, ev PredictionEvent) error
}

// AuditorFunc adapts a function to Auditor.
type AuditorFunc func(ctx context.Context, ev PredictionEvent) error

func (f AuditorFunc) Audit(ctx context.Context, ev PredictionEvent) error { return f(ctx, ev) }

// LogAuditor writes each event to the logger.
type LogAuditor struct {
	Logger *slog.Logger
}

func (a LogAuditor) Audit(_ context.Context, ev PredictionEvent) error {
	a.Logger.Info("prediction recorded",
		slog.Int64("prediction_id", ev.PredictionID),
		slog.Int64("user_id", ev.UserID),
		slog.String("brand", ev.Brand),
		slog.String("car_model", ev.CarModel),
		slog.Int("year_of_production", ev.YearOfProduction),
		slog.Float64("predicted_price", ev.PredictedPrice),
		slog.Time("created_at", ev.CreatedAt))
	return nil
}

// AuditConsumer acknowledges prediction events once the auditor accepts
// them. Malformed messages are rejected; auditor failures are requeued.
type AuditConsumer struct {
	auditor Auditor
	logger  *slog.Logger
}

func NewAuditConsumer(auditor Auditor, logger *slog.Logger) *AuditConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditConsumer{auditor: auditor, logger: logger}
}

// Run handles deliveries until ctx is done or msgs is closed.
func (c *AuditConsumer) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping audit consumer")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("audit consumer channel closed")
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *AuditConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	ev, err := decodeEvent(msg.Body)
	if err != nil {
		c.logger.Error("rejecting prediction event",
			slog.String("error", err.Error()),
			slog.Int("body_size", len(msg.Body)))
		c.settle(msg.Nack(false, false), "reject")
		return
	}

	if err := c.auditor.Audit(ctx, ev); err != nil {
		requeue := !msg.Redelivered
		c.logger.Warn("audit failed",
			slog.String("error", err.Error()),
			slog.Int64("prediction_id", ev.PredictionID),
			slog.Bool("requeue", requeue))
		status := "retry"
		if !requeue {
			status = "reject"
		}
		c.settle(msg.Nack(false, requeue), status)
		return
	}

	c.settle(msg.Ack(false), "ack")
}

func (c *AuditConsumer) settle(err error, status string) {
	if err != nil {
		c.logger.Error("failed to settle delivery", slog.String("error", err.Error()))
		status = "settle_error"
	}
	observability.AuditEventsTotal.WithLabelValues(status).Inc()
}

func decodeEvent(body []byte) (PredictionEvent, error) {
	var ev PredictionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.Event != PredictionRecordedKey {
		return ev, fmt.Errorf("%w: unexpected event %q", ErrInvalidEvent, ev.Event)
	}
	if ev.PredictionID == 0 || ev.UserID == 0 {
		return ev, fmt.Errorf("%w: missing ids", ErrInvalidEvent)
	}
	return ev, nil
}

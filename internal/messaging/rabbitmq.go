package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	PredictionsExchange = "predictions"
	AuditQueue          = "predictions.audit"

	PredictionRecordedKey = "prediction.recorded"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// PredictionEvent is the message body published for each stored prediction.
type PredictionEvent struct {
	Event        string `json:"event"`
	PredictionID int64  `json:"prediction_id"`
	UserID       int64  `json:"user_id"`
	api.CarAttributes
	PredictedPrice float64   `json:"predicted_price"`
	CreatedAt      time.Time `json:"created_at"`
	PublishedAt    time.Time `json:"published_at"`
}

// NewPredictionEvent builds the event announcing p.
func NewPredictionEvent(p *domain.Prediction, now time.Time) PredictionEvent {
	return PredictionEvent{
		Event:          PredictionRecordedKey,
		PredictionID:   p.ID,
		UserID:         p.UserID,
		CarAttributes:  p.Attributes,
		PredictedPrice: p.PredictedPrice,
		CreatedAt:      p.CreatedAt,
		PublishedAt:    now,
	}
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry keeps dialing with a doubling delay, capped at 10s,
// until it connects or ctx is done.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	delay := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}
		slog.Warn("rabbitmq not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		case <-time.After(delay):
		}
		delay = min(delay*2, 10*time.Second)
	}
}

// Setup declares the predictions exchange and the audit queue bound to it.
func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		PredictionsExchange, // name
		"topic",             // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	); err != nil {
		return fmt.Errorf("failed to declare predictions exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		AuditQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("failed to declare %s queue: %w", AuditQueue, err)
	}

	if err := r.channel.QueueBind(
		AuditQueue,          // queue name
		"prediction.#",      // routing key
		PredictionsExchange, // exchange
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind %s queue: %w", AuditQueue, err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// PublishPrediction publishes a prediction.recorded event for p.
func (r *RabbitMQ) PublishPrediction(ctx context.Context, p *domain.Prediction) error {
	body, err := json.Marshal(NewPredictionEvent(p, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.Lock()
	err = r.channel.PublishWithContext(
		ctx,
		PredictionsExchange,
		PredictionRecordedKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("published prediction event",
		slog.Int64("prediction_id", p.ID),
		slog.Int64("user_id", p.UserID))
	return nil
}

// ConsumeAudit starts delivering messages from the audit queue. Deliveries
// must be acknowledged by the caller.
func (r *RabbitMQ) ConsumeAudit(prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch > 0 {
		if err := r.channel.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set qos: %w", err)
		}
	}

	msgs, err := r.channel.Consume(
		AuditQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming prediction events",
		slog.String("queue", AuditQueue))
	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

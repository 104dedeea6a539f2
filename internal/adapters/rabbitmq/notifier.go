package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/resilience"
)

const (
	// Exchange is the durable topic exchange settlement events are published
	// to. Downstream consumers (email, ops dashboards) bind their own queues.
	Exchange = "settlement.events"

	reportRoutingKey  = "settlement.reports"
	failureRoutingKey = "settlement.alerts"
)

// Notifier publishes settlement run reports and failure alerts to RabbitMQ.
// It implements ports.Notifier.
type Notifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

// NewNotifier connects to RabbitMQ and declares the settlement exchange. The
// dial is bounded so startup does not hang on a dead broker.
func NewNotifier(amqpURL string, logger *zap.Logger) (*Notifier, error) {
	conn, err := amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Notifier{
		conn:     conn,
		channel:  ch,
		timeouts: resilience.DefaultTimeoutConfig(),
		logger:   logger,
	}, nil
}

// NotifyReport publishes a completed run report.
func (n *Notifier) NotifyReport(ctx context.Context, report *models.RunReport) error {
	return n.publish(ctx, reportRoutingKey, report)
}

// failureMessage is the wire shape of a run-level failure alert.
type failureMessage struct {
	Job       string    `json:"job"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NotifyFailure publishes a run-level failure on the alerting routing key,
// kept separate from the report stream.
func (n *Notifier) NotifyFailure(ctx context.Context, job string, runErr error) error {
	return n.publish(ctx, failureRoutingKey, failureMessage{
		Job:       job,
		Error:     runErr.Error(),
		Timestamp: time.Now().UTC(),
	})
}

func (n *Notifier) publish(ctx context.Context, routingKey string, body interface{}) error {
	ctx, cancel := n.timeouts.NotificationContext(ctx)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	err = n.channel.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        payload,
	})
	if err != nil {
		// One-shot channel reopen covers a broker-side channel close.
		n.logger.Warn("publish failed, reopening channel",
			zap.String("routing_key", routingKey),
			zap.Error(err))
		ch, chErr := n.conn.Channel()
		if chErr != nil {
			return err
		}
		n.channel = ch
		if exErr := n.channel.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); exErr != nil {
			return err
		}
		err = n.channel.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        payload,
		})
		if err != nil {
			return err
		}
	}

	n.logger.Debug("published settlement event", zap.String("routing_key", routingKey))
	return nil
}

// Close closes the channel and connection.
func (n *Notifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}

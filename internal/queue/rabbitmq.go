package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/benvon/taskboard/internal/changefeed"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultExchangeName is the topic exchange change events are published to
	DefaultExchangeName = "taskboard.changes"
	// subscriberMessageTTL bounds how long an event waits in a subscriber queue (ms)
	subscriberMessageTTL = int32(60000)
)

// RabbitMQFeed publishes change events to a topic exchange and subscribes to them
type RabbitMQFeed struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	logger       *zap.Logger

	// amqp channels are not safe for concurrent publishes
	publishMu sync.Mutex
}

var _ Publisher = (*RabbitMQFeed)(nil)
var _ changefeed.Feed = (*RabbitMQFeed)(nil)

// NewRabbitMQFeed connects to RabbitMQ and declares the change exchange
func NewRabbitMQFeed(amqpURL string, logger *zap.Logger) (*RabbitMQFeed, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	feed := &RabbitMQFeed{
		conn:         conn,
		channel:      ch,
		exchangeName: DefaultExchangeName,
		logger:       logger,
	}

	if err := feed.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup exchange: %w", err)
	}

	return feed, nil
}

// setup declares the durable topic exchange
func (q *RabbitMQFeed) setup() error {
	err := q.channel.ExchangeDeclare(
		q.exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// Publish sends e with routing key <table>.<type>
func (q *RabbitMQFeed) Publish(ctx context.Context, e changefeed.Event) error {
	env := NewEnvelope(e)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID.String(),
		Timestamp:    env.PublishedAt,
		Type:         e.RoutingKey(),
	}

	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	err = q.channel.PublishWithContext(
		ctx,
		q.exchangeName,
		e.RoutingKey(),
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// bindingKeys returns the topic patterns a subscriber queue binds with.
// Column filters are applied client-side.
func bindingKeys(filter changefeed.Filter) []string {
	table := filter.Table
	if table == "" {
		table = "*"
	}
	if len(filter.Types) == 0 {
		return []string{table + ".*"}
	}
	keys := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		keys = append(keys, changefeed.Event{Table: table, Type: t}.RoutingKey())
	}
	return keys
}

// Subscribe declares an exclusive queue bound to the filter's table and streams matching events
func (q *RabbitMQFeed) Subscribe(ctx context.Context, filter changefeed.Filter) (*changefeed.Subscription, error) {
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	queue, err := consumeCh.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": subscriberMessageTTL},
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}

	for _, key := range bindingKeys(filter) {
		if err := consumeCh.QueueBind(queue.Name, key, q.exchangeName, false, nil); err != nil {
			_ = consumeCh.Close()
			return nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
		}
	}

	deliveries, err := consumeCh.Consume(
		queue.Name,
		"",    // consumer tag (empty = auto-generate)
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	sub := changefeed.NewSubscription(filter, nil)

	go func() {
		defer func() {
			if err := consumeCh.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
				q.logger.Debug("subscriber_channel_close_failed", zap.Error(err))
			}
		}()
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					q.logger.Warn("feed_delivery_channel_closed", zap.String("filter", filter.String()))
					return
				}
				env, err := decodeEnvelope(delivery.Body)
				if err != nil {
					q.logger.Warn("feed_message_dropped", zap.String("message_id", delivery.MessageId), zap.Error(err))
					continue
				}
				sub.Push(env.Event)
			}
		}
	}()

	return sub, nil
}

// HealthCheck verifies the connection is open
func (q *RabbitMQFeed) HealthCheck(_ context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

// Close closes the feed connection
func (q *RabbitMQFeed) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

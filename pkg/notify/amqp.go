package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/roomservice/pkg/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes intents to a fanout exchange consumed by the
// WhatsApp sender.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

func DialAMQP(cfg *config.RabbitMQConfig) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", cfg.Exchange, err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, intent Intent) error {
	body, err := intent.Encode()
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch.PublishWithContext(ctx, n.exchange, intent.Template(), false, false, publishing(intent, body))
}

func publishing(intent Intent, body []byte) amqp.Publishing {
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Type:         intent.Template(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
}

func (n *AMQPNotifier) Close() error {
	if n == nil {
		return nil
	}
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

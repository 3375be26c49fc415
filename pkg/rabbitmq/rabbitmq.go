package rabbitmq

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/streadway/amqp"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
	// Exchange receives the order.* events published by the storefront.
	Exchange string
	// PaymentQueue is where the gateway reports completed payments.
	PaymentQueue string
}

// PaymentEvent is a payment notification read from the payment queue.
type PaymentEvent struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Status    string `json:"status"`
}

// StatusPaid is the PaymentEvent status that settles an order.
const StatusPaid = "paid"

// DecodePaymentEvent parses a payment queue message.
func DecodePaymentEvent(body []byte) (PaymentEvent, error) {
	var ev PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return PaymentEvent{}, fmt.Errorf("failed to decode payment event: %w", err)
	}
	if ev.OrderID == "" {
		return PaymentEvent{}, fmt.Errorf("failed to decode payment event: missing order_id")
	}
	return ev, nil
}

// NewClient connects to RabbitMQ, opens a channel and declares the order
// exchange and the payment queue.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	_, err = ch.QueueDeclare(
		cfg.PaymentQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", cfg.PaymentQueue, err)
	}

	log.Printf("RabbitMQ client connected (exchange %s, queue %s).", cfg.Exchange, cfg.PaymentQueue)

	return &Client{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		queue:    cfg.PaymentQueue,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Publish sends a persistent JSON message. An empty exchange means the
// client's configured exchange.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if exchange == "" {
		exchange = c.exchange
	}

	err := c.channel.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// ConsumePaymentEvents delivers decoded payment events to handler from a
// background goroutine. Undecodable messages are rejected without requeue;
// handler errors requeue the message.
func (c *Client) ConsumePaymentEvents(handler func(PaymentEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf(" [*] Waiting for payment events on %s", c.queue)

	go func() {
		for msg := range msgs {
			ev, err := DecodePaymentEvent(msg.Body)
			if err != nil {
				log.Printf("Rejecting payment message %d: %v", msg.DeliveryTag, err)
				if rejectErr := msg.Reject(false); rejectErr != nil {
					log.Printf("Error rejecting message %d: %v", msg.DeliveryTag, rejectErr)
				}
				continue
			}
			if err := handler(ev); err != nil {
				log.Printf("Error processing payment message %d: %v", msg.DeliveryTag, err)
				if requeueErr := msg.Nack(false, true); requeueErr != nil {
					log.Printf("Error nacking message %d: %v", msg.DeliveryTag, requeueErr)
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				log.Printf("Error acking message %d: %v", msg.DeliveryTag, ackErr)
			}
		}
		log.Println("Payment event consumer stopped")
	}()

	return nil
}

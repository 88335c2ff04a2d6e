// Package mq wraps the RabbitMQ connection, topology and the status change
// publisher.
package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"burger-house/internal/config"
)

const (
	// StatusExchange is the fanout every order status change is published to.
	StatusExchange = "order_status_fanout"

	// NotificationsQueue feeds the push notification dispatcher.
	NotificationsQueue = "push_notifications_queue"

	deadLetterExchange = "order_status_dlx"
	deadLetterQueue    = "order_status_dlq"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation
	mu   sync.Mutex // serializes Publish while waiting on confirms
}

func Dial(cfg config.Rabbit) (*Client, error) {
	vhost := cfg.VHost
	if vhost == "" {
		vhost = "/"
	}
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	c := &Client{conn: conn, ch: ch, acks: acks}
	if err := c.declareTopology(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) declareTopology() error {
	if err := c.ch.ExchangeDeclare(StatusExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(deadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(deadLetterQueue, "", deadLetterExchange, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(NotificationsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": deadLetterExchange,
	}); err != nil {
		return err
	}
	return c.ch.QueueBind(NotificationsQueue, "", StatusExchange, false, nil)
}

func (c *Client) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Publish sends one persistent message and waits for the broker's confirm.
func (c *Client) Publish(ctx context.Context, exchange, key string, body []byte, messageID, correlationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(
		ctx,
		exchange,
		key,
		false,
		false,
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			Timestamp:     time.Now(),
			MessageId:     messageID,
			CorrelationId: correlationID,
			Body:          body,
		},
	); err != nil {
		return err
	}

	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume opens a manual-ack delivery channel with the given prefetch.
func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, consumer, false, false, false, false, nil)
}

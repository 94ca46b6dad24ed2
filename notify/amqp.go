package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange alerts are published to.
const DefaultExchange = "tokenwatch.alerts"

// Publisher is the part of *amqp.Channel used for publishing.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes each notification as JSON to a topic exchange with the
// routing key "alert.<subscriberID>".
type AMQP struct {
	pub      Publisher
	exchange string
}

// NewAMQP creates an AMQP sink on pub.
func NewAMQP(pub Publisher, exchange string) *AMQP {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQP{pub: pub, exchange: exchange}
}

// Send publishes n.
func (a *AMQP) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: amqp: marshal: %w", ErrDispatch, err)
	}

	key := "alert." + strconv.FormatInt(n.SubscriberID, 10)
	err = a.pub.PublishWithContext(ctx, a.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: amqp publish %s: %w", ErrDispatch, key, err)
	}
	return nil
}

// AMQPConn owns the connection and channel behind an AMQP sink.
type AMQPConn struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DialAMQP connects to url and declares exchange as a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPConn, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("notify/amqp: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify/amqp: channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("notify/amqp: declare exchange %s: %w", exchange, err)
	}

	return &AMQPConn{conn: conn, channel: ch}, nil
}

// Channel returns the publishing channel.
func (c *AMQPConn) Channel() *amqp.Channel {
	return c.channel
}

// Close closes the channel and the connection.
func (c *AMQPConn) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

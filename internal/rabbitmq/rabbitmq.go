// Package rabbitmq publishes event notices to a topic exchange.
package rabbitmq

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// DefaultExchange receives "event.<action>" messages.
const DefaultExchange = "campusevents"

type Producer struct {
	// Rabbitmq DSN
	connStr  string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewProducer(connStr, exchange string) *Producer {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Producer{
		connStr:  connStr,
		exchange: exchange,
	}
}

// Open dials the broker and declares the durable topic exchange.
func (p *Producer) Open() (err error) {
	// ensure a DSN is set before attempting to connect.
	if p.connStr == "" {
		return errors.New("connection string required")
	}

	if p.conn, err = amqp.Dial(p.connStr); err != nil {
		return errors.Wrap(err, "dial rabbitmq")
	}

	if p.channel, err = p.conn.Channel(); err != nil {
		p.conn.Close()
		return errors.Wrap(err, "open channel")
	}

	if err = p.channel.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		p.Close()
		return errors.Wrapf(err, "declare exchange %s", p.exchange)
	}
	return nil
}

func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Publish sends data as JSON with eventName as the routing key.
// Channels are not safe for concurrent publishing, so calls serialize.
func (p *Producer) Publish(eventName string, data interface{}) error {
	jsonData, err := Encode(data)
	if err != nil {
		return err
	}
	if p.channel == nil {
		return errors.New("producer is not open")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish(
		p.exchange,
		eventName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         jsonData,
		})
}

// Encode marshals a message body.
func Encode(data interface{}) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encode message")
	}
	return b, nil
}

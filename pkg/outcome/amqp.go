package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const DefaultExchange = "erp.whatsapp.outcomes"

// AMQPSink publishes events to a durable topic exchange, routed by event
// type. The connection is opened lazily and reopened after it drops.
type AMQPSink struct {
	url      string
	exchange string
	log      logrus.FieldLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPSink(url string, exchange string, logger logrus.FieldLogger) (*AMQPSink, error) {
	if url == "" {
		return nil, errors.New("AMQP URL not configured")
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPSink{url: url, exchange: exchange, log: logger}, nil
}

func (s *AMQPSink) Name() string {
	return "amqp"
}

func (s *AMQPSink) ensure() (*amqp.Channel, error) {
	if s.conn != nil && !s.conn.IsClosed() && s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	s.closeLocked()

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	s.conn, s.ch = conn, ch
	s.log.WithField("exchange", s.exchange).Info("AMQP outcome publisher connected")
	return ch, nil
}

func encodeEvent(evt Event) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.Timestamp,
		Type:         string(evt.Type),
		Body:         body,
	}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, evt Event) error {
	msg, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.ensure()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, s.exchange, string(evt.Type), false, false, msg); err != nil {
		s.closeLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (s *AMQPSink) closeLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

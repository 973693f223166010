package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// LogSink writes events to the structured log. Reuse is logged at warn.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, e Event) error {
	args := []any{"kind", string(e.Kind), "at", e.At}
	if e.UserID != "" {
		args = append(args, "user_id", e.UserID)
	}
	if e.TokenID != "" {
		args = append(args, "token_id", e.TokenID)
	}
	if e.Email != "" {
		args = append(args, "email", e.Email)
	}

	if e.Kind == KindTokenReuseDetected {
		s.log.Warn(ctx, "audit", args...)
	} else {
		s.log.Info(ctx, "audit", args...)
	}
	return nil
}

// Publisher is the part of *amqp.Channel the AMQP sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes events as persistent JSON messages to a queue on the
// default exchange.
type AMQPSink struct {
	ch      Publisher
	queue   string
	timeout time.Duration
	closeFn func() error
}

func NewAMQPSink(ch Publisher, queue string) *AMQPSink {
	return &AMQPSink{ch: ch, queue: queue, timeout: 5 * time.Second}
}

// DialAMQP connects to the broker, declares a durable queue and returns a
// sink owning the connection.
func DialAMQP(url, queue string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	s := NewAMQPSink(ch, queue)
	s.closeFn = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return s, nil
}

func (s *AMQPSink) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.At,
		Type:         string(e.Kind),
		Body:         body,
	})
}

// Close releases the broker connection if the sink owns one.
func (s *AMQPSink) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Package events announces order state changes to downstream consumers
// (fulfillment, email receipts). Only the transition to paid is published.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/whisthq/whist/backend/checkout/utils"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
)

// OrderPaid is published once when an order moves to paid.
type OrderPaid struct {
	OrderID     int64     `json:"order_id"`
	SessionID   string    `json:"session_id"`
	AmountTotal int64     `json:"amount_total"`
	Currency    string    `json:"currency"`
	PaidAt      time.Time `json:"paid_at"`
}

// Publisher sends order events to downstream consumers.
type Publisher interface {
	PublishOrderPaid(ctx context.Context, event OrderPaid) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to a Kafka topic, keyed by order id so
// that all events for an order land on the same partition.
type KafkaPublisher struct {
	writer       messageWriter
	writeTimeout time.Duration
}

// NewKafkaPublisher creates a publisher that writes to topic on the given
// brokers. Writes are synchronous so that a failed publish can be reported
// back to Stripe as a failed delivery.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, utils.MakeError("no Kafka brokers provided")
	}
	if topic == "" {
		return nil, utils.MakeError("no Kafka topic provided")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(logger.Debugf),
		ErrorLogger:  kafka.LoggerFunc(logger.Errorf),
	}

	logger.Infof("Publishing order events to Kafka topic %s on %s", topic, utils.Sprintf("%v", brokers))
	return &KafkaPublisher{writer: writer, writeTimeout: writer.WriteTimeout}, nil
}

// PublishOrderPaid writes the event as JSON.
func (p *KafkaPublisher) PublishOrderPaid(ctx context.Context, event OrderPaid) error {
	value, err := json.Marshal(event)
	if err != nil {
		return utils.MakeError("failed to marshal order paid event for order %d: %w", event.OrderID, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("order.paid")},
		},
	})
	if err != nil {
		return utils.MakeError("failed to publish order paid event for order %d: %w", event.OrderID, err)
	}

	logger.Infof("Published order paid event for order %d", event.OrderID)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return utils.MakeError("failed to close Kafka writer: %w", err)
	}
	return nil
}

// LogPublisher only logs events. It is used when no Kafka brokers are
// configured, i.e. in localdev.
type LogPublisher struct{}

// NewLogPublisher returns a LogPublisher.
func NewLogPublisher() LogPublisher {
	return LogPublisher{}
}

func (LogPublisher) PublishOrderPaid(_ context.Context, event OrderPaid) error {
	logger.Infof("Order %d paid (session %s, %d %s)", event.OrderID, event.SessionID, event.AmountTotal, event.Currency)
	return nil
}

func (LogPublisher) Close() error {
	return nil
}

// Package events publishes coupon domain events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// EventTypeCouponRedeemed is the type of the event published after a redemption commits.
const EventTypeCouponRedeemed = "coupon.redeemed"

// RedemptionEvent describes a committed redemption.
type RedemptionEvent struct {
	Type         string    `json:"type"`
	RedemptionID uuid.UUID `json:"redemptionId"`
	CouponID     uuid.UUID `json:"couponId"`
	Code         string    `json:"code"`
	UserID       *string   `json:"userId,omitempty"`
	OrderID      *string   `json:"orderId,omitempty"`
	Amount       float64   `json:"amount"`
	Discount     float64   `json:"discount"`
	Total        float64   `json:"total"`
	RedeemedAt   time.Time `json:"redeemedAt"`
}

// Publisher publishes coupon events.
type Publisher interface {
	// PublishRedemption publishes a coupon.redeemed event.
	PublishRedemption(ctx context.Context, event *RedemptionEvent) error

	// Close flushes pending events and releases resources.
	Close() error
}

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher implements Publisher on a Kafka topic.
type kafkaPublisher struct {
	writer MessageWriter
	logger zerolog.Logger
}

// NewKafkaWriter creates a writer for topic that balances by message key.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewKafkaPublisher creates a publisher writing to writer.
func NewKafkaPublisher(writer MessageWriter, logger zerolog.Logger) Publisher {
	return &kafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "kafka-publisher").Logger(),
	}
}

// PublishRedemption implements Publisher. Events are keyed by coupon code so
// the redemptions of one coupon stay ordered within a partition.
func (p *kafkaPublisher) PublishRedemption(ctx context.Context, event *RedemptionEvent) error {
	if event.Type == "" {
		event.Type = EventTypeCouponRedeemed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal redemption event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Code),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
		Time: event.RedeemedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().
			Err(err).
			Str("code", event.Code).
			Str("redemption_id", event.RedemptionID.String()).
			Msg("failed to publish redemption event")
		return fmt.Errorf("failed to publish redemption event: %w", err)
	}

	p.logger.Debug().
		Str("code", event.Code).
		Str("redemption_id", event.RedemptionID.String()).
		Msg("redemption event published")

	return nil
}

// Close implements Publisher.
func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// nopPublisher discards events.
type nopPublisher struct{}

// NewNopPublisher returns a Publisher that discards every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishRedemption(context.Context, *RedemptionEvent) error { return nil }

func (nopPublisher) Close() error { return nil }

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/adraryacine/adel-computer-sub000/internal/services"
)

// PubSubNotificationPublisher publishes shopper notification jobs to Pub/Sub
// topics. OTP codes and order confirmation events go to separate topics so
// their consumers can scale and retry independently.
type PubSubNotificationPublisher struct {
	otpTopic   *pubsub.Topic
	orderTopic *pubsub.Topic
	marshal    func(any) ([]byte, error)
}

// NewPubSubNotificationPublisher constructs a Pub/Sub backed notification publisher.
func NewPubSubNotificationPublisher(otpTopic, orderTopic *pubsub.Topic) (*PubSubNotificationPublisher, error) {
	if otpTopic == nil {
		return nil, errors.New("pubsub notification publisher: otp topic is required")
	}
	if orderTopic == nil {
		return nil, errors.New("pubsub notification publisher: order events topic is required")
	}
	return &PubSubNotificationPublisher{
		otpTopic:   otpTopic,
		orderTopic: orderTopic,
		marshal:    json.Marshal,
	}, nil
}

// PublishOTPIssued enqueues a verification code dispatch message. The code
// itself travels only in the payload, never in attributes, so topic-level
// attribute logging cannot leak it.
func (p *PubSubNotificationPublisher) PublishOTPIssued(ctx context.Context, message services.OTPIssuedMessage) error {
	if p == nil || p.otpTopic == nil {
		return errors.New("pubsub notification publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal otp message: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "challengeId", message.ChallengeID)
	setAttr(attrs, "sessionId", message.SessionID)

	result := p.otpTopic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish otp message: %w", err)
	}
	return nil
}

// PublishOrderConfirmed enqueues an order confirmation event for downstream
// consumers (receipts, fulfilment, analytics).
func (p *PubSubNotificationPublisher) PublishOrderConfirmed(ctx context.Context, message services.OrderConfirmedMessage) error {
	if p == nil || p.orderTopic == nil {
		return errors.New("pubsub notification publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal order confirmed message: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "userId", message.UserID)

	result := p.orderTopic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order confirmed message: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

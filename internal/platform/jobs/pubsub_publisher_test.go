package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adraryacine/adel-computer-sub000/internal/services"
)

func newTestTopics(t *testing.T) (*pstest.Server, *pubsub.Topic, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	otpTopic, err := client.CreateTopic(ctx, "otp-dispatch")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	orderTopic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return srv, otpTopic, orderTopic
}

func TestPubSubNotificationPublisherPublishesOTP(t *testing.T) {
	ctx := context.Background()
	srv, otpTopic, orderTopic := newTestTopics(t)

	publisher, err := NewPubSubNotificationPublisher(otpTopic, orderTopic)
	if err != nil {
		t.Fatalf("NewPubSubNotificationPublisher: %v", err)
	}

	expires := time.Date(2026, 4, 6, 9, 5, 0, 0, time.UTC)
	msg := services.OTPIssuedMessage{
		ChallengeID: "otp_test",
		SessionID:   "cs_test",
		Destination: "+213555000111",
		Code:        "482916",
		ExpiresAt:   expires,
	}

	if err := publisher.PublishOTPIssued(ctx, msg); err != nil {
		t.Fatalf("PublishOTPIssued: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OTPIssuedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ChallengeID != msg.ChallengeID || payload.Code != msg.Code {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["sessionId"]; attr != "cs_test" {
		t.Fatalf("expected session attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["code"]; ok {
		t.Fatalf("code attribute should not be present")
	}
}

func TestPubSubNotificationPublisherPublishesOrderConfirmed(t *testing.T) {
	ctx := context.Background()
	srv, otpTopic, orderTopic := newTestTopics(t)

	publisher, err := NewPubSubNotificationPublisher(otpTopic, orderTopic)
	if err != nil {
		t.Fatalf("NewPubSubNotificationPublisher: %v", err)
	}

	placed := time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)
	msg := services.OrderConfirmedMessage{
		OrderID:     "ord_test",
		OrderNumber: "AC-2026-000042",
		UserID:      "user-1",
		Total:       2980000,
		Currency:    "DZD",
		PlacedAt:    placed,
	}

	if err := publisher.PublishOrderConfirmed(ctx, msg); err != nil {
		t.Fatalf("PublishOrderConfirmed: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderConfirmedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderNumber != msg.OrderNumber || payload.Total != msg.Total {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderNumber"]; attr != "AC-2026-000042" {
		t.Fatalf("expected order number attribute, got %q", attr)
	}
}

func TestPubSubNotificationPublisherRequiresTopics(t *testing.T) {
	if _, err := NewPubSubNotificationPublisher(nil, nil); err == nil {
		t.Fatal("expected error for missing topics")
	}
}

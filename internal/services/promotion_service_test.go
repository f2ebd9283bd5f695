package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
)

func activePromotion(id, code string, ptype domain.PromotionType, value, cap int64) domain.Promotion {
	return domain.Promotion{
		ID:         id,
		Code:       code,
		Name:       code,
		Type:       ptype,
		Value:      value,
		MaxCap:     cap,
		Active:     true,
		ValidFrom:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func newTestPromotionService(t *testing.T, repo *stubPromotionRepository, now time.Time) PromotionService {
	t.Helper()
	service, err := NewPromotionService(PromotionServiceDeps{
		Promotions: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing promotion service: %v", err)
	}
	return service
}

func TestPromotionServicePercentageCapped(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	repo := &stubPromotionRepository{
		findFunc: func(ctx context.Context, code string) (domain.Promotion, error) {
			return activePromotion("promo-1", code, domain.PromotionTypePercentage, 20, 150000), nil
		},
	}
	service := newTestPromotionService(t, repo, now)

	// 20% of 1,000,000 is 200,000, capped at 150,000.
	eval, err := service.Evaluate(context.Background(), EvaluatePromotionCommand{Subtotal: 1000000, Code: "SPRING20"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eval.Applied || eval.Discount != 150000 {
		t.Fatalf("expected capped discount 150000, got %+v", eval)
	}
}

func TestPromotionServiceFixedNeverExceedsSubtotal(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	repo := &stubPromotionRepository{
		findFunc: func(ctx context.Context, code string) (domain.Promotion, error) {
			return activePromotion("promo-2", code, domain.PromotionTypeFixed, 500000, 0), nil
		},
	}
	service := newTestPromotionService(t, repo, now)

	eval, err := service.Evaluate(context.Background(), EvaluatePromotionCommand{Subtotal: 300000, Code: "FLAT5000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Discount != 300000 {
		t.Fatalf("expected discount clamped to subtotal, got %d", eval.Discount)
	}
}

func TestPromotionServiceWindowInclusiveOfEndDay(t *testing.T) {
	promo := activePromotion("promo-3", "MARCH", domain.PromotionTypePercentage, 10, 0)
	promo.ValidUntil = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := &stubPromotionRepository{
		findFunc: func(ctx context.Context, code string) (domain.Promotion, error) {
			return promo, nil
		},
	}

	// Late on the stated end day the promotion still applies.
	endOfDay := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	eval, err := newTestPromotionService(t, repo, endOfDay).Evaluate(context.Background(), EvaluatePromotionCommand{Subtotal: 100000, Code: "MARCH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eval.Applied {
		t.Fatalf("expected promotion applicable on its end day")
	}

	// The next morning it no longer does.
	nextDay := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)
	eval, err = newTestPromotionService(t, repo, nextDay).Evaluate(context.Background(), EvaluatePromotionCommand{Subtotal: 100000, Code: "MARCH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Applied {
		t.Fatalf("expected promotion expired after its end day")
	}
}

func TestPromotionServiceUsageLimitExhausted(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	promo := activePromotion("promo-4", "LIMITED", domain.PromotionTypeFixed, 100000, 0)
	promo.UsageLimit = 10
	promo.UsedCount = 10
	repo := &stubPromotionRepository{
		findFunc: func(ctx context.Context, code string) (domain.Promotion, error) {
			return promo, nil
		},
	}
	service := newTestPromotionService(t, repo, now)

	eval, err := service.Evaluate(context.Background(), EvaluatePromotionCommand{Subtotal: 400000, Code: "LIMITED"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Applied {
		t.Fatalf("expected exhausted promotion to yield no discount")
	}
}

func TestPromotionServiceLargestDiscountWins(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	repo := &stubPromotionRepository{
		listActiveFunc: func(ctx context.Context, at time.Time) ([]domain.Promotion, error) {
			return []domain.Promotion{
				activePromotion("promo-a", "TEN", domain.PromotionTypePercentage, 10, 0),
				activePromotion("promo-b", "BIGFLAT", domain.PromotionTypeFixed, 250000, 0),
				activePromotion("promo-c", "FIVE", domain.PromotionTypePercentage, 5, 0),
			}, nil
		},
	}
	service := newTestPromotionService(t, repo, now)

	eval, err := service.Evaluate(context.Background(), EvaluatePromotionCommand{Subtotal: 1000000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Code != "BIGFLAT" || eval.Discount != 250000 {
		t.Fatalf("expected BIGFLAT with 250000, got %+v", eval)
	}
}

func TestPromotionServiceUnknownCode(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	repo := &stubPromotionRepository{
		findFunc: func(ctx context.Context, code string) (domain.Promotion, error) {
			return domain.Promotion{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestPromotionService(t, repo, now)

	_, err := service.Evaluate(context.Background(), EvaluatePromotionCommand{Subtotal: 100000, Code: "NOPE"})
	if !errors.Is(err, ErrPromotionNotFound) {
		t.Fatalf("expected ErrPromotionNotFound, got %v", err)
	}
}

func TestPromotionServiceMarkRedeemed(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	var incremented string
	repo := &stubPromotionRepository{
		incrementFunc: func(ctx context.Context, promotionID string, at time.Time) (domain.Promotion, error) {
			incremented = promotionID
			return domain.Promotion{ID: promotionID, UsedCount: 1}, nil
		},
	}
	service := newTestPromotionService(t, repo, now)

	if err := service.MarkRedeemed(context.Background(), "promo-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if incremented != "promo-1" {
		t.Fatalf("expected usage increment for promo-1, got %q", incremented)
	}
}

// Shared stubs ---------------------------------------------------------------

type stubPromotionRepository struct {
	findFunc       func(ctx context.Context, code string) (domain.Promotion, error)
	listActiveFunc func(ctx context.Context, at time.Time) ([]domain.Promotion, error)
	incrementFunc  func(ctx context.Context, promotionID string, at time.Time) (domain.Promotion, error)
}

func (s *stubPromotionRepository) FindByCode(ctx context.Context, code string) (domain.Promotion, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, code)
	}
	return domain.Promotion{}, &repositoryErrorStub{notFound: true}
}

func (s *stubPromotionRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Promotion, error) {
	if s.listActiveFunc != nil {
		return s.listActiveFunc(ctx, now)
	}
	return nil, nil
}

func (s *stubPromotionRepository) IncrementUsage(ctx context.Context, promotionID string, now time.Time) (domain.Promotion, error) {
	if s.incrementFunc != nil {
		return s.incrementFunc(ctx, promotionID, now)
	}
	return domain.Promotion{ID: promotionID}, nil
}

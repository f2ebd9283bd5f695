package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

// PromotionServiceDeps bundles dependencies required to construct a PromotionService implementation.
type PromotionServiceDeps struct {
	Promotions repositories.PromotionRepository
	Clock      func() time.Time
}

type promotionService struct {
	repo  repositories.PromotionRepository
	clock func() time.Time
}

// NewPromotionService wires a PromotionService backed by the provided repository.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Promotions == nil {
		return nil, ErrPromotionRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &promotionService{
		repo:  deps.Promotions,
		clock: func() time.Time { return clock().UTC() },
	}, nil
}

// Evaluate computes the discount for the subtotal. With a code it considers
// only that promotion; without one it scans the active set and keeps the
// largest discount. A promotion outside its validity window or past its usage
// limit simply yields no discount.
func (s *promotionService) Evaluate(ctx context.Context, cmd EvaluatePromotionCommand) (PromotionEvaluation, error) {
	if s == nil || s.repo == nil {
		return PromotionEvaluation{}, ErrPromotionRepositoryMissing
	}
	if cmd.Subtotal < 0 {
		return PromotionEvaluation{}, ErrPromotionInvalidInput
	}

	now := s.clock()
	var candidates []domain.Promotion

	if code := strings.ToUpper(strings.TrimSpace(cmd.Code)); code != "" {
		promotion, err := s.repo.FindByCode(ctx, code)
		if err != nil {
			if repoErr, ok := err.(repositories.RepositoryError); ok {
				switch {
				case repoErr.IsNotFound():
					return PromotionEvaluation{}, ErrPromotionNotFound
				case repoErr.IsUnavailable():
					return PromotionEvaluation{}, fmt.Errorf("%w: %v", ErrPromotionUnavailable, err)
				}
			}
			return PromotionEvaluation{}, err
		}
		candidates = []domain.Promotion{promotion}
	} else {
		active, err := s.repo.ListActive(ctx, now)
		if err != nil {
			if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsUnavailable() {
				return PromotionEvaluation{}, fmt.Errorf("%w: %v", ErrPromotionUnavailable, err)
			}
			return PromotionEvaluation{}, err
		}
		candidates = active
	}

	best, amount, ok := domain.BestPromotion(candidates, cmd.Subtotal, now)
	if !ok {
		return PromotionEvaluation{}, nil
	}

	return PromotionEvaluation{
		Applied:     true,
		PromotionID: best.ID,
		Code:        best.Code,
		Discount:    amount,
		Breakdown: []DiscountBreakdown{
			{
				Type:        string(best.Type),
				Code:        best.Code,
				Description: best.Name,
				Amount:      amount,
			},
		},
	}, nil
}

// MarkRedeemed bumps the usage counter once an order carrying the promotion is
// persisted.
func (s *promotionService) MarkRedeemed(ctx context.Context, promotionID string) error {
	if s == nil || s.repo == nil {
		return ErrPromotionRepositoryMissing
	}
	trimmed := strings.TrimSpace(promotionID)
	if trimmed == "" {
		return ErrPromotionInvalidInput
	}
	if _, err := s.repo.IncrementUsage(ctx, trimmed, s.clock()); err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok {
			switch {
			case repoErr.IsNotFound():
				return ErrPromotionNotFound
			case repoErr.IsUnavailable():
				return fmt.Errorf("%w: %v", ErrPromotionUnavailable, err)
			}
		}
		return err
	}
	return nil
}

package domain

import "time"

// PricingBreakdown captures the monetary results of pricing a checkout.
type PricingBreakdown struct {
	Currency    string
	Subtotal    int64
	Discount    int64
	DeliveryFee int64
	Total       int64
	Discounts   []DiscountBreakdown
}

// DiscountBreakdown lists an individual discount adjustment applied to the cart.
type DiscountBreakdown struct {
	Type        string
	Code        string
	Description string
	Amount      int64
}

// PromotionUsable reports whether the promotion can be redeemed at the given
// instant. The validity window end is extended to the end of the calendar day
// so a promotion stated to run "until 2026-03-10" still applies at 23:59 that
// day.
func PromotionUsable(p Promotion, now time.Time) bool {
	if !p.Active {
		return false
	}
	if !p.ValidFrom.IsZero() && now.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidUntil.IsZero() {
		endOfDay := time.Date(p.ValidUntil.Year(), p.ValidUntil.Month(), p.ValidUntil.Day(), 0, 0, 0, 0, p.ValidUntil.Location()).AddDate(0, 0, 1)
		if !now.Before(endOfDay) {
			return false
		}
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return false
	}
	return true
}

// DiscountAmount computes the discount a promotion yields on the subtotal.
// Percentage promotions take value% of the subtotal, fixed promotions take the
// value itself; both are clamped to MaxCap when set and never exceed the
// subtotal.
func DiscountAmount(p Promotion, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var amount int64
	switch p.Type {
	case PromotionTypePercentage:
		amount = subtotal * p.Value / 100
	case PromotionTypeFixed:
		amount = p.Value
	default:
		return 0
	}
	if amount < 0 {
		return 0
	}
	if p.MaxCap > 0 && amount > p.MaxCap {
		amount = p.MaxCap
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

// BestPromotion picks the usable promotion producing the largest discount.
// When no promotion applies it returns ok=false. Ties keep the first promotion
// in input order.
func BestPromotion(promotions []Promotion, subtotal int64, now time.Time) (Promotion, int64, bool) {
	var (
		best       Promotion
		bestAmount int64
		found      bool
	)
	for _, p := range promotions {
		if !PromotionUsable(p, now) {
			continue
		}
		amount := DiscountAmount(p, subtotal)
		if amount <= 0 {
			continue
		}
		if !found || amount > bestAmount {
			best = p
			bestAmount = amount
			found = true
		}
	}
	return best, bestAmount, found
}

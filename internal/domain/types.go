package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Category groups catalog products (laptops, components, peripherals, ...).
type Category struct {
	ID        string
	Slug      string
	Name      string
	Position  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is a catalog entry. Monetary amounts across the model are DZD
// expressed in centimes.
type Product struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Brand       string
	CategoryID  string
	UnitPrice   int64
	Currency    string
	Stock       int
	ImageURL    string
	Attributes  map[string]string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	CategoryID string
	Brand      string
	Search     string
	ActiveOnly bool
	MinPrice   *int64
	MaxPrice   *int64
}

// CartItem is a single cart line. UnitPrice is captured when the line is first
// added and never re-read from the catalog afterwards. AvailableStock is the
// stock level observed at add time; nil means the level was unknown and no
// ceiling applies.
type CartItem struct {
	ProductID      string
	Name           string
	UnitPrice      int64
	Quantity       int
	AvailableStock *int
	ImageURL       string
	CategoryID     string
	AddedAt        time.Time
}

// Cart aggregates the lines a shopper is assembling. Item counts and totals
// are always derived from Items, never stored.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemCount returns the sum of line quantities.
func (c Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal returns the sum of unit price times quantity across lines.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// CartSnapshot freezes cart contents for a checkout session. The snapshot is
// taken once when checkout begins and is never affected by later cart edits.
type CartSnapshot struct {
	CartID    string
	Items     []CartItem
	ItemCount int
	Subtotal  int64
	Currency  string
	TakenAt   time.Time
}

// PromotionType distinguishes percentage discounts from fixed amounts.
type PromotionType string

const (
	// PromotionTypePercentage discounts a percentage of the cart subtotal.
	PromotionTypePercentage PromotionType = "percentage"
	// PromotionTypeFixed discounts a fixed amount.
	PromotionTypeFixed PromotionType = "fixed"
)

// Promotion describes a storefront discount. Value holds the percentage for
// percentage promotions and the amount in centimes for fixed ones. MaxCap
// bounds the computed discount; zero means uncapped. UsageLimit of zero means
// unlimited redemptions. ValidUntil is inclusive of the whole calendar day.
type Promotion struct {
	ID         string
	Code       string
	Name       string
	Type       PromotionType
	Value      int64
	MaxCap     int64
	Active     bool
	ValidFrom  time.Time
	ValidUntil time.Time
	UsageLimit int
	UsedCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CustomerDetails carries the delivery information collected during checkout.
type CustomerDetails struct {
	FullName string
	Phone    string
	Email    string
	Wilaya   string
	Address  string
	Notes    string
}

// CheckoutState enumerates the checkout session lifecycle.
type CheckoutState string

const (
	// CheckoutStateCollectingDetails is the initial state while the shopper
	// fills in delivery details.
	CheckoutStateCollectingDetails CheckoutState = "collecting_details"
	// CheckoutStateAwaitingCode means a verification code has been issued and
	// the session is waiting for the shopper to submit it.
	CheckoutStateAwaitingCode CheckoutState = "awaiting_code"
	// CheckoutStateConfirmed is terminal; the order has been persisted.
	CheckoutStateConfirmed CheckoutState = "confirmed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateConfirmed
}

// CheckoutSession tracks one shopper's progress through the confirmation flow.
type CheckoutSession struct {
	ID            string
	UserID        string
	State         CheckoutState
	Details       CustomerDetails
	Snapshot      CartSnapshot
	Pricing       PricingBreakdown
	PromotionCode string
	PromotionID   string
	ChallengeID   string
	OrderID       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderStatus describes order fulfilment states.
type OrderStatus string

const (
	// OrderStatusPendingConfirmation is the status assigned when an order is
	// first persisted from a confirmed checkout.
	OrderStatusPendingConfirmation OrderStatus = "pending_confirmation"
	// OrderStatusProcessing means the shop accepted the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped means the order left the shop.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered means the courier confirmed delivery.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled means the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the persisted result of a confirmed checkout.
type Order struct {
	ID        string
	Number    string
	UserID    string
	Items     []CartItem
	Details   CustomerDetails
	Pricing   PricingBreakdown
	Status    OrderStatus
	PlacedAt  time.Time
	UpdatedAt time.Time
}

// OTPChallenge is a one-time verification code issued for a checkout session.
// Only the SHA-256 digest of the code is stored. A challenge stops being
// usable once invalidated, expired, or out of attempts.
type OTPChallenge struct {
	ID          string
	SessionID   string
	Destination string
	CodeDigest  string
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
	Invalidated bool
	CreatedAt   time.Time
}

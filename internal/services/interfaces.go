package services

import (
	"context"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination        = domain.Pagination
	SortOrder         = domain.SortOrder
	Category          = domain.Category
	Product           = domain.Product
	Cart              = domain.Cart
	CartItem          = domain.CartItem
	CartSnapshot      = domain.CartSnapshot
	PricingBreakdown  = domain.PricingBreakdown
	DiscountBreakdown = domain.DiscountBreakdown
	Promotion         = domain.Promotion
	PromotionType     = domain.PromotionType
	CustomerDetails   = domain.CustomerDetails
	CheckoutState     = domain.CheckoutState
	CheckoutSession   = domain.CheckoutSession
	Order             = domain.Order
	OrderStatus       = domain.OrderStatus
	OTPChallenge      = domain.OTPChallenge
	DeliveryFeeTable  = domain.DeliveryFeeTable
)

// CursorPage re-exports the generic pagination wrapper for handler consumption.
type CursorPage[T any] = domain.CursorPage[T]

// CartService manages mutable cart state with write-through persistence. The
// in-memory cart is authoritative; durable write failures degrade to a
// warning instead of rejecting the mutation.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartMutationResult, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemQuantityCommand) (CartMutationResult, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartMutationResult, error)
	ClearCart(ctx context.Context, userID string) (CartMutationResult, error)
}

// CheckoutService drives the verification-gated checkout state machine.
type CheckoutService interface {
	BeginCheckout(ctx context.Context, cmd BeginCheckoutCommand) (CheckoutSession, error)
	ResendCode(ctx context.Context, cmd CheckoutSessionRef) (CheckoutSession, error)
	SubmitCode(ctx context.Context, cmd SubmitCodeCommand) (CheckoutConfirmation, error)
	ReturnToDetails(ctx context.Context, cmd CheckoutSessionRef) (CheckoutSession, error)
	GetSession(ctx context.Context, cmd CheckoutSessionRef) (CheckoutSession, error)
}

// OTPService is the code issuer/verifier collaborator used by checkout.
// Issuing a new code invalidates every previously issued code for the session.
type OTPService interface {
	IssueCode(ctx context.Context, cmd IssueCodeCommand) (OTPChallenge, error)
	VerifyCode(ctx context.Context, sessionID string, code string) error
}

// PromotionService evaluates storefront discounts against a subtotal.
type PromotionService interface {
	Evaluate(ctx context.Context, cmd EvaluatePromotionCommand) (PromotionEvaluation, error)
	MarkRedeemed(ctx context.Context, promotionID string) error
}

// CatalogService exposes the public product catalog with promotion-aware pricing.
type CatalogService interface {
	ListProducts(ctx context.Context, query ProductListQuery) (CursorPage[PricedProduct], error)
	GetProduct(ctx context.Context, idOrSlug string) (PricedProduct, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// OrderService encapsulates order creation from confirmed checkouts and reads.
type OrderService interface {
	CreateFromCheckout(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, userID string, orderID string) (Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) (CursorPage[Order], error)
}

// SystemService aggregates health and build metadata endpoints.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}

// NotificationPublisher dispatches asynchronous delivery jobs (OTP emails,
// order confirmations) to the messaging backend.
type NotificationPublisher interface {
	PublishOTPIssued(ctx context.Context, msg OTPIssuedMessage) error
	PublishOrderConfirmed(ctx context.Context, msg OrderConfirmedMessage) error
}

// ErrorTranslator converts repository or platform errors into domain-aware sentinel errors.
type ErrorTranslator interface {
	Translate(err error) error
}

// Command and DTO definitions ------------------------------------------------

type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

type UpdateCartItemQuantityCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

type RemoveCartItemCommand struct {
	UserID    string
	ProductID string
}

// CartMutationResult reports the cart after a mutation together with
// non-fatal adjustment flags.
type CartMutationResult struct {
	Cart Cart
	// StockAdjusted is set when the requested quantity was clamped to the
	// advisory stock ceiling.
	StockAdjusted bool
	// StorageWarning is set when the durable write failed; the returned cart
	// still reflects the mutation.
	StorageWarning bool
}

type BeginCheckoutCommand struct {
	UserID        string
	Details       CustomerDetails
	PromotionCode string
}

type CheckoutSessionRef struct {
	UserID    string
	SessionID string
}

type SubmitCodeCommand struct {
	UserID    string
	SessionID string
	Code      string
}

// CheckoutConfirmation is the result of a successful code submission.
type CheckoutConfirmation struct {
	Session CheckoutSession
	Order   Order
	// CartStorageWarning is set when clearing the durable cart failed after
	// the order was persisted.
	CartStorageWarning bool
}

type IssueCodeCommand struct {
	SessionID   string
	Destination string
}

type EvaluatePromotionCommand struct {
	Subtotal int64
	Currency string
	// Code restricts evaluation to one promotion code. Empty means evaluate
	// every active promotion and keep the largest discount.
	Code string
}

// PromotionEvaluation reports the winning discount, if any.
type PromotionEvaluation struct {
	Applied     bool
	PromotionID string
	Code        string
	Discount    int64
	Breakdown   []DiscountBreakdown
}

type ProductListQuery struct {
	CategoryID string
	Brand      string
	Search     string
	MinPrice   *int64
	MaxPrice   *int64
	Pagination Pagination
}

// PricedProduct decorates a catalog product with its promotion-adjusted price.
type PricedProduct struct {
	Product
	EffectiveUnitPrice int64
	AppliedPromotion   string
}

type CreateOrderCommand struct {
	UserID      string
	SessionID   string
	Snapshot    CartSnapshot
	Details     CustomerDetails
	Pricing     PricingBreakdown
	PromotionID string
	PlacedAt    time.Time
}

type OrderListQuery struct {
	UserID     string
	Status     []string
	PlacedFrom *time.Time
	PlacedTo   *time.Time
	Pagination Pagination
}

// OTPIssuedMessage is published for the mailer worker to deliver a code.
type OTPIssuedMessage struct {
	ChallengeID string    `json:"challengeId"`
	SessionID   string    `json:"sessionId"`
	Destination string    `json:"destination"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// OrderConfirmedMessage notifies downstream consumers of a placed order.
type OrderConfirmedMessage struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	Total       int64     `json:"total"`
	Currency    string    `json:"currency"`
	PlacedAt    time.Time `json:"placedAt"`
}

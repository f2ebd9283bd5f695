package repositories

import (
	"context"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Orders() OrderRepository
	Products() ProductRepository
	Categories() CategoryRepository
	Promotions() PromotionRepository
	OTPChallenges() OTPChallengeRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository owns cart header + items persistence. Carts are keyed by the
// owning user; one durable cart per user.
type CartRepository interface {
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

// OrderRepository persists order documents and provides query helpers.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// ProductRepository serves catalog product reads.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
}

// CategoryRepository serves catalog category reads.
type CategoryRepository interface {
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	List(ctx context.Context, filter CategoryListFilter) ([]domain.Category, error)
}

// PromotionRepository maintains promotion definitions and usage counters.
type PromotionRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Promotion, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.Promotion, error)
	IncrementUsage(ctx context.Context, promotionID string, now time.Time) (domain.Promotion, error)
}

// OTPChallengeRepository stores verification code challenges. Create must
// invalidate every live challenge for the same session in the same
// transaction so at most one challenge is redeemable per session.
type OTPChallengeRepository interface {
	Create(ctx context.Context, challenge domain.OTPChallenge) (domain.OTPChallenge, error)
	FindLive(ctx context.Context, sessionID string) (domain.OTPChallenge, error)
	RecordAttempt(ctx context.Context, challengeID string, now time.Time) (domain.OTPChallenge, error)
	Consume(ctx context.Context, challengeID string, now time.Time) error
	InvalidateForSession(ctx context.Context, sessionID string, now time.Time) error
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// CounterConfig describes optional counter settings applied via Configure.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type ProductListFilter struct {
	CategoryID    string
	Brand         string
	Search        string
	OnlyPublished bool
	MinPrice      *int64
	MaxPrice      *int64
	Pagination    domain.Pagination
}

type CategoryListFilter struct {
	OnlyActive bool
}

package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/adraryacine/adel-computer-sub000/internal/platform/firestore"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	carts      *CartRepository
	orders     *OrderRepository
	products   *ProductRepository
	categories *CategoryRepository
	promotions *PromotionRepository
	otp        *OTPChallengeRepository
	counters   *CounterRepository
	health     repositories.HealthRepository
}

// NewRegistry constructs every Firestore repository against the shared
// provider. The health repository is supplied by the caller since its checks
// span dependencies beyond Firestore.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	promotions, err := NewPromotionRepository(provider)
	if err != nil {
		return nil, err
	}
	otp, err := NewOTPChallengeRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   provider,
		carts:      carts,
		orders:     orders,
		products:   products,
		categories: categories,
		promotions: promotions,
		otp:        otp,
		counters:   counters,
		health:     health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Carts() repositories.CartRepository               { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository             { return r.orders }
func (r *Registry) Products() repositories.ProductRepository         { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository      { return r.categories }
func (r *Registry) Promotions() repositories.PromotionRepository     { return r.promotions }
func (r *Registry) OTPChallenges() repositories.OTPChallengeRepository {
	return r.otp
}
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository    { return r.health }

// RunInTx executes fn inside a single Firestore transaction. Repositories
// pick the transaction up from the context, so a counter increment and the
// order insert of a confirmed checkout commit or fail together.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry: firestore provider is required")
	}
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(pfirestore.WithTx(ctx, tx))
	})
}

var _ repositories.Registry = (*Registry)(nil)

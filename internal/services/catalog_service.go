package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/platform/textutil"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid query parameters.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogProductNotFound indicates no active product matches the id or slug.
	ErrCatalogProductNotFound = errors.New("catalog service: product not found")
	// ErrCatalogUnavailable indicates the catalog backend cannot be reached.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Products   repositories.ProductRepository
	Categories repositories.CategoryRepository
	Promotions repositories.PromotionRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	promotions repositories.PromotionRepository
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		promotions: deps.Promotions,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// ListProducts pages through active catalog products, decorating each with its
// best storefront promotion.
func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) (CursorPage[PricedProduct], error) {
	if query.MinPrice != nil && query.MaxPrice != nil && *query.MinPrice > *query.MaxPrice {
		return CursorPage[PricedProduct]{}, fmt.Errorf("%w: min price exceeds max price", ErrCatalogInvalidInput)
	}

	filter := repositories.ProductListFilter{
		CategoryID:    strings.TrimSpace(query.CategoryID),
		Brand:         strings.TrimSpace(query.Brand),
		Search:        strings.TrimSpace(query.Search),
		OnlyPublished: true,
		MinPrice:      query.MinPrice,
		MaxPrice:      query.MaxPrice,
		Pagination:    query.Pagination,
	}

	page, err := s.products.List(ctx, filter)
	if err != nil {
		return CursorPage[PricedProduct]{}, s.mapRepositoryError(err)
	}

	promotions := s.activePromotions(ctx)
	priced := make([]PricedProduct, 0, len(page.Items))
	for _, product := range page.Items {
		priced = append(priced, s.priceProduct(product, promotions))
	}

	return CursorPage[PricedProduct]{Items: priced, NextPageToken: page.NextPageToken}, nil
}

// GetProduct resolves one active product by id, falling back to slug lookup.
func (s *catalogService) GetProduct(ctx context.Context, idOrSlug string) (PricedProduct, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return PricedProduct{}, fmt.Errorf("%w: product id or slug is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, key)
	if isRepoNotFound(err) {
		product, err = s.products.FindBySlug(ctx, key)
	}
	if err != nil {
		return PricedProduct{}, s.mapRepositoryError(err)
	}
	if !product.Active {
		return PricedProduct{}, ErrCatalogProductNotFound
	}

	return s.priceProduct(product, s.activePromotions(ctx)), nil
}

// ListCategories returns active categories ordered by position.
func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.categories.List(ctx, repositories.CategoryListFilter{OnlyActive: true})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return categories, nil
}

// activePromotions loads storefront-wide promotions. Failures degrade to
// undiscounted prices rather than breaking catalog reads.
func (s *catalogService) activePromotions(ctx context.Context) []domain.Promotion {
	if s.promotions == nil {
		return nil
	}
	promotions, err := s.promotions.ListActive(ctx, s.clock())
	if err != nil {
		s.logger(ctx, "catalog.promotions_unavailable", map[string]any{"error": err.Error()})
		return nil
	}
	return promotions
}

func (s *catalogService) priceProduct(product domain.Product, promotions []domain.Promotion) PricedProduct {
	product.Attributes = textutil.NormalizeStringMap(product.Attributes)

	priced := PricedProduct{Product: product, EffectiveUnitPrice: product.UnitPrice}
	if best, discount, ok := domain.BestPromotion(promotions, product.UnitPrice, s.clock()); ok && discount > 0 {
		priced.EffectiveUnitPrice = product.UnitPrice - discount
		priced.AppliedPromotion = best.Code
	}
	return priced
}

func (s *catalogService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}
	return err
}

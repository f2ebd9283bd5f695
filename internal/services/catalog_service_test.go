package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

type stubCategoryRepository struct {
	findFunc func(ctx context.Context, categoryID string) (domain.Category, error)
	listFunc func(ctx context.Context, filter repositories.CategoryListFilter) ([]domain.Category, error)
}

func (s *stubCategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, categoryID)
	}
	return domain.Category{}, &repositoryErrorStub{notFound: true}
}

func (s *stubCategoryRepository) List(ctx context.Context, filter repositories.CategoryListFilter) ([]domain.Category, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return nil, nil
}

func newCatalogServiceForTest(t *testing.T, products *stubProductRepository, categories *stubCategoryRepository, promotions *stubPromotionRepository) CatalogService {
	t.Helper()
	deps := CatalogServiceDeps{
		Products:   products,
		Categories: categories,
		Clock:      func() time.Time { return time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC) },
	}
	if promotions != nil {
		deps.Promotions = promotions
	}
	svc, err := NewCatalogService(deps)
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc
}

func catalogTestProduct() domain.Product {
	return domain.Product{
		ID:         "prod-gpu",
		Slug:       "rtx-4070-super",
		Name:       "GeForce RTX 4070 Super",
		Brand:      "MSI",
		CategoryID: "cat-gpu",
		UnitPrice:  9800000,
		Currency:   "DZD",
		Stock:      4,
		Active:     true,
		Attributes: map[string]string{" vram ": " 12GB ", "": "dropped"},
	}
}

func TestCatalogServiceListProductsAppliesBestPromotion(t *testing.T) {
	products := &stubProductRepository{
		listFunc: func(_ context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
			if !filter.OnlyPublished {
				t.Fatal("public listing must request published products only")
			}
			return domain.CursorPage[domain.Product]{Items: []domain.Product{catalogTestProduct()}, NextPageToken: "next"}, nil
		},
	}
	promotions := &stubPromotionRepository{
		listActiveFunc: func(context.Context, time.Time) ([]domain.Promotion, error) {
			return []domain.Promotion{
				{
					ID: "promo-ten", Code: "TEN", Type: domain.PromotionTypePercentage, Value: 10,
					Active:     true,
					ValidFrom:  time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
					ValidUntil: time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
					UsageLimit: 100,
				},
			}, nil
		},
	}
	svc := newCatalogServiceForTest(t, products, &stubCategoryRepository{}, promotions)

	page, err := svc.ListProducts(context.Background(), ProductListQuery{})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d", len(page.Items))
	}
	got := page.Items[0]
	if got.EffectiveUnitPrice != 8820000 {
		t.Fatalf("effective price = %d, want 8820000", got.EffectiveUnitPrice)
	}
	if got.AppliedPromotion != "TEN" {
		t.Fatalf("applied promotion = %q", got.AppliedPromotion)
	}
	if page.NextPageToken != "next" {
		t.Fatalf("next page token = %q", page.NextPageToken)
	}
}

func TestCatalogServiceListProductsDegradesWithoutPromotions(t *testing.T) {
	products := &stubProductRepository{
		listFunc: func(context.Context, repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
			return domain.CursorPage[domain.Product]{Items: []domain.Product{catalogTestProduct()}}, nil
		},
	}
	promotions := &stubPromotionRepository{
		listActiveFunc: func(context.Context, time.Time) ([]domain.Promotion, error) {
			return nil, &repositoryErrorStub{unavailable: true}
		},
	}
	svc := newCatalogServiceForTest(t, products, &stubCategoryRepository{}, promotions)

	page, err := svc.ListProducts(context.Background(), ProductListQuery{})
	if err != nil {
		t.Fatalf("ListProducts with failing promotions: %v", err)
	}
	if page.Items[0].EffectiveUnitPrice != 9800000 {
		t.Fatalf("expected full price when promotions are unavailable, got %d", page.Items[0].EffectiveUnitPrice)
	}
	if page.Items[0].AppliedPromotion != "" {
		t.Fatalf("unexpected applied promotion %q", page.Items[0].AppliedPromotion)
	}
}

func TestCatalogServiceListProductsRejectsInvertedPriceRange(t *testing.T) {
	svc := newCatalogServiceForTest(t, &stubProductRepository{}, &stubCategoryRepository{}, nil)

	min := int64(5000)
	max := int64(1000)
	_, err := svc.ListProducts(context.Background(), ProductListQuery{MinPrice: &min, MaxPrice: &max})
	if !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
	}
}

func TestCatalogServiceGetProductFallsBackToSlug(t *testing.T) {
	products := &stubProductRepository{
		findFunc: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, &repositoryErrorStub{notFound: true}
		},
		findSlugFunc: func(_ context.Context, slug string) (domain.Product, error) {
			if slug != "rtx-4070-super" {
				t.Fatalf("slug lookup got %q", slug)
			}
			return catalogTestProduct(), nil
		},
	}
	svc := newCatalogServiceForTest(t, products, &stubCategoryRepository{}, nil)

	got, err := svc.GetProduct(context.Background(), "rtx-4070-super")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.ID != "prod-gpu" {
		t.Fatalf("product id = %q", got.ID)
	}
	if got.Attributes["vram"] != "12GB" {
		t.Fatalf("attributes not normalised: %+v", got.Attributes)
	}
	if _, ok := got.Attributes[""]; ok {
		t.Fatal("empty attribute key should be dropped")
	}
}

func TestCatalogServiceGetProductHidesInactive(t *testing.T) {
	products := &stubProductRepository{
		findFunc: func(context.Context, string) (domain.Product, error) {
			p := catalogTestProduct()
			p.Active = false
			return p, nil
		},
	}
	svc := newCatalogServiceForTest(t, products, &stubCategoryRepository{}, nil)

	_, err := svc.GetProduct(context.Background(), "prod-gpu")
	if !errors.Is(err, ErrCatalogProductNotFound) {
		t.Fatalf("expected ErrCatalogProductNotFound, got %v", err)
	}
}

func TestCatalogServiceListCategoriesActiveOnly(t *testing.T) {
	categories := &stubCategoryRepository{
		listFunc: func(_ context.Context, filter repositories.CategoryListFilter) ([]domain.Category, error) {
			if !filter.OnlyActive {
				t.Fatal("public category listing must be active-only")
			}
			return []domain.Category{{ID: "cat-gpu", Name: "Graphics Cards", Active: true}}, nil
		},
	}
	svc := newCatalogServiceForTest(t, &stubProductRepository{}, categories, nil)

	got, err := svc.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 1 || got[0].ID != "cat-gpu" {
		t.Fatalf("categories = %+v", got)
	}
}

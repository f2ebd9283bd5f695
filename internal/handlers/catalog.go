package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/adraryacine/adel-computer-sub000/internal/platform/httpx"
	"github.com/adraryacine/adel-computer-sub000/internal/services"
)

const (
	defaultProductPageSize = 24
	maxProductPageSize     = 100
)

// CatalogHandlers exposes the public, unauthenticated storefront catalog.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs handlers for catalog browsing endpoints.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers the catalog endpoints under the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/categories", h.listCategories)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	listQuery := services.ProductListQuery{
		CategoryID: strings.TrimSpace(query.Get("category_id")),
		Brand:      strings.TrimSpace(query.Get("brand")),
		Search:     strings.TrimSpace(query.Get("search")),
	}

	if raw := strings.TrimSpace(query.Get("min_price")); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_price must be a non-negative integer", http.StatusBadRequest))
			return
		}
		listQuery.MinPrice = &price
	}
	if raw := strings.TrimSpace(query.Get("max_price")); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "max_price must be a non-negative integer", http.StatusBadRequest))
			return
		}
		listQuery.MaxPrice = &price
	}

	pageSize := defaultProductPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultProductPageSize
		case size > maxProductPageSize:
			pageSize = maxProductPageSize
		default:
			pageSize = size
		}
	}
	listQuery.Pagination = services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}

	page, err := h.catalog.ListProducts(ctx, listQuery)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}

	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		items = append(items, categoryPayload{
			ID:       category.ID,
			Slug:     category.Slug,
			Name:     category.Name,
			Position: category.Position,
		})
	}

	writeJSONResponse(w, http.StatusOK, categoryListResponse{Items: items})
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID                 string            `json:"id"`
	Slug               string            `json:"slug"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	Brand              string            `json:"brand,omitempty"`
	CategoryID         string            `json:"category_id,omitempty"`
	UnitPrice          int64             `json:"unit_price"`
	EffectiveUnitPrice int64             `json:"effective_unit_price"`
	AppliedPromotion   string            `json:"applied_promotion,omitempty"`
	Currency           string            `json:"currency"`
	Stock              int               `json:"stock"`
	ImageURL           string            `json:"image_url,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

type categoryListResponse struct {
	Items []categoryPayload `json:"items"`
}

type categoryPayload struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

func buildProductPayload(product services.PricedProduct) productPayload {
	return productPayload{
		ID:                 product.ID,
		Slug:               product.Slug,
		Name:               product.Name,
		Description:        product.Description,
		Brand:              product.Brand,
		CategoryID:         product.CategoryID,
		UnitPrice:          product.UnitPrice,
		EffectiveUnitPrice: product.EffectiveUnitPrice,
		AppliedPromotion:   product.AppliedPromotion,
		Currency:           strings.ToUpper(strings.TrimSpace(product.Currency)),
		Stock:              product.Stock,
		ImageURL:           product.ImageURL,
		Attributes:         product.Attributes,
	}
}

package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	pfirestore "github.com/adraryacine/adel-computer-sub000/internal/platform/firestore"
	"github.com/adraryacine/adel-computer-sub000/internal/platform/pagination"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

const productsCollection = "products"

// ProductRepository serves catalog product documents from Firestore.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{base: base}, nil
}

// FindByID fetches a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(productID, doc.Data), nil
}

// FindBySlug resolves a product by its URL slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return domain.Product{}, errors.New("product repository: slug is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.WrapError("products.find_by_slug", status.Error(codes.NotFound, "product not found"))
	}
	return decodeProductDocument(docs[0].ID, docs[0].Data), nil
}

// List returns products matching the filter ordered by name. Search matching
// happens against a lowercase keyword field maintained at write time.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := 0
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: invalid page token: %w", err)
		}
		if len(cursor.StartAfter) != 2 {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: invalid page token: %w", pagination.ErrInvalidPageToken)
		}
		startAfter = cursor.StartAfter
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.OnlyPublished {
			q = q.Where("active", "==", true)
		}
		if categoryID := strings.TrimSpace(filter.CategoryID); categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
		if brand := strings.TrimSpace(filter.Brand); brand != "" {
			q = q.Where("brand", "==", brand)
		}
		if search != "" {
			q = q.Where("keywords", "array-contains", search)
		}
		if filter.MinPrice != nil {
			q = q.Where("unitPrice", ">=", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			q = q.Where("unitPrice", "<=", *filter.MaxPrice)
		}

		q = q.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		nextToken = encodeProductListToken(last.Data.Name, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Product, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeProductDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Product]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type productDocument struct {
	Slug        string            `firestore:"slug"`
	Name        string            `firestore:"name"`
	Description string            `firestore:"description,omitempty"`
	Brand       string            `firestore:"brand,omitempty"`
	CategoryID  string            `firestore:"categoryId"`
	UnitPrice   int64             `firestore:"unitPrice"`
	Currency    string            `firestore:"currency"`
	Stock       int               `firestore:"stock"`
	ImageURL    string            `firestore:"imageUrl,omitempty"`
	Attributes  map[string]string `firestore:"attributes,omitempty"`
	Keywords    []string          `firestore:"keywords,omitempty"`
	Active      bool              `firestore:"active"`
	CreatedAt   time.Time         `firestore:"createdAt"`
	UpdatedAt   time.Time         `firestore:"updatedAt"`
}

func decodeProductDocument(productID string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          productID,
		Slug:        doc.Slug,
		Name:        doc.Name,
		Description: doc.Description,
		Brand:       doc.Brand,
		CategoryID:  doc.CategoryID,
		UnitPrice:   doc.UnitPrice,
		Currency:    strings.ToUpper(strings.TrimSpace(doc.Currency)),
		Stock:       doc.Stock,
		ImageURL:    doc.ImageURL,
		Attributes:  doc.Attributes,
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func encodeProductListToken(name string, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{name, docID}})
	if err != nil {
		return ""
	}
	return token
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	pfirestore "github.com/adraryacine/adel-computer-sub000/internal/platform/firestore"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

const categoriesCollection = "categories"

// CategoryRepository serves catalog category documents from Firestore.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil)
	return &CategoryRepository{base: base}, nil
}

// FindByID fetches a single category.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}
	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategoryDocument(categoryID, doc.Data), nil
}

// List returns categories ordered by display position.
func (r *CategoryRepository) List(ctx context.Context, filter repositories.CategoryListFilter) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.OnlyActive {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("position", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, decodeCategoryDocument(doc.ID, doc.Data))
	}
	return categories, nil
}

type categoryDocument struct {
	Slug      string    `firestore:"slug"`
	Name      string    `firestore:"name"`
	Position  int       `firestore:"position"`
	Active    bool      `firestore:"active"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func decodeCategoryDocument(categoryID string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:        categoryID,
		Slug:      doc.Slug,
		Name:      doc.Name,
		Position:  doc.Position,
		Active:    doc.Active,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)

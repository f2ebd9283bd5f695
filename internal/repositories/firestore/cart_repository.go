package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	pfirestore "github.com/adraryacine/adel-computer-sub000/internal/platform/firestore"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists one cart document per user within Firestore. Items
// are embedded in the cart document; a shopper's cart is small by nature and
// is always read and written whole.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// UpsertCart writes the full cart document keyed by the owning user.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}

	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		userID = strings.TrimSpace(cart.ID)
	}
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	updatedAt := cart.UpdatedAt.UTC()
	if cart.UpdatedAt.IsZero() {
		updatedAt = now
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	doc := cartDocument{
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:     encodeCartItems(cart.Items),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}

	result, err := r.base.Set(ctx, userID, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cart
	saved.ID = userID
	saved.UserID = userID
	saved.Currency = doc.Currency
	saved.Items = decodeCartItems(doc.Items)
	saved.CreatedAt = createdAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// GetCart loads the cart document for the given user ID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	cart := domain.Cart{
		ID:       doc.ID,
		UserID:   doc.ID,
		Currency: strings.ToUpper(strings.TrimSpace(doc.Data.Currency)),
		Items:    decodeCartItems(doc.Data.Items),
		CreatedAt: func() time.Time {
			if !doc.Data.CreatedAt.IsZero() {
				return doc.Data.CreatedAt
			}
			return doc.CreateTime
		}(),
		UpdatedAt: func() time.Time {
			if !doc.UpdateTime.IsZero() {
				return doc.UpdateTime
			}
			return doc.Data.UpdatedAt
		}(),
	}
	return cart, nil
}

// DeleteCart removes the user's cart document. Deleting an absent cart is not
// an error.
func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Collection(cartCollection).Doc(uid).Delete(ctx); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}

func encodeCartItems(items []domain.CartItem) []cartItemDocument {
	if len(items) == 0 {
		return nil
	}
	out := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		doc := cartItemDocument{
			ProductID:  strings.TrimSpace(item.ProductID),
			Name:       strings.TrimSpace(item.Name),
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			ImageURL:   strings.TrimSpace(item.ImageURL),
			CategoryID: strings.TrimSpace(item.CategoryID),
			AddedAt:    item.AddedAt.UTC(),
		}
		if item.AvailableStock != nil {
			stock := *item.AvailableStock
			doc.AvailableStock = &stock
		}
		out = append(out, doc)
	}
	return out
}

func decodeCartItems(docs []cartItemDocument) []domain.CartItem {
	if len(docs) == 0 {
		return []domain.CartItem{}
	}
	out := make([]domain.CartItem, 0, len(docs))
	for _, doc := range docs {
		item := domain.CartItem{
			ProductID:  doc.ProductID,
			Name:       doc.Name,
			UnitPrice:  doc.UnitPrice,
			Quantity:   doc.Quantity,
			ImageURL:   doc.ImageURL,
			CategoryID: doc.CategoryID,
			AddedAt:    doc.AddedAt,
		}
		if doc.AvailableStock != nil {
			stock := *doc.AvailableStock
			item.AvailableStock = &stock
		}
		out = append(out, item)
	}
	return out
}

type cartDocument struct {
	Currency  string             `firestore:"currency"`
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID      string    `firestore:"productId"`
	Name           string    `firestore:"name"`
	UnitPrice      int64     `firestore:"unitPrice"`
	Quantity       int       `firestore:"quantity"`
	AvailableStock *int      `firestore:"availableStock,omitempty"`
	ImageURL       string    `firestore:"imageUrl,omitempty"`
	CategoryID     string    `firestore:"categoryId,omitempty"`
	AddedAt        time.Time `firestore:"addedAt"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)

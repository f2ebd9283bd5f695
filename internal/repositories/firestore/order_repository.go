package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	pfirestore "github.com/adraryacine/adel-computer-sub000/internal/platform/firestore"
	"github.com/adraryacine/adel-computer-sub000/internal/platform/pagination"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order documents created from confirmed checkouts.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := tx.Create(docRef, doc); err != nil {
			return pfirestore.WrapError("orders.insert", err)
		}
		return nil
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the persisted order state with the provided snapshot.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(orderID, doc.Data), nil
}

// List returns orders matching the filter ordered by most recent placement.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	userID := strings.TrimSpace(filter.UserID)
	if userID == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository: user id is required")
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
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statusFilters := normaliseStatuses(filter.Status)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", userID)
		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			q = q.Where("status", "in", statusFilters)
		}
		if filter.DateRange.From != nil {
			q = q.Where("placedAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("placedAt", "<=", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("placedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.PlacedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type orderDocument struct {
	Number    string                  `firestore:"number"`
	UserID    string                  `firestore:"userId"`
	Items     []cartItemDocument      `firestore:"items"`
	Details   orderDetailsDocument    `firestore:"details"`
	Pricing   orderPricingDocument    `firestore:"pricing"`
	Status    string                  `firestore:"status"`
	PlacedAt  time.Time               `firestore:"placedAt"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
	Discounts []orderDiscountDocument `firestore:"discounts,omitempty"`
}

type orderDetailsDocument struct {
	FullName string `firestore:"fullName"`
	Phone    string `firestore:"phone"`
	Email    string `firestore:"email,omitempty"`
	Wilaya   string `firestore:"wilaya"`
	Address  string `firestore:"address"`
	Notes    string `firestore:"notes,omitempty"`
}

type orderPricingDocument struct {
	Currency    string `firestore:"currency"`
	Subtotal    int64  `firestore:"subtotal"`
	Discount    int64  `firestore:"discount"`
	DeliveryFee int64  `firestore:"deliveryFee"`
	Total       int64  `firestore:"total"`
}

type orderDiscountDocument struct {
	Type        string `firestore:"type"`
	Code        string `firestore:"code"`
	Description string `firestore:"description,omitempty"`
	Amount      int64  `firestore:"amount"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Number: strings.TrimSpace(order.Number),
		UserID: strings.TrimSpace(order.UserID),
		Items:  encodeCartItems(order.Items),
		Details: orderDetailsDocument{
			FullName: strings.TrimSpace(order.Details.FullName),
			Phone:    strings.TrimSpace(order.Details.Phone),
			Email:    strings.TrimSpace(order.Details.Email),
			Wilaya:   strings.TrimSpace(order.Details.Wilaya),
			Address:  strings.TrimSpace(order.Details.Address),
			Notes:    strings.TrimSpace(order.Details.Notes),
		},
		Pricing: orderPricingDocument{
			Currency:    strings.ToUpper(strings.TrimSpace(order.Pricing.Currency)),
			Subtotal:    order.Pricing.Subtotal,
			Discount:    order.Pricing.Discount,
			DeliveryFee: order.Pricing.DeliveryFee,
			Total:       order.Pricing.Total,
		},
		Status:    strings.TrimSpace(string(order.Status)),
		PlacedAt:  order.PlacedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
	for _, discount := range order.Pricing.Discounts {
		doc.Discounts = append(doc.Discounts, orderDiscountDocument{
			Type:        strings.TrimSpace(discount.Type),
			Code:        strings.TrimSpace(discount.Code),
			Description: strings.TrimSpace(discount.Description),
			Amount:      discount.Amount,
		})
	}
	return doc
}

func decodeOrderDocument(orderID string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:     orderID,
		Number: doc.Number,
		UserID: doc.UserID,
		Items:  decodeCartItems(doc.Items),
		Details: domain.CustomerDetails{
			FullName: doc.Details.FullName,
			Phone:    doc.Details.Phone,
			Email:    doc.Details.Email,
			Wilaya:   doc.Details.Wilaya,
			Address:  doc.Details.Address,
			Notes:    doc.Details.Notes,
		},
		Pricing: domain.PricingBreakdown{
			Currency:    doc.Pricing.Currency,
			Subtotal:    doc.Pricing.Subtotal,
			Discount:    doc.Pricing.Discount,
			DeliveryFee: doc.Pricing.DeliveryFee,
			Total:       doc.Pricing.Total,
		},
		Status:    domain.OrderStatus(doc.Status),
		PlacedAt:  doc.PlacedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, discount := range doc.Discounts {
		order.Pricing.Discounts = append(order.Pricing.Discounts, domain.DiscountBreakdown{
			Type:        discount.Type,
			Code:        discount.Code,
			Description: discount.Description,
			Amount:      discount.Amount,
		})
	}
	return order
}

func encodeOrderListToken(placedAt time.Time, docID string) string {
	cursor := pagination.Cursor{StartAfter: []any{placedAt.UTC().Format(time.RFC3339Nano), docID}}
	token, err := pagination.EncodeToken(cursor)
	if err != nil {
		return ""
	}
	return token
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	rawTime, okTime := cursor.StartAfter[0].(string)
	docID, okID := cursor.StartAfter[1].(string)
	if !okTime || !okID {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	return ts, docID, nil
}

func normaliseStatuses(statuses []string) []string {
	if len(statuses) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(statuses))
	seen := make(map[string]struct{})
	for _, status := range statuses {
		trimmed := strings.ToLower(strings.TrimSpace(status))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

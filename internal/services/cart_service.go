package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: cart repository is required")
	errCartProductsRequired   = errors.New("cart service: product repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartInvalidQuantity indicates a quantity below the floor of one.
var ErrCartInvalidQuantity = errors.New("cart service: quantity must be at least 1")

// ErrCartItemNotFound indicates the cart holds no line for the product.
var ErrCartItemNotFound = errors.New("cart service: item not found")

// ErrCartProductNotFound indicates the catalog has no such product.
var ErrCartProductNotFound = errors.New("cart service: product not found")

// ErrCartProductUnavailable indicates the product cannot be added (inactive or out of stock).
var ErrCartProductUnavailable = errors.New("cart service: product unavailable")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// CartServiceDeps wires the repositories and ambient dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Products        repositories.ProductRepository
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

// cartService keeps the working copy of every cart in memory and writes each
// mutation through to the durable repository. The in-memory copy stays
// authoritative: a failed durable write is logged and reported as a warning,
// never rolled back.
type cartService struct {
	repo     repositories.CartRepository
	products repositories.ProductRepository
	newID    func() string
	now      func() time.Time
	currency string
	logger   func(context.Context, string, map[string]any)

	mu    sync.Mutex
	carts map[string]domain.Cart
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errCartProductsRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "DZD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	service := &cartService{
		repo:     deps.Repository,
		products: deps.Products,
		newID:    idGen,
		now:      func() time.Time { return deps.Clock().UTC() },
		currency: defaultCurrency,
		logger:   logger,
		carts:    make(map[string]domain.Cart),
	}
	return service, nil
}

// GetCart loads the cart for the user, creating an empty cart when absent.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return Cart{}, ErrCartInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, trimmed)
	if err != nil {
		return Cart{}, err
	}
	return cloneCart(cart), nil
}

// AddItem appends a product to the cart or merges into the existing line.
// The unit price and stock ceiling are captured from the catalog at add time;
// merged lines keep their original capture.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartMutationResult, error) {
	if s == nil || s.repo == nil {
		return CartMutationResult{}, ErrCartUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return CartMutationResult{}, ErrCartInvalidInput
	}
	quantity := cmd.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return CartMutationResult{}, ErrCartInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return CartMutationResult{}, err
	}

	result := CartMutationResult{}
	now := s.now()

	if idx := findItem(cart.Items, productID); idx >= 0 {
		line := cart.Items[idx]
		line.Quantity += quantity
		if clamped, adjusted := clampToStock(line.Quantity, line.AvailableStock); adjusted {
			line.Quantity = clamped
			result.StockAdjusted = true
		}
		cart.Items[idx] = line
	} else {
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return CartMutationResult{}, translateCartRepoError(err, ErrCartProductNotFound)
		}
		if !product.Active {
			return CartMutationResult{}, ErrCartProductUnavailable
		}
		if product.Stock <= 0 {
			return CartMutationResult{}, ErrCartProductUnavailable
		}
		stock := product.Stock
		line := domain.CartItem{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPrice:      product.UnitPrice,
			Quantity:       quantity,
			AvailableStock: &stock,
			ImageURL:       product.ImageURL,
			CategoryID:     product.CategoryID,
			AddedAt:        now,
		}
		if clamped, adjusted := clampToStock(line.Quantity, line.AvailableStock); adjusted {
			line.Quantity = clamped
			result.StockAdjusted = true
		}
		cart.Items = append(cart.Items, line)
	}

	cart.UpdatedAt = now
	result.StorageWarning = s.persistLocked(ctx, cart)
	result.Cart = cloneCart(cart)
	return result, nil
}

// UpdateItemQuantity replaces the quantity of an existing line. Quantities
// below one are rejected rather than treated as removals.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemQuantityCommand) (CartMutationResult, error) {
	if s == nil || s.repo == nil {
		return CartMutationResult{}, ErrCartUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return CartMutationResult{}, ErrCartInvalidInput
	}
	if cmd.Quantity < 1 {
		return CartMutationResult{}, ErrCartInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return CartMutationResult{}, err
	}

	idx := findItem(cart.Items, productID)
	if idx < 0 {
		return CartMutationResult{}, ErrCartItemNotFound
	}

	result := CartMutationResult{}
	line := cart.Items[idx]
	line.Quantity = cmd.Quantity
	if clamped, adjusted := clampToStock(line.Quantity, line.AvailableStock); adjusted {
		line.Quantity = clamped
		result.StockAdjusted = true
	}
	cart.Items[idx] = line
	cart.UpdatedAt = s.now()

	result.StorageWarning = s.persistLocked(ctx, cart)
	result.Cart = cloneCart(cart)
	return result, nil
}

// RemoveItem drops the line for the product. Removing an absent line succeeds.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartMutationResult, error) {
	if s == nil || s.repo == nil {
		return CartMutationResult{}, ErrCartUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return CartMutationResult{}, ErrCartInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return CartMutationResult{}, err
	}

	result := CartMutationResult{}
	if idx := findItem(cart.Items, productID); idx >= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		cart.UpdatedAt = s.now()
		result.StorageWarning = s.persistLocked(ctx, cart)
	}
	result.Cart = cloneCart(cart)
	return result, nil
}

// ClearCart removes every line. Used after order persistence succeeds and for
// the explicit clear endpoint.
func (s *cartService) ClearCart(ctx context.Context, userID string) (CartMutationResult, error) {
	if s == nil || s.repo == nil {
		return CartMutationResult{}, ErrCartUnavailable
	}
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return CartMutationResult{}, ErrCartInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, trimmed)
	if err != nil {
		return CartMutationResult{}, err
	}

	cart.Items = nil
	cart.UpdatedAt = s.now()
	s.carts[trimmed] = cart

	result := CartMutationResult{}
	if err := s.repo.DeleteCart(ctx, trimmed); err != nil && !isRepoNotFound(err) {
		s.logger(ctx, "cart.storage_write_failed", map[string]any{
			"userId": trimmed,
			"op":     "clear",
			"error":  err.Error(),
		})
		result.StorageWarning = true
	}
	result.Cart = cloneCart(cart)
	return result, nil
}

// loadLocked returns the working cart for the user, reading through to the
// repository on first access. A missing durable cart yields a fresh empty one;
// an undecodable or unavailable read is logged and degrades to an empty cart
// rather than blocking the shopper.
func (s *cartService) loadLocked(ctx context.Context, userID string) (domain.Cart, error) {
	if cart, ok := s.carts[userID]; ok {
		return cart, nil
	}

	cart, err := s.repo.GetCart(ctx, userID)
	switch {
	case err == nil:
		if cart.Currency == "" {
			cart.Currency = s.currency
		}
	case isRepoNotFound(err):
		cart = s.emptyCart(userID)
	default:
		s.logger(ctx, "cart.storage_read_failed", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		cart = s.emptyCart(userID)
	}

	s.carts[userID] = cart
	return cart, nil
}

func (s *cartService) emptyCart(userID string) domain.Cart {
	now := s.now()
	return domain.Cart{
		ID:        s.newID(),
		UserID:    userID,
		Currency:  s.currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// persistLocked writes the cart through to the repository and reports whether
// the write failed. The in-memory map is updated regardless.
func (s *cartService) persistLocked(ctx context.Context, cart domain.Cart) bool {
	s.carts[cart.UserID] = cart

	saved, err := s.repo.UpsertCart(ctx, cart)
	if err != nil {
		s.logger(ctx, "cart.storage_write_failed", map[string]any{
			"userId": cart.UserID,
			"cartId": cart.ID,
			"error":  err.Error(),
		})
		return true
	}
	if saved.ID != "" {
		s.carts[cart.UserID] = saved
	}
	return false
}

func findItem(items []domain.CartItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// clampToStock bounds a quantity by the advisory stock ceiling captured at add
// time. A nil ceiling means unknown stock and no clamping.
func clampToStock(quantity int, available *int) (int, bool) {
	if available == nil || *available <= 0 {
		return quantity, false
	}
	if quantity > *available {
		return *available, true
	}
	return quantity, false
}

func cloneCart(cart domain.Cart) domain.Cart {
	clone := cart
	clone.Items = cloneCartItems(cart.Items)
	return clone
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return nil
	}
	cloned := make([]domain.CartItem, len(items))
	for i, item := range items {
		cloned[i] = item
		if item.AvailableStock != nil {
			stock := *item.AvailableStock
			cloned[i].AvailableStock = &stock
		}
	}
	return cloned
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// translateCartRepoError maps repository categories onto cart sentinels,
// wrapping the original error for diagnostics.
func translateCartRepoError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return notFound
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}

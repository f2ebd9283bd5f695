package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
)

var (
	errCheckoutCartsRequired  = errors.New("checkout service: cart service is required")
	errCheckoutOrdersRequired = errors.New("checkout service: order service is required")
	errCheckoutOTPRequired    = errors.New("checkout service: otp service is required")
	errCheckoutClockRequired  = errors.New("checkout service: clock is required")
	errCheckoutFeesRequired   = errors.New("checkout service: delivery fee table is required")
)

// ErrCheckoutInvalidInput indicates the submitted customer details failed validation.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutUnknownRegion indicates the wilaya is not deliverable.
var ErrCheckoutUnknownRegion = errors.New("checkout service: unknown delivery region")

// ErrCheckoutCartEmpty indicates checkout cannot begin on an empty cart.
var ErrCheckoutCartEmpty = errors.New("checkout service: cart is empty")

// ErrCheckoutSessionNotFound indicates no session exists for the reference.
var ErrCheckoutSessionNotFound = errors.New("checkout service: session not found")

// ErrCheckoutInvalidState indicates the operation is not allowed in the session's current state.
var ErrCheckoutInvalidState = errors.New("checkout service: invalid state for operation")

// ErrCheckoutCodeMalformed indicates the submitted code is not exactly six digits.
// Malformed codes are rejected before the verifier is consulted.
var ErrCheckoutCodeMalformed = errors.New("checkout service: code must be six digits")

// ErrCheckoutCodeInvalid indicates the verifier rejected the code.
var ErrCheckoutCodeInvalid = errors.New("checkout service: code invalid")

// ErrCheckoutCodeExpired indicates the verifier reported an expired code.
var ErrCheckoutCodeExpired = errors.New("checkout service: code expired")

// ErrCheckoutIssuanceFailed indicates a verification code could not be issued.
var ErrCheckoutIssuanceFailed = errors.New("checkout service: code issuance failed")

// ErrCheckoutPersistenceFailed indicates the confirmed order could not be stored.
var ErrCheckoutPersistenceFailed = errors.New("checkout service: order persistence failed")

// ErrCheckoutInProgress indicates another submission for the session is still running.
var ErrCheckoutInProgress = errors.New("checkout service: submission already in progress")

// ErrCheckoutUnavailable indicates a collaborator cannot be reached.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

var (
	otpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)
	// Algerian mobile numbers: +213 or 0 prefix followed by 5/6/7 and eight digits.
	phonePattern = regexp.MustCompile(`^(?:\+213|0)[5-7][0-9]{8}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// CheckoutServiceDeps wires collaborators for the confirmation flow.
type CheckoutServiceDeps struct {
	Carts         CartService
	Orders        OrderService
	OTP           OTPService
	Promotions    PromotionService
	Notifications NotificationPublisher
	DeliveryFees  domain.DeliveryFeeTable
	Sanitizer     *bluemonday.Policy
	Clock         func() time.Time
	Logger        func(context.Context, string, map[string]any)
	IDGenerator   func() string
}

// checkoutService holds live sessions in memory. A session is keyed by its
// ULID and additionally indexed by user so a fresh begin replaces the user's
// unfinished session.
type checkoutService struct {
	carts         CartService
	orders        OrderService
	otp           OTPService
	promotions    PromotionService
	notifications NotificationPublisher
	fees          domain.DeliveryFeeTable
	sanitizer     *bluemonday.Policy
	now           func() time.Time
	logger        func(context.Context, string, map[string]any)
	newID         func() string

	mu           sync.Mutex
	sessions     map[string]domain.CheckoutSession
	userSessions map[string]string
	inFlight     map[string]bool
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errCheckoutCartsRequired
	}
	if deps.Orders == nil {
		return nil, errCheckoutOrdersRequired
	}
	if deps.OTP == nil {
		return nil, errCheckoutOTPRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}
	if deps.DeliveryFees.Known == nil {
		return nil, errCheckoutFeesRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}

	return &checkoutService{
		carts:         deps.Carts,
		orders:        deps.Orders,
		otp:           deps.OTP,
		promotions:    deps.Promotions,
		notifications: deps.Notifications,
		fees:          deps.DeliveryFees,
		sanitizer:     sanitizer,
		now:           func() time.Time { return deps.Clock().UTC() },
		logger:        logger,
		newID:         idGen,
		sessions:      make(map[string]domain.CheckoutSession),
		userSessions:  make(map[string]string),
		inFlight:      make(map[string]bool),
	}, nil
}

// BeginCheckout validates the customer details, freezes the cart into a
// snapshot, prices the order, and issues the verification code. The session
// only reaches AwaitingCode when issuance succeeds; an issuance failure leaves
// no session behind and surfaces ErrCheckoutIssuanceFailed so the shopper
// stays on the details step.
func (s *checkoutService) BeginCheckout(ctx context.Context, cmd BeginCheckoutCommand) (CheckoutSession, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CheckoutSession{}, ErrCheckoutInvalidInput
	}

	details, err := s.normalizeDetails(cmd.Details)
	if err != nil {
		return CheckoutSession{}, err
	}

	fee, ok := s.fees.Fee(details.Wilaya)
	if !ok {
		return CheckoutSession{}, ErrCheckoutUnknownRegion
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: load cart: %v", ErrCheckoutUnavailable, err)
	}
	if cart.ItemCount() == 0 {
		return CheckoutSession{}, ErrCheckoutCartEmpty
	}

	now := s.now()
	snapshot := domain.CartSnapshot{
		CartID:    cart.ID,
		Items:     cloneCartItems(cart.Items),
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
		Currency:  cart.Currency,
		TakenAt:   now,
	}

	pricing := domain.PricingBreakdown{
		Currency:    cart.Currency,
		Subtotal:    snapshot.Subtotal,
		DeliveryFee: fee,
	}

	var promotionID string
	if s.promotions != nil {
		eval, err := s.promotions.Evaluate(ctx, EvaluatePromotionCommand{
			Subtotal: snapshot.Subtotal,
			Currency: cart.Currency,
			Code:     cmd.PromotionCode,
		})
		switch {
		case err == nil:
			if eval.Applied {
				pricing.Discount = eval.Discount
				pricing.Discounts = eval.Breakdown
				promotionID = eval.PromotionID
			}
		case errors.Is(err, ErrPromotionNotFound):
			return CheckoutSession{}, fmt.Errorf("%w: unknown promotion code", ErrCheckoutInvalidInput)
		default:
			// Discounts are quoted best-effort; a flaky promotion backend
			// must not block checkout.
			s.logger(ctx, "checkout.promotion_evaluate_failed", map[string]any{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}
	pricing.Total = pricing.Subtotal - pricing.Discount + pricing.DeliveryFee

	session := domain.CheckoutSession{
		ID:            s.newID(),
		UserID:        userID,
		State:         domain.CheckoutStateCollectingDetails,
		Details:       details,
		Snapshot:      snapshot,
		Pricing:       pricing,
		PromotionCode: strings.ToUpper(strings.TrimSpace(cmd.PromotionCode)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	session.PromotionID = promotionID

	challenge, err := s.otp.IssueCode(ctx, IssueCodeCommand{
		SessionID:   session.ID,
		Destination: details.Email,
	})
	if err != nil {
		s.logger(ctx, "checkout.issue_code_failed", map[string]any{
			"userId":    userID,
			"sessionId": session.ID,
			"error":     err.Error(),
		})
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutIssuanceFailed, err)
	}

	session.State = domain.CheckoutStateAwaitingCode
	session.ChallengeID = challenge.ID
	session.UpdatedAt = s.now()

	s.mu.Lock()
	if previousID, ok := s.userSessions[userID]; ok {
		// A submission in flight keeps its session pinned; starting over
		// mid-verification would confirm an order against a replaced session.
		if s.inFlight[previousID] {
			s.mu.Unlock()
			return CheckoutSession{}, ErrCheckoutInProgress
		}
		if previous, exists := s.sessions[previousID]; exists && !previous.State.IsTerminal() {
			delete(s.sessions, previousID)
		}
	}
	s.sessions[session.ID] = session
	s.userSessions[userID] = session.ID
	s.mu.Unlock()

	s.logger(ctx, "checkout.session_started", map[string]any{
		"userId":    userID,
		"sessionId": session.ID,
		"total":     pricing.Total,
	})
	return cloneSession(session), nil
}

// ResendCode re-issues the verification code for a session awaiting one.
// Issuing invalidates every earlier code, so only the newest code verifies.
func (s *checkoutService) ResendCode(ctx context.Context, ref CheckoutSessionRef) (CheckoutSession, error) {
	session, err := s.lookup(ref)
	if err != nil {
		return CheckoutSession{}, err
	}
	if session.State != domain.CheckoutStateAwaitingCode {
		return CheckoutSession{}, ErrCheckoutInvalidState
	}

	if !s.acquireInFlight(session.ID) {
		return CheckoutSession{}, ErrCheckoutInProgress
	}
	defer s.releaseInFlight(session.ID)

	challenge, err := s.otp.IssueCode(ctx, IssueCodeCommand{
		SessionID:   session.ID,
		Destination: session.Details.Email,
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutIssuanceFailed, err)
	}

	s.mu.Lock()
	stored, ok := s.sessions[session.ID]
	if ok {
		stored.ChallengeID = challenge.ID
		stored.UpdatedAt = s.now()
		s.sessions[session.ID] = stored
	}
	s.mu.Unlock()
	if !ok {
		return CheckoutSession{}, ErrCheckoutSessionNotFound
	}

	s.logger(ctx, "checkout.code_resent", map[string]any{
		"sessionId":   session.ID,
		"challengeId": challenge.ID,
	})
	return cloneSession(stored), nil
}

// SubmitCode verifies the code and, on success, persists the order, clears
// the cart, and moves the session to Confirmed. The cart is only cleared once
// the order write succeeded; a persistence failure leaves the session in
// AwaitingCode with the cart intact.
func (s *checkoutService) SubmitCode(ctx context.Context, cmd SubmitCodeCommand) (CheckoutConfirmation, error) {
	code := strings.TrimSpace(cmd.Code)
	if !otpCodePattern.MatchString(code) {
		return CheckoutConfirmation{}, ErrCheckoutCodeMalformed
	}

	session, err := s.lookup(CheckoutSessionRef{UserID: cmd.UserID, SessionID: cmd.SessionID})
	if err != nil {
		return CheckoutConfirmation{}, err
	}
	if session.State != domain.CheckoutStateAwaitingCode {
		return CheckoutConfirmation{}, ErrCheckoutInvalidState
	}

	if !s.acquireInFlight(session.ID) {
		return CheckoutConfirmation{}, ErrCheckoutInProgress
	}
	defer s.releaseInFlight(session.ID)

	if err := s.otp.VerifyCode(ctx, session.ID, code); err != nil {
		switch {
		case errors.Is(err, ErrOTPCodeExpired):
			return CheckoutConfirmation{}, ErrCheckoutCodeExpired
		case errors.Is(err, ErrOTPCodeInvalid):
			return CheckoutConfirmation{}, ErrCheckoutCodeInvalid
		default:
			return CheckoutConfirmation{}, fmt.Errorf("%w: verify: %v", ErrCheckoutUnavailable, err)
		}
	}

	now := s.now()
	order, err := s.orders.CreateFromCheckout(ctx, CreateOrderCommand{
		UserID:      session.UserID,
		SessionID:   session.ID,
		Snapshot:    session.Snapshot,
		Details:     session.Details,
		Pricing:     session.Pricing,
		PromotionID: session.PromotionID,
		PlacedAt:    now,
	})
	if err != nil {
		s.logger(ctx, "checkout.order_persist_failed", map[string]any{
			"sessionId": session.ID,
			"userId":    session.UserID,
			"error":     err.Error(),
		})
		return CheckoutConfirmation{}, fmt.Errorf("%w: %v", ErrCheckoutPersistenceFailed, err)
	}

	if session.PromotionID != "" && s.promotions != nil {
		if err := s.promotions.MarkRedeemed(ctx, session.PromotionID); err != nil {
			s.logger(ctx, "checkout.promotion_redeem_failed", map[string]any{
				"sessionId":   session.ID,
				"promotionId": session.PromotionID,
				"error":       err.Error(),
			})
		}
	}

	confirmation := CheckoutConfirmation{Order: order}

	clearResult, err := s.carts.ClearCart(ctx, session.UserID)
	switch {
	case err != nil:
		s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
			"sessionId": session.ID,
			"userId":    session.UserID,
			"error":     err.Error(),
		})
		confirmation.CartStorageWarning = true
	case clearResult.StorageWarning:
		confirmation.CartStorageWarning = true
	}

	s.mu.Lock()
	stored, ok := s.sessions[session.ID]
	if ok {
		stored.State = domain.CheckoutStateConfirmed
		stored.OrderID = order.ID
		stored.UpdatedAt = s.now()
		s.sessions[session.ID] = stored
	}
	s.mu.Unlock()
	if !ok {
		stored = session
		stored.State = domain.CheckoutStateConfirmed
		stored.OrderID = order.ID
	}
	confirmation.Session = cloneSession(stored)

	if s.notifications != nil {
		if err := s.notifications.PublishOrderConfirmed(ctx, OrderConfirmedMessage{
			OrderID:     order.ID,
			OrderNumber: order.Number,
			UserID:      order.UserID,
			Total:       order.Pricing.Total,
			Currency:    order.Pricing.Currency,
			PlacedAt:    order.PlacedAt,
		}); err != nil {
			s.logger(ctx, "checkout.order_event_publish_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	s.logger(ctx, "checkout.order_confirmed", map[string]any{
		"sessionId": session.ID,
		"orderId":   order.ID,
		"number":    order.Number,
	})
	return confirmation, nil
}

// ReturnToDetails moves an AwaitingCode session back to the details step and
// invalidates its outstanding code.
func (s *checkoutService) ReturnToDetails(ctx context.Context, ref CheckoutSessionRef) (CheckoutSession, error) {
	session, err := s.lookup(ref)
	if err != nil {
		return CheckoutSession{}, err
	}
	if session.State != domain.CheckoutStateAwaitingCode {
		return CheckoutSession{}, ErrCheckoutInvalidState
	}

	// The outstanding code stays unusable: SubmitCode requires AwaitingCode,
	// and leaving CollectingDetails again issues a fresh code which
	// invalidates every earlier one.
	s.mu.Lock()
	stored, ok := s.sessions[session.ID]
	if ok {
		stored.State = domain.CheckoutStateCollectingDetails
		stored.ChallengeID = ""
		stored.UpdatedAt = s.now()
		s.sessions[session.ID] = stored
	}
	s.mu.Unlock()
	if !ok {
		return CheckoutSession{}, ErrCheckoutSessionNotFound
	}
	return cloneSession(stored), nil
}

// GetSession returns a copy of the session for the reference.
func (s *checkoutService) GetSession(ctx context.Context, ref CheckoutSessionRef) (CheckoutSession, error) {
	session, err := s.lookup(ref)
	if err != nil {
		return CheckoutSession{}, err
	}
	return cloneSession(session), nil
}

// acquireInFlight marks the session as having a mutation in flight. Submit and
// resend hold the mark for their whole duration so concurrent calls for the
// same session fail fast instead of racing the OTP state.
func (s *checkoutService) acquireInFlight(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionID] {
		return false
	}
	s.inFlight[sessionID] = true
	return true
}

func (s *checkoutService) releaseInFlight(sessionID string) {
	s.mu.Lock()
	delete(s.inFlight, sessionID)
	s.mu.Unlock()
}

func (s *checkoutService) lookup(ref CheckoutSessionRef) (domain.CheckoutSession, error) {
	userID := strings.TrimSpace(ref.UserID)
	sessionID := strings.TrimSpace(ref.SessionID)
	if userID == "" || sessionID == "" {
		return domain.CheckoutSession{}, ErrCheckoutInvalidInput
	}

	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok || session.UserID != userID {
		return domain.CheckoutSession{}, ErrCheckoutSessionNotFound
	}
	return session, nil
}

// normalizeDetails trims, NFC-normalises, sanitises, and validates customer
// details. Free-text fields pass through the strict HTML sanitiser so markup
// never reaches storage or delivery emails.
func (s *checkoutService) normalizeDetails(details CustomerDetails) (domain.CustomerDetails, error) {
	name := strings.TrimSpace(s.sanitizer.Sanitize(norm.NFC.String(details.FullName)))
	phone := strings.ReplaceAll(strings.TrimSpace(details.Phone), " ", "")
	email := strings.ToLower(strings.TrimSpace(details.Email))
	wilaya := strings.TrimSpace(details.Wilaya)
	address := strings.TrimSpace(s.sanitizer.Sanitize(norm.NFC.String(details.Address)))
	notes := strings.TrimSpace(s.sanitizer.Sanitize(norm.NFC.String(details.Notes)))

	if name == "" || address == "" || wilaya == "" {
		return domain.CustomerDetails{}, ErrCheckoutInvalidInput
	}
	if !phonePattern.MatchString(phone) {
		return domain.CustomerDetails{}, fmt.Errorf("%w: phone", ErrCheckoutInvalidInput)
	}
	if !emailPattern.MatchString(email) {
		return domain.CustomerDetails{}, fmt.Errorf("%w: email", ErrCheckoutInvalidInput)
	}

	return domain.CustomerDetails{
		FullName: name,
		Phone:    phone,
		Email:    email,
		Wilaya:   wilaya,
		Address:  address,
		Notes:    notes,
	}, nil
}

func cloneSession(session domain.CheckoutSession) domain.CheckoutSession {
	clone := session
	clone.Snapshot.Items = cloneCartItems(session.Snapshot.Items)
	if len(session.Pricing.Discounts) > 0 {
		discounts := make([]domain.DiscountBreakdown, len(session.Pricing.Discounts))
		copy(discounts, session.Pricing.Discounts)
		clone.Pricing.Discounts = discounts
	}
	return clone
}

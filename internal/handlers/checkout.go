package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/adraryacine/adel-computer-sub000/internal/platform/auth"
	"github.com/adraryacine/adel-computer-sub000/internal/platform/httpx"
	"github.com/adraryacine/adel-computer-sub000/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

// CheckoutHandlers exposes the verification-gated checkout flow for
// authenticated users.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers guarded by Firebase authentication.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.beginCheckout)
	r.Get("/{sessionID}", h.getSession)
	r.Post("/{sessionID}/resend", h.resendCode)
	r.Post("/{sessionID}/confirm", h.submitCode)
	r.Post("/{sessionID}/back", h.returnToDetails)
}

type beginCheckoutRequest struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Wilaya        string `json:"wilaya"`
	Address       string `json:"address"`
	Notes         string `json:"notes"`
	PromotionCode string `json:"promotion_code"`
}

type submitCodeRequest struct {
	Code string `json:"code"`
}

func (h *CheckoutHandlers) beginCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireCheckout(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req beginCheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	session, err := h.checkout.BeginCheckout(ctx, services.BeginCheckoutCommand{
		UserID: identity.UID,
		Details: services.CustomerDetails{
			FullName: strings.TrimSpace(req.FullName),
			Phone:    strings.TrimSpace(req.Phone),
			Email:    strings.TrimSpace(req.Email),
			Wilaya:   strings.TrimSpace(req.Wilaya),
			Address:  strings.TrimSpace(req.Address),
			Notes:    strings.TrimSpace(req.Notes),
		},
		PromotionCode: strings.TrimSpace(req.PromotionCode),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutSessionResponse{Session: buildCheckoutSessionPayload(session)})
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireCheckout(ctx, w)
	if !ok {
		return
	}

	sessionID, ok := requireSessionID(ctx, w, r)
	if !ok {
		return
	}

	session, err := h.checkout.GetSession(ctx, services.CheckoutSessionRef{
		UserID:    identity.UID,
		SessionID: sessionID,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{Session: buildCheckoutSessionPayload(session)})
}

func (h *CheckoutHandlers) resendCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireCheckout(ctx, w)
	if !ok {
		return
	}

	sessionID, ok := requireSessionID(ctx, w, r)
	if !ok {
		return
	}

	session, err := h.checkout.ResendCode(ctx, services.CheckoutSessionRef{
		UserID:    identity.UID,
		SessionID: sessionID,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{Session: buildCheckoutSessionPayload(session)})
}

func (h *CheckoutHandlers) submitCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireCheckout(ctx, w)
	if !ok {
		return
	}

	sessionID, ok := requireSessionID(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req submitCodeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	confirmation, err := h.checkout.SubmitCode(ctx, services.SubmitCodeCommand{
		UserID:    identity.UID,
		SessionID: sessionID,
		Code:      strings.TrimSpace(req.Code),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	resp := checkoutConfirmationResponse{
		Session: buildCheckoutSessionPayload(confirmation.Session),
		Order:   buildOrderPayload(confirmation.Order),
	}
	if confirmation.CartStorageWarning {
		resp.Warnings = append(resp.Warnings, cartWarningPayload{
			Code:    "storage_write_failed",
			Message: "the order is confirmed but clearing the saved cart failed",
		})
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *CheckoutHandlers) returnToDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireCheckout(ctx, w)
	if !ok {
		return
	}

	sessionID, ok := requireSessionID(ctx, w, r)
	if !ok {
		return
	}

	session, err := h.checkout.ReturnToDetails(ctx, services.CheckoutSessionRef{
		UserID:    identity.UID,
		SessionID: sessionID,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{Session: buildCheckoutSessionPayload(session)})
}

func (h *CheckoutHandlers) requireCheckout(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func requireSessionID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session id is required", http.StatusBadRequest))
		return "", false
	}
	return sessionID, true
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnknownRegion):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_region", "delivery is not available for this wilaya", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_session_not_found", "checkout session not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state", "operation not allowed in the session's current state", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutCodeMalformed):
		httpx.WriteError(ctx, w, httpx.NewError("code_malformed", "verification code must be six digits", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutCodeInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("code_invalid", "verification code is incorrect", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutCodeExpired):
		httpx.WriteError(ctx, w, httpx.NewError("code_expired", "verification code has expired; request a new one", http.StatusGone))
	case errors.Is(err, services.ErrCheckoutIssuanceFailed):
		httpx.WriteError(ctx, w, httpx.NewError("issuance_failed", "failed to send a verification code", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutPersistenceFailed):
		httpx.WriteError(ctx, w, httpx.NewError("order_persistence_failed", "order could not be saved; the cart is untouched", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrCheckoutInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("submission_in_progress", "a code submission is already being processed", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}

type checkoutSessionResponse struct {
	Session checkoutSessionPayload `json:"session"`
}

type checkoutConfirmationResponse struct {
	Session  checkoutSessionPayload `json:"session"`
	Order    orderPayload           `json:"order"`
	Warnings []cartWarningPayload   `json:"warnings,omitempty"`
}

type checkoutSessionPayload struct {
	ID            string                  `json:"id"`
	State         string                  `json:"state"`
	Details       customerDetailsPayload  `json:"details"`
	Snapshot      cartSnapshotPayload     `json:"snapshot"`
	Pricing       pricingBreakdownPayload `json:"pricing"`
	PromotionCode string                  `json:"promotion_code,omitempty"`
	OrderID       string                  `json:"order_id,omitempty"`
	CreatedAt     string                  `json:"created_at,omitempty"`
	UpdatedAt     string                  `json:"updated_at,omitempty"`
}

type customerDetailsPayload struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Wilaya   string `json:"wilaya"`
	Address  string `json:"address"`
	Notes    string `json:"notes,omitempty"`
}

type cartSnapshotPayload struct {
	Items     []cartItemPayload `json:"items"`
	ItemCount int               `json:"item_count"`
	Subtotal  int64             `json:"subtotal"`
	Currency  string            `json:"currency"`
	TakenAt   string            `json:"taken_at,omitempty"`
}

type pricingBreakdownPayload struct {
	Currency    string            `json:"currency"`
	Subtotal    int64             `json:"subtotal"`
	Discount    int64             `json:"discount"`
	DeliveryFee int64             `json:"delivery_fee"`
	Total       int64             `json:"total"`
	Discounts   []discountPayload `json:"discounts,omitempty"`
}

type discountPayload struct {
	Type        string `json:"type"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      int64  `json:"amount"`
}

func buildCheckoutSessionPayload(session services.CheckoutSession) checkoutSessionPayload {
	return checkoutSessionPayload{
		ID:            session.ID,
		State:         string(session.State),
		Details:       buildCustomerDetailsPayload(session.Details),
		Snapshot:      buildCartSnapshotPayload(session.Snapshot),
		Pricing:       buildPricingPayload(session.Pricing),
		PromotionCode: session.PromotionCode,
		OrderID:       session.OrderID,
		CreatedAt:     formatTime(session.CreatedAt),
		UpdatedAt:     formatTime(session.UpdatedAt),
	}
}

func buildCustomerDetailsPayload(details services.CustomerDetails) customerDetailsPayload {
	return customerDetailsPayload{
		FullName: details.FullName,
		Phone:    details.Phone,
		Email:    details.Email,
		Wilaya:   details.Wilaya,
		Address:  details.Address,
		Notes:    details.Notes,
	}
}

func buildCartSnapshotPayload(snapshot services.CartSnapshot) cartSnapshotPayload {
	return cartSnapshotPayload{
		Items:     buildCartItems(snapshot.Items),
		ItemCount: snapshot.ItemCount,
		Subtotal:  snapshot.Subtotal,
		Currency:  strings.ToUpper(strings.TrimSpace(snapshot.Currency)),
		TakenAt:   formatTime(snapshot.TakenAt),
	}
}

func buildPricingPayload(pricing services.PricingBreakdown) pricingBreakdownPayload {
	payload := pricingBreakdownPayload{
		Currency:    strings.ToUpper(strings.TrimSpace(pricing.Currency)),
		Subtotal:    pricing.Subtotal,
		Discount:    pricing.Discount,
		DeliveryFee: pricing.DeliveryFee,
		Total:       pricing.Total,
	}
	for _, discount := range pricing.Discounts {
		payload.Discounts = append(payload.Discounts, discountPayload{
			Type:        discount.Type,
			Code:        discount.Code,
			Description: discount.Description,
			Amount:      discount.Amount,
		})
	}
	return payload
}

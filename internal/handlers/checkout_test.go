package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/platform/auth"
	"github.com/adraryacine/adel-computer-sub000/internal/services"
)

func TestCheckoutHandlersBeginCheckoutSuccess(t *testing.T) {
	var captured services.BeginCheckoutCommand
	service := &stubCheckoutService{
		beginFunc: func(ctx context.Context, cmd services.BeginCheckoutCommand) (services.CheckoutSession, error) {
			captured = cmd
			return services.CheckoutSession{
				ID:     "cs_01",
				UserID: cmd.UserID,
				State:  domain.CheckoutStateAwaitingCode,
				Details: services.CustomerDetails{
					FullName: cmd.Details.FullName,
					Phone:    cmd.Details.Phone,
					Wilaya:   cmd.Details.Wilaya,
					Address:  cmd.Details.Address,
				},
				Snapshot: services.CartSnapshot{
					Items:     []services.CartItem{{ProductID: "prod-1", UnitPrice: 5200000, Quantity: 1}},
					ItemCount: 1,
					Subtotal:  5200000,
					Currency:  "DZD",
					TakenAt:   time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
				},
				Pricing: services.PricingBreakdown{
					Currency:    "DZD",
					Subtotal:    5200000,
					DeliveryFee: 50000,
					Total:       5250000,
				},
				CreatedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	body := `{"full_name":"Amine B","phone":"0550123456","wilaya":"Alger","address":"12 rue Didouche Mourad","promotion_code":"BACK2SCHOOL"}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-9"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if captured.UserID != "user-9" || captured.Details.Wilaya != "Alger" || captured.PromotionCode != "BACK2SCHOOL" {
		t.Fatalf("unexpected command captured %#v", captured)
	}

	var resp checkoutSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Session.ID != "cs_01" {
		t.Fatalf("expected session cs_01, got %q", resp.Session.ID)
	}
	if resp.Session.State != string(domain.CheckoutStateAwaitingCode) {
		t.Fatalf("expected awaiting_code state, got %q", resp.Session.State)
	}
	if resp.Session.Pricing.DeliveryFee != 50000 || resp.Session.Pricing.Total != 5250000 {
		t.Fatalf("unexpected pricing %#v", resp.Session.Pricing)
	}
	if resp.Session.Snapshot.ItemCount != 1 {
		t.Fatalf("expected snapshot item count 1, got %d", resp.Session.Snapshot.ItemCount)
	}
}

func TestCheckoutHandlersBeginCheckoutUnknownRegion(t *testing.T) {
	service := &stubCheckoutService{
		beginFunc: func(ctx context.Context, cmd services.BeginCheckoutCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{}, services.ErrCheckoutUnknownRegion
		},
	}
	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	body := `{"full_name":"Amine B","phone":"0550123456","wilaya":"Atlantis","address":"somewhere"}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if payload["error"] != "unknown_region" {
		t.Fatalf("expected unknown_region, got %v", payload["error"])
	}
}

func TestCheckoutHandlersBeginCheckoutEmptyCart(t *testing.T) {
	service := &stubCheckoutService{
		beginFunc: func(ctx context.Context, cmd services.BeginCheckoutCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{}, services.ErrCheckoutCartEmpty
		},
	}
	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"full_name":"A","phone":"0550123456","wilaya":"Oran","address":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestCheckoutHandlersResendCodeSuccess(t *testing.T) {
	var captured services.CheckoutSessionRef
	service := &stubCheckoutService{
		resendFunc: func(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error) {
			captured = ref
			return services.CheckoutSession{
				ID:     ref.SessionID,
				UserID: ref.UserID,
				State:  domain.CheckoutStateAwaitingCode,
			}, nil
		},
	}
	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/cs_01/resend", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-2"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.SessionID != "cs_01" || captured.UserID != "user-2" {
		t.Fatalf("unexpected ref captured %#v", captured)
	}
}

func TestCheckoutHandlersSubmitCodeConfirms(t *testing.T) {
	var captured services.SubmitCodeCommand
	service := &stubCheckoutService{
		submitFunc: func(ctx context.Context, cmd services.SubmitCodeCommand) (services.CheckoutConfirmation, error) {
			captured = cmd
			return services.CheckoutConfirmation{
				Session: services.CheckoutSession{
					ID:      cmd.SessionID,
					UserID:  cmd.UserID,
					State:   domain.CheckoutStateConfirmed,
					OrderID: "ord_01",
				},
				Order: services.Order{
					ID:     "ord_01",
					Number: "AC-2026-000042",
					UserID: cmd.UserID,
					Status: domain.OrderStatusPendingConfirmation,
					Pricing: services.PricingBreakdown{
						Currency:    "DZD",
						Subtotal:    5200000,
						DeliveryFee: 80000,
						Total:       5280000,
					},
					PlacedAt: time.Date(2026, 4, 2, 9, 10, 0, 0, time.UTC),
				},
				CartStorageWarning: true,
			}, nil
		},
	}
	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/cs_01/confirm", strings.NewReader(`{"code":"482916"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-3"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Code != "482916" || captured.SessionID != "cs_01" {
		t.Fatalf("unexpected command captured %#v", captured)
	}

	var resp checkoutConfirmationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Session.State != string(domain.CheckoutStateConfirmed) {
		t.Fatalf("expected confirmed state, got %q", resp.Session.State)
	}
	if resp.Order.OrderNumber != "AC-2026-000042" {
		t.Fatalf("expected order number AC-2026-000042, got %q", resp.Order.OrderNumber)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].Code != "storage_write_failed" {
		t.Fatalf("expected storage warning, got %#v", resp.Warnings)
	}
}

func TestCheckoutHandlersSubmitCodeErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"malformed", services.ErrCheckoutCodeMalformed, http.StatusBadRequest, "code_malformed"},
		{"invalid", services.ErrCheckoutCodeInvalid, http.StatusBadRequest, "code_invalid"},
		{"expired", services.ErrCheckoutCodeExpired, http.StatusGone, "code_expired"},
		{"wrong state", services.ErrCheckoutInvalidState, http.StatusConflict, "invalid_state"},
		{"in progress", services.ErrCheckoutInProgress, http.StatusConflict, "submission_in_progress"},
		{"persistence", services.ErrCheckoutPersistenceFailed, http.StatusServiceUnavailable, "order_persistence_failed"},
		{"not found", services.ErrCheckoutSessionNotFound, http.StatusNotFound, "checkout_session_not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCheckoutService{
				submitFunc: func(ctx context.Context, cmd services.SubmitCodeCommand) (services.CheckoutConfirmation, error) {
					return services.CheckoutConfirmation{}, tc.err
				},
			}
			handler := NewCheckoutHandlers(nil, service)
			router := chi.NewRouter()
			router.Route("/checkout", handler.Routes)

			req := httptest.NewRequest(http.MethodPost, "/checkout/cs_01/confirm", strings.NewReader(`{"code":"000000"}`))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("expected JSON body: %v", err)
			}
			if payload["error"] != tc.wantCode {
				t.Fatalf("expected error %q, got %v", tc.wantCode, payload["error"])
			}
		})
	}
}

func TestCheckoutHandlersReturnToDetails(t *testing.T) {
	service := &stubCheckoutService{
		backFunc: func(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error) {
			return services.CheckoutSession{
				ID:     ref.SessionID,
				UserID: ref.UserID,
				State:  domain.CheckoutStateCollectingDetails,
			}, nil
		},
	}
	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/cs_01/back", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-5"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp checkoutSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Session.State != string(domain.CheckoutStateCollectingDetails) {
		t.Fatalf("expected collecting_details state, got %q", resp.Session.State)
	}
}

func TestCheckoutHandlersGetSessionUnauthenticated(t *testing.T) {
	handler := NewCheckoutHandlers(nil, &stubCheckoutService{})
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/checkout/cs_01", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

type stubCheckoutService struct {
	beginFunc  func(ctx context.Context, cmd services.BeginCheckoutCommand) (services.CheckoutSession, error)
	resendFunc func(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error)
	submitFunc func(ctx context.Context, cmd services.SubmitCodeCommand) (services.CheckoutConfirmation, error)
	backFunc   func(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error)
	getFunc    func(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error)
}

func (s *stubCheckoutService) BeginCheckout(ctx context.Context, cmd services.BeginCheckoutCommand) (services.CheckoutSession, error) {
	if s.beginFunc != nil {
		return s.beginFunc(ctx, cmd)
	}
	return services.CheckoutSession{}, errors.New("not implemented")
}

func (s *stubCheckoutService) ResendCode(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error) {
	if s.resendFunc != nil {
		return s.resendFunc(ctx, ref)
	}
	return services.CheckoutSession{}, errors.New("not implemented")
}

func (s *stubCheckoutService) SubmitCode(ctx context.Context, cmd services.SubmitCodeCommand) (services.CheckoutConfirmation, error) {
	if s.submitFunc != nil {
		return s.submitFunc(ctx, cmd)
	}
	return services.CheckoutConfirmation{}, errors.New("not implemented")
}

func (s *stubCheckoutService) ReturnToDetails(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error) {
	if s.backFunc != nil {
		return s.backFunc(ctx, ref)
	}
	return services.CheckoutSession{}, errors.New("not implemented")
}

func (s *stubCheckoutService) GetSession(ctx context.Context, ref services.CheckoutSessionRef) (services.CheckoutSession, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, ref)
	}
	return services.CheckoutSession{}, errors.New("not implemented")
}

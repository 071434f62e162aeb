package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avelora/storefront/internal/checkout"
	"github.com/avelora/storefront/internal/domain"
	"github.com/avelora/storefront/pkg/httputil"
	"github.com/avelora/storefront/pkg/validator"
)

// CheckoutHandler handles HTTP requests from the mobile client driving a
// checkout session.
type CheckoutHandler struct {
	service *checkout.Service
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *checkout.Service, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// SubmitCheckoutRequest is the JSON request body for submitting a checkout.
type SubmitCheckoutRequest struct {
	AddressID string              `json:"address_id" validate:"required"`
	CartItems []CartLineRequest   `json:"cart_items,omitempty" validate:"omitempty,min=1,dive"`
	Direct    *DirectPurchaseItem `json:"direct,omitempty"`
}

// CartLineRequest selects one cart item for checkout.
type CartLineRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// DirectPurchaseItem describes a single-item purchase outside the cart.
type DirectPurchaseItem struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// NavigationEventRequest reports one navigation target visited inside the
// hosted payment page.
type NavigationEventRequest struct {
	Target string `json:"target" validate:"required"`
}

// --- Handlers ---

// SubmitCheckout handles POST /api/v1/checkout
func (h *CheckoutHandler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "X-User-ID header is required"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SubmitCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	checkoutReq := &domain.CheckoutRequest{
		AddressID: req.AddressID,
	}
	for _, line := range req.CartItems {
		checkoutReq.CartItems = append(checkoutReq.CartItems, domain.CartLine{
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}
	if req.Direct != nil {
		checkoutReq.Direct = &domain.DirectPurchase{
			ProductID: req.Direct.ProductID,
			VariantID: req.Direct.VariantID,
			Quantity:  req.Direct.Quantity,
		}
	}

	result, err := h.service.Submit(r.Context(), userID, checkoutReq)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// ReportNavigation handles POST /api/v1/checkout/{id}/navigation
func (h *CheckoutHandler) ReportNavigation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)

	var req NavigationEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	outcome, err := h.service.HandleNavigation(r.Context(), sessionID, req.Target)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if outcome == nil {
		// Irrelevant navigation; session still awaiting payment.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: outcome})
}

// ReportExit handles POST /api/v1/checkout/{id}/exit
func (h *CheckoutHandler) ReportExit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	outcome, err := h.service.HandleUserExit(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: outcome})
}

// GetSession handles GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	state, err := h.service.GetState(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

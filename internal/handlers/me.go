package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/zerno-shop/api/internal/domain"
	"github.com/zerno-shop/api/internal/platform/auth"
	"github.com/zerno-shop/api/internal/platform/httpx"
	"github.com/zerno-shop/api/internal/services"
)

const maxRequestBodySize = 64 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// MeHandlers exposes the authenticated shopper's profile, checkout and payment endpoints.
type MeHandlers struct {
	verifier auth.TokenVerifier
	users    services.UserService
	orders   services.OrderService
	payments services.PaymentService
}

// NewMeHandlers constructs handlers enforcing token authentication before invoking the services.
func NewMeHandlers(verifier auth.TokenVerifier, users services.UserService, orders services.OrderService, payments services.PaymentService) *MeHandlers {
	return &MeHandlers{
		verifier: verifier,
		users:    users,
		orders:   orders,
		payments: payments,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.verifier != nil {
		r.Use(auth.RequireAuth(h.verifier))
	}
	r.Get("/", h.getProfile)
	r.Put("/", h.updateProfile)
	r.Put("/order", h.createOrder)
	r.Get("/order", h.orderStatus)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UserID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	profile, err := h.users.GetProfile(ctx, identity.UserID)
	if err != nil {
		writeProfileError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, meResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UserID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateProfileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	cmd := services.UpdateProfileCommand{
		UserID:  identity.UserID,
		Email:   req.Email,
		Name:    req.Name,
		Surname: req.Surname,
		Phone:   req.Phone,
		Address: req.Address,
		Cart:    make([]domain.CartItem, 0, len(req.Cart)),
	}
	for _, item := range req.Cart {
		cmd.Cart = append(cmd.Cart, domain.CartItem{
			ProductID: item.ProductID,
			Variant:   item.Variant,
			Quantity:  item.Count,
		})
	}

	updated, err := h.users.UpdateProfile(ctx, cmd)
	if err != nil {
		writeProfileError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, meResponse{Profile: buildProfilePayload(updated)})
}

func (h *MeHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UserID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	result, err := h.orders.CreateFromCart(ctx, services.CreateOrderCommand{
		UserID:          identity.UserID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		ShippingAddress: req.Address,
		PaymentMethod:   domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := checkoutResponse{
		Order:  buildOrderPayload(result.Order),
		Status: string(result.Status),
	}
	if result.RedirectURL != "" {
		payload.RedirectURL = result.RedirectURL
	}
	writeJSONResponse(w, http.StatusCreated, payload)
}

func (h *MeHandlers) orderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UserID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var orderID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("orderId")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId must be a positive integer", http.StatusBadRequest))
			return
		}
		orderID = parsed
	}

	outcome, err := h.payments.Reconcile(ctx, services.ReconcileCommand{
		UserID:  identity.UserID,
		OrderID: orderID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentStatusResponse{
		Order:  buildOrderPayload(outcome.Order),
		Status: string(outcome.Status),
	})
}

type meResponse struct {
	Profile profilePayload `json:"profile"`
}

type profilePayload struct {
	ID      int64             `json:"id"`
	Email   string            `json:"email"`
	Name    string            `json:"name,omitempty"`
	Surname string            `json:"surname,omitempty"`
	Phone   string            `json:"phone,omitempty"`
	Address string            `json:"address,omitempty"`
	Cart    []cartItemPayload `json:"cart"`
	Orders  []int64           `json:"orders"`
}

type cartItemPayload struct {
	ProductID int64  `json:"id"`
	Variant   string `json:"variant,omitempty"`
	Count     int    `json:"count"`
}

type updateProfileRequest struct {
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	Surname string            `json:"surname"`
	Phone   string            `json:"phone"`
	Address string            `json:"address"`
	Cart    []cartItemPayload `json:"cart"`
}

type createOrderRequest struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
}

type checkoutResponse struct {
	Order       orderPayload `json:"order"`
	RedirectURL string       `json:"redirectUrl,omitempty"`
	Status      string       `json:"status"`
}

type paymentStatusResponse struct {
	Order  orderPayload `json:"order"`
	Status string       `json:"status"`
}

type orderPayload struct {
	ID             int64              `json:"id"`
	Reference      string             `json:"reference"`
	Items          []orderItemPayload `json:"items"`
	Total          int64              `json:"total"`
	Currency       string             `json:"currency"`
	PaymentMethod  string             `json:"paymentMethod"`
	Paid           bool               `json:"paid"`
	CreatedAt      string             `json:"createdAt"`
	CreatedAtLocal string             `json:"createdAtLocal,omitempty"`
}

type orderItemPayload struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Variant   string `json:"variant,omitempty"`
	Price     int64  `json:"price"`
	Count     int    `json:"count"`
	Subtotal  int64  `json:"subtotal"`
}

func buildProfilePayload(profile domain.UserProfile) profilePayload {
	payload := profilePayload{
		ID:      profile.ID,
		Email:   profile.Email,
		Name:    profile.Name,
		Surname: profile.Surname,
		Phone:   profile.Phone,
		Address: profile.Address,
		Cart:    make([]cartItemPayload, 0, len(profile.Cart)),
		Orders:  make([]int64, 0, len(profile.OrderIDs)),
	}
	for _, item := range profile.Cart {
		payload.Cart = append(payload.Cart, cartItemPayload{
			ProductID: item.ProductID,
			Variant:   item.Variant,
			Count:     item.Quantity,
		})
	}
	payload.Orders = append(payload.Orders, profile.OrderIDs...)
	return payload
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:             order.ID,
		Reference:      order.Reference,
		Items:          make([]orderItemPayload, 0, len(order.Lines)),
		Total:          order.Total,
		Currency:       order.Currency,
		PaymentMethod:  string(order.Customer.PaymentMethod),
		Paid:           order.Paid,
		CreatedAtLocal: order.CreatedAtLocal,
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = order.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, line := range order.Lines {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID: line.ProductID,
			Name:      line.Name,
			Variant:   line.Variant,
			Price:     line.UnitPrice,
			Count:     line.Quantity,
			Subtotal:  line.Subtotal(),
		})
	}
	return payload
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProfileError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrDuplicateEmail):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email is already in use by another account", http.StatusConflict))
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_profile", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("profile_error", err.Error(), http.StatusInternalServerError))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_product", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_variant", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderUnavailable), errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", err.Error(), http.StatusInternalServerError))
	}
}

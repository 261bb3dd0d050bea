package services

import (
	"context"
	"errors"

	domain "github.com/zerno-shop/api/internal/domain"
	"github.com/zerno-shop/api/internal/payments"
	"github.com/zerno-shop/api/internal/repositories"
)

// ErrPaymentInvalidInput indicates the caller supplied invalid reconciliation parameters.
var ErrPaymentInvalidInput = errors.New("payment: invalid input")

// PaymentServiceDeps wires the dependencies required by the payment service.
type PaymentServiceDeps struct {
	Users    repositories.UserRepository
	Orders   repositories.OrderRepository
	Gateway  payments.Provider
	Notifier Notifier
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	users    repositories.UserRepository
	orders   repositories.OrderRepository
	gateway  payments.Provider
	notifier Notifier
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewPaymentService constructs a PaymentService validating required dependencies.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Users == nil {
		return nil, errors.New("payment service: user repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: payment gateway is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentService{
		users:    deps.Users,
		orders:   deps.Orders,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		logger:   logger,
	}, nil
}

// Reconcile checks the order's payment state against the gateway. It is
// idempotent: an order already marked paid reports success without any gateway
// call, and a repeated confirmation never re-sends the side effects.
func (s *paymentService) Reconcile(ctx context.Context, cmd ReconcileCommand) (PaymentOutcome, error) {
	if cmd.UserID <= 0 {
		return PaymentOutcome{}, ErrPaymentInvalidInput
	}

	user, err := s.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return PaymentOutcome{}, translateOrderError(err)
	}

	orderID := cmd.OrderID
	if orderID == 0 {
		orderID = user.LastOrderID()
	}
	if orderID <= 0 || !ownsOrder(user, orderID) {
		return PaymentOutcome{}, ErrOrderNotFound
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentOutcome{}, translateOrderError(err)
	}

	if order.Paid {
		return PaymentOutcome{Order: order, Status: domain.PaymentStatusSuccess}, nil
	}

	if order.IsCash() {
		if s.notifier != nil {
			s.notifier.CashOrderPlaced(ctx, order)
		}
		return PaymentOutcome{Order: order, Status: domain.PaymentStatusPending}, nil
	}

	result, err := s.gateway.CheckStatus(ctx, payments.StatusRequest{OrderReference: order.Reference})
	if err != nil {
		s.logger(ctx, "payment_status_check_failed", map[string]any{
			"order_id":  order.ID,
			"reference": order.Reference,
			"error":     err.Error(),
		})
		return PaymentOutcome{Order: order, Status: domain.PaymentStatusError}, nil
	}

	if !result.Confirmed {
		s.logger(ctx, "payment_not_confirmed", map[string]any{
			"order_id":    order.ID,
			"reference":   order.Reference,
			"reason_code": result.ReasonCode,
		})
		return PaymentOutcome{Order: order, Status: domain.PaymentStatusError}, nil
	}

	if err := s.orders.MarkPaid(ctx, order.ID); err != nil {
		return PaymentOutcome{}, translateOrderError(err)
	}
	order.Paid = true

	// The cart survives until payment confirms so an abandoned gateway session
	// does not empty it.
	user.Cart = nil
	if _, err := s.users.Update(ctx, user); err != nil {
		s.logger(ctx, "cart_clear_failed", map[string]any{
			"user_id":  user.ID,
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}

	if s.notifier != nil {
		s.notifier.PaymentConfirmed(ctx, order)
	}

	s.logger(ctx, "payment_confirmed", map[string]any{
		"order_id":  order.ID,
		"reference": order.Reference,
	})
	return PaymentOutcome{Order: order, Status: domain.PaymentStatusSuccess}, nil
}

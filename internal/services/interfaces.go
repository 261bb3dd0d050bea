package services

import (
	"context"

	domain "github.com/zerno-shop/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	PaymentMethod = domain.PaymentMethod
	PaymentStatus = domain.PaymentStatus
	CartItem      = domain.CartItem
	Order         = domain.Order
	OrderLineItem = domain.OrderLineItem
	UserProfile   = domain.UserProfile
)

// UserService manages the authenticated shopper's profile and stored cart.
type UserService interface {
	GetProfile(ctx context.Context, userID int64) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
}

// OrderService turns the stored cart into orders and reads them back.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (CheckoutResult, error)
	GetOrder(ctx context.Context, userID, orderID int64) (Order, error)
	LastOrder(ctx context.Context, userID int64) (Order, error)
}

// PaymentService reconciles order payment state against the gateway.
type PaymentService interface {
	Reconcile(ctx context.Context, cmd ReconcileCommand) (PaymentOutcome, error)
}

// UpdateProfileCommand carries a full profile replacement for the given user.
// The cart is replaced wholesale; item prices are never accepted from the client.
type UpdateProfileCommand struct {
	UserID  int64
	Email   string
	Name    string
	Surname string
	Phone   string
	Address string
	Cart    []CartItem
}

// CreateOrderCommand captures the checkout form. Order lines come from the
// user's stored cart, not from the command.
type CreateOrderCommand struct {
	UserID          int64
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	ShippingAddress string
	PaymentMethod   PaymentMethod
}

// CheckoutResult is the outcome of order creation. RedirectURL is set only for
// card payments that were successfully submitted to the gateway.
type CheckoutResult struct {
	Order       Order
	RedirectURL string
	Status      PaymentStatus
}

// ReconcileCommand identifies the order whose payment state should be checked.
// A zero OrderID means the user's most recent order.
type ReconcileCommand struct {
	UserID  int64
	OrderID int64
}

// PaymentOutcome reports the reconciled payment state of an order.
type PaymentOutcome struct {
	Order  Order
	Status PaymentStatus
}

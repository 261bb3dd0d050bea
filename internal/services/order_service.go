package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/zerno-shop/api/internal/domain"
	"github.com/zerno-shop/api/internal/payments"
	"github.com/zerno-shop/api/internal/repositories"
)

const (
	defaultOrderCurrency = "UAH"
	localTimeZone        = "Europe/Kyiv"
	localTimeLayout      = "02.01.2006 15:04"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid checkout parameters.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist or does not belong to the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderUnavailable indicates the backing store is unreachable.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// Notifier sends order lifecycle emails. Implementations must be safe to call
// on the request path; failures stay inside the notifier.
type Notifier interface {
	OrderPlaced(ctx context.Context, order domain.Order)
	CashOrderPlaced(ctx context.Context, order domain.Order)
	PaymentConfirmed(ctx context.Context, order domain.Order)
}

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Users    repositories.UserRepository
	Orders   repositories.OrderRepository
	Catalog  repositories.CatalogRepository
	Gateway  payments.Provider
	Notifier Notifier
	Clock    func() time.Time
	RefGen   func() string
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Currency string
	// ReturnURL is where the gateway sends the customer after payment.
	ReturnURL string
}

type orderService struct {
	users     repositories.UserRepository
	orders    repositories.OrderRepository
	catalog   repositories.CatalogRepository
	gateway   payments.Provider
	notifier  Notifier
	now       func() time.Time
	refGen    func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
	currency  string
	returnURL string
	local     *time.Location
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	refGen := deps.RefGen
	if refGen == nil {
		refGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	currency := strings.TrimSpace(deps.Currency)
	if currency == "" {
		currency = defaultOrderCurrency
	}

	local, err := time.LoadLocation(localTimeZone)
	if err != nil {
		local = time.UTC
	}

	return &orderService{
		users:     deps.Users,
		orders:    deps.Orders,
		catalog:   deps.Catalog,
		gateway:   deps.Gateway,
		notifier:  deps.Notifier,
		now:       func() time.Time { return clock().UTC() },
		refGen:    refGen,
		logger:    logger,
		currency:  currency,
		returnURL: strings.TrimSpace(deps.ReturnURL),
		local:     local,
	}, nil
}

// CreateFromCart prices the user's stored cart against the catalogue, replaces
// any still-unpaid previous order, persists the new one, and for card payments
// submits it to the gateway.
func (s *orderService) CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (CheckoutResult, error) {
	if err := validateCreateOrder(cmd); err != nil {
		return CheckoutResult{}, err
	}

	user, err := s.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return CheckoutResult{}, translateOrderError(err)
	}

	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return CheckoutResult{}, translateOrderError(err)
	}

	resolved, err := ResolveCart(user.Cart, catalog)
	if err != nil {
		return CheckoutResult{}, err
	}

	// A user has at most one pending order: an unpaid last order is replaced,
	// never accumulated.
	user.OrderIDs, err = s.dropPendingOrder(ctx, user.OrderIDs)
	if err != nil {
		return CheckoutResult{}, translateOrderError(err)
	}

	createdAt := s.now()
	order := domain.Order{
		Reference: s.refGen(),
		Customer: domain.OrderCustomer{
			FirstName:       strings.TrimSpace(cmd.FirstName),
			LastName:        strings.TrimSpace(cmd.LastName),
			Email:           strings.ToLower(strings.TrimSpace(cmd.Email)),
			Phone:           strings.TrimSpace(cmd.Phone),
			ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
			PaymentMethod:   cmd.PaymentMethod,
		},
		Lines:          resolved.Lines,
		Total:          resolved.Total,
		Currency:       s.currency,
		CreatedAt:      createdAt,
		CreatedAtLocal: createdAt.In(s.local).Format(localTimeLayout),
	}

	created, err := s.orders.Insert(ctx, order)
	if err != nil {
		return CheckoutResult{}, translateOrderError(err)
	}

	user.OrderIDs = append(user.OrderIDs, created.ID)
	if created.IsCash() {
		// Cash orders need no payment step; the cart's job is done.
		user.Cart = nil
	}
	if _, err := s.users.Update(ctx, user); err != nil {
		return CheckoutResult{}, translateOrderError(err)
	}

	s.logger(ctx, "order_created", map[string]any{
		"order_id":  created.ID,
		"reference": created.Reference,
		"total":     created.Total,
		"method":    string(created.Customer.PaymentMethod),
	})

	if created.IsCash() {
		return CheckoutResult{Order: created, Status: domain.PaymentStatusPending}, nil
	}

	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, created)
	}

	page, err := s.gateway.CreatePayment(ctx, payments.PaymentRequest{
		OrderReference: created.Reference,
		OrderDate:      created.CreatedAt,
		Amount:         created.Total,
		Currency:       created.Currency,
		Names:          resolved.Names,
		Prices:         resolved.Prices,
		Counts:         resolved.Counts,
		Client: payments.ClientInfo{
			Email:     created.Customer.Email,
			Phone:     created.Customer.Phone,
			FirstName: created.Customer.FirstName,
			LastName:  created.Customer.LastName,
		},
		ReturnURL: paymentReturnURL(s.returnURL, created.ID),
	})
	if err != nil {
		// The order exists either way; the client can retry payment from the
		// order page, so gateway failures degrade rather than abort.
		s.logger(ctx, "payment_initiation_failed", map[string]any{
			"order_id":  created.ID,
			"reference": created.Reference,
			"error":     err.Error(),
		})
		return CheckoutResult{Order: created, Status: domain.PaymentStatusError}, nil
	}

	return CheckoutResult{
		Order:       created,
		RedirectURL: page.RedirectURL,
		Status:      domain.PaymentStatusPending,
	}, nil
}

// GetOrder returns the order only when it belongs to the calling user.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (Order, error) {
	if userID <= 0 || orderID <= 0 {
		return Order{}, ErrOrderInvalidInput
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	if !ownsOrder(user, orderID) {
		return Order{}, ErrOrderNotFound
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	return order, nil
}

// LastOrder returns the user's most recent order.
func (s *orderService) LastOrder(ctx context.Context, userID int64) (Order, error) {
	if userID <= 0 {
		return Order{}, ErrOrderInvalidInput
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	lastID := user.LastOrderID()
	if lastID == 0 {
		return Order{}, ErrOrderNotFound
	}

	order, err := s.orders.FindByID(ctx, lastID)
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	return order, nil
}

// dropPendingOrder deletes the user's last order when it is still unpaid and
// returns the order id list without it. Paid orders are never touched.
func (s *orderService) dropPendingOrder(ctx context.Context, orderIDs []int64) ([]int64, error) {
	if len(orderIDs) == 0 {
		return orderIDs, nil
	}
	lastID := orderIDs[len(orderIDs)-1]

	last, err := s.orders.FindByID(ctx, lastID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// Already gone; just unlink it.
			return orderIDs[:len(orderIDs)-1], nil
		}
		return orderIDs, err
	}
	if last.Paid {
		return orderIDs, nil
	}

	if err := s.orders.Delete(ctx, lastID); err != nil {
		return orderIDs, err
	}
	return orderIDs[:len(orderIDs)-1], nil
}

// paymentReturnURL appends the order id to the configured return URL so the
// landing page can reconcile the exact order the customer just paid for, not
// whichever order happens to be their most recent one.
func paymentReturnURL(base string, orderID int64) string {
	if base == "" || orderID <= 0 {
		return base
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return base
	}
	query := parsed.Query()
	query.Set("orderId", strconv.FormatInt(orderID, 10))
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func validateCreateOrder(cmd CreateOrderCommand) error {
	if cmd.UserID <= 0 {
		return ErrOrderInvalidInput
	}
	if strings.TrimSpace(cmd.FirstName) == "" {
		return ErrOrderInvalidInput
	}
	if strings.TrimSpace(cmd.Email) == "" {
		return ErrOrderInvalidInput
	}
	if strings.TrimSpace(cmd.ShippingAddress) == "" {
		return ErrOrderInvalidInput
	}
	switch cmd.PaymentMethod {
	case domain.PaymentMethodCard, domain.PaymentMethodCash:
	default:
		return ErrOrderInvalidInput
	}
	return nil
}

func ownsOrder(user UserProfile, orderID int64) bool {
	for _, id := range user.OrderIDs {
		if id == orderID {
			return true
		}
	}
	return false
}

func translateOrderError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
	}
	return err
}

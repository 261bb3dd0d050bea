package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/zerno-shop/api/internal/domain"
	"github.com/zerno-shop/api/internal/payments"
)

type stubUserRepository struct {
	findByIDFunc    func(ctx context.Context, userID int64) (domain.UserProfile, error)
	findByEmailFunc func(ctx context.Context, email string) (domain.UserProfile, bool, error)
	updateFunc      func(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID int64) (domain.UserProfile, error) {
	if s.findByIDFunc == nil {
		return domain.UserProfile{}, errors.New("unexpected FindByID")
	}
	return s.findByIDFunc(ctx, userID)
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (domain.UserProfile, bool, error) {
	if s.findByEmailFunc == nil {
		return domain.UserProfile{}, false, errors.New("unexpected FindByEmail")
	}
	return s.findByEmailFunc(ctx, email)
}

func (s *stubUserRepository) Update(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if s.updateFunc == nil {
		return domain.UserProfile{}, errors.New("unexpected Update")
	}
	return s.updateFunc(ctx, profile)
}

type stubOrderRepository struct {
	insertFunc   func(ctx context.Context, order domain.Order) (domain.Order, error)
	findByIDFunc func(ctx context.Context, orderID int64) (domain.Order, error)
	markPaidFunc func(ctx context.Context, orderID int64) error
	deleteFunc   func(ctx context.Context, orderID int64) error
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.insertFunc == nil {
		return domain.Order{}, errors.New("unexpected Insert")
	}
	return s.insertFunc(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID int64) (domain.Order, error) {
	if s.findByIDFunc == nil {
		return domain.Order{}, errors.New("unexpected FindByID")
	}
	return s.findByIDFunc(ctx, orderID)
}

func (s *stubOrderRepository) MarkPaid(ctx context.Context, orderID int64) error {
	if s.markPaidFunc == nil {
		return errors.New("unexpected MarkPaid")
	}
	return s.markPaidFunc(ctx, orderID)
}

func (s *stubOrderRepository) Delete(ctx context.Context, orderID int64) error {
	if s.deleteFunc == nil {
		return errors.New("unexpected Delete")
	}
	return s.deleteFunc(ctx, orderID)
}

type stubCatalogRepository struct {
	snapshotFunc func(ctx context.Context) (domain.Catalog, error)
}

func (s *stubCatalogRepository) Snapshot(ctx context.Context) (domain.Catalog, error) {
	if s.snapshotFunc == nil {
		return domain.Catalog{}, errors.New("unexpected Snapshot")
	}
	return s.snapshotFunc(ctx)
}

type stubGateway struct {
	createFunc func(ctx context.Context, req payments.PaymentRequest) (payments.PaymentPage, error)
	statusFunc func(ctx context.Context, req payments.StatusRequest) (payments.StatusResult, error)
}

func (s *stubGateway) CreatePayment(ctx context.Context, req payments.PaymentRequest) (payments.PaymentPage, error) {
	if s.createFunc == nil {
		return payments.PaymentPage{}, errors.New("unexpected CreatePayment")
	}
	return s.createFunc(ctx, req)
}

func (s *stubGateway) CheckStatus(ctx context.Context, req payments.StatusRequest) (payments.StatusResult, error) {
	if s.statusFunc == nil {
		return payments.StatusResult{}, errors.New("unexpected CheckStatus")
	}
	return s.statusFunc(ctx, req)
}

type stubNotifier struct {
	placed    []string
	cash      []string
	confirmed []string
}

func (s *stubNotifier) OrderPlaced(_ context.Context, order domain.Order) {
	s.placed = append(s.placed, order.Reference)
}

func (s *stubNotifier) CashOrderPlaced(_ context.Context, order domain.Order) {
	s.cash = append(s.cash, order.Reference)
}

func (s *stubNotifier) PaymentConfirmed(_ context.Context, order domain.Order) {
	s.confirmed = append(s.confirmed, order.Reference)
}

type notFoundError struct{}

func (notFoundError) Error() string       { return "not found" }
func (notFoundError) IsNotFound() bool    { return true }
func (notFoundError) IsConflict() bool    { return false }
func (notFoundError) IsUnavailable() bool { return false }

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}
}

func baseProfile() domain.UserProfile {
	return domain.UserProfile{
		ID:    1,
		Email: "olena@shop.test",
		Cart: []domain.CartItem{
			{ProductID: 7, Variant: "250g", Quantity: 2},
		},
	}
}

func createCmd(method domain.PaymentMethod) CreateOrderCommand {
	return CreateOrderCommand{
		UserID:          1,
		FirstName:       "Олена",
		LastName:        "Ковальчук",
		Email:           "Olena@shop.test",
		Phone:           "+380501112233",
		ShippingAddress: "Київ, вул. Хрещатик 1",
		PaymentMethod:   method,
	}
}

func newOrderServiceForTest(t *testing.T, users *stubUserRepository, orders *stubOrderRepository, catalog *stubCatalogRepository, gateway *stubGateway, notifier Notifier) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Users:     users,
		Orders:    orders,
		Catalog:   catalog,
		Gateway:   gateway,
		Notifier:  notifier,
		Clock:     fixedClock(),
		RefGen:    func() string { return "01HZXREF" },
		Currency:  "UAH",
		ReturnURL: "https://zerno.shop/order",
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func TestCreateFromCartCardSuccess(t *testing.T) {
	ctx := context.Background()

	var savedProfile domain.UserProfile
	users := &stubUserRepository{
		findByIDFunc: func(_ context.Context, userID int64) (domain.UserProfile, error) {
			if userID != 1 {
				t.Fatalf("unexpected user id %d", userID)
			}
			return baseProfile(), nil
		},
		updateFunc: func(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
			savedProfile = profile
			return profile, nil
		},
	}

	var inserted domain.Order
	orders := &stubOrderRepository{
		insertFunc: func(_ context.Context, order domain.Order) (domain.Order, error) {
			inserted = order
			order.ID = 12
			return order, nil
		},
	}

	catalog := &stubCatalogRepository{
		snapshotFunc: func(context.Context) (domain.Catalog, error) { return testCatalog(), nil },
	}

	var paymentReq payments.PaymentRequest
	gateway := &stubGateway{
		createFunc: func(_ context.Context, req payments.PaymentRequest) (payments.PaymentPage, error) {
			paymentReq = req
			return payments.PaymentPage{RedirectURL: "https://secure.wayforpay.com/page"}, nil
		},
	}

	notifier := &stubNotifier{}
	svc := newOrderServiceForTest(t, users, orders, catalog, gateway, notifier)

	result, err := svc.CreateFromCart(ctx, createCmd(domain.PaymentMethodCard))
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}

	if result.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending status, got %s", result.Status)
	}
	if result.RedirectURL != "https://secure.wayforpay.com/page" {
		t.Errorf("unexpected redirect url %q", result.RedirectURL)
	}
	if result.Order.ID != 12 {
		t.Errorf("expected CMS id on result, got %d", result.Order.ID)
	}
	if inserted.Reference != "01HZXREF" {
		t.Errorf("unexpected reference %q", inserted.Reference)
	}
	if inserted.Total != 300 {
		t.Errorf("expected catalogue total 300, got %d", inserted.Total)
	}
	if inserted.Customer.Email != "olena@shop.test" {
		t.Errorf("email not normalised: %q", inserted.Customer.Email)
	}
	if inserted.Paid {
		t.Error("new orders must be unpaid")
	}
	if inserted.CreatedAtLocal == "" {
		t.Error("local timestamp missing")
	}

	if paymentReq.OrderReference != "01HZXREF" || paymentReq.Amount != 300 {
		t.Errorf("unexpected gateway request %#v", paymentReq)
	}
	if len(paymentReq.Names) != 1 || paymentReq.Names[0] != "Zerno Espresso (250g)" {
		t.Errorf("unexpected product names %v", paymentReq.Names)
	}
	if paymentReq.Prices[0] != 150 || paymentReq.Counts[0] != 2 {
		t.Errorf("parallel slices wrong: %v %v", paymentReq.Prices, paymentReq.Counts)
	}
	if paymentReq.ReturnURL != "https://zerno.shop/order?orderId=12" {
		t.Errorf("return url must identify the created order, got %q", paymentReq.ReturnURL)
	}

	if len(savedProfile.OrderIDs) != 1 || savedProfile.OrderIDs[0] != 12 {
		t.Errorf("order not linked to user: %v", savedProfile.OrderIDs)
	}
	if len(savedProfile.Cart) == 0 {
		t.Error("card payment must keep the cart until confirmation")
	}
	if len(notifier.placed) != 1 {
		t.Errorf("expected order placed email, got %v", notifier.placed)
	}
}

func TestPaymentReturnURL(t *testing.T) {
	cases := []struct {
		name    string
		base    string
		orderID int64
		want    string
	}{
		{"plain base", "https://zerno.shop/order", 12, "https://zerno.shop/order?orderId=12"},
		{"existing query kept", "https://zerno.shop/order?lang=uk", 12, "https://zerno.shop/order?lang=uk&orderId=12"},
		{"empty base untouched", "", 12, ""},
		{"zero id untouched", "https://zerno.shop/order", 0, "https://zerno.shop/order"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := paymentReturnURL(tc.base, tc.orderID); got != tc.want {
				t.Fatalf("paymentReturnURL(%q, %d) = %q, want %q", tc.base, tc.orderID, got, tc.want)
			}
		})
	}
}

func TestCreateFromCartCashSkipsGatewayAndClearsCart(t *testing.T) {
	ctx := context.Background()

	var savedProfile domain.UserProfile
	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) { return baseProfile(), nil },
		updateFunc: func(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
			savedProfile = profile
			return profile, nil
		},
	}
	orders := &stubOrderRepository{
		insertFunc: func(_ context.Context, order domain.Order) (domain.Order, error) {
			order.ID = 13
			return order, nil
		},
	}
	catalog := &stubCatalogRepository{
		snapshotFunc: func(context.Context) (domain.Catalog, error) { return testCatalog(), nil },
	}
	gateway := &stubGateway{} // any call fails the test

	svc := newOrderServiceForTest(t, users, orders, catalog, gateway, &stubNotifier{})

	result, err := svc.CreateFromCart(ctx, createCmd(domain.PaymentMethodCash))
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if result.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending status, got %s", result.Status)
	}
	if result.RedirectURL != "" {
		t.Errorf("cash orders must not redirect, got %q", result.RedirectURL)
	}
	if len(savedProfile.Cart) != 0 {
		t.Errorf("cash checkout should clear the cart, got %v", savedProfile.Cart)
	}
}

func TestCreateFromCartReplacesPendingOrder(t *testing.T) {
	ctx := context.Background()

	profile := baseProfile()
	profile.OrderIDs = []int64{5}

	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) { return profile, nil },
		updateFunc: func(_ context.Context, p domain.UserProfile) (domain.UserProfile, error) {
			return p, nil
		},
	}

	var deleted []int64
	orders := &stubOrderRepository{
		findByIDFunc: func(_ context.Context, orderID int64) (domain.Order, error) {
			if orderID != 5 {
				t.Fatalf("unexpected lookup %d", orderID)
			}
			return domain.Order{ID: 5, Paid: false}, nil
		},
		deleteFunc: func(_ context.Context, orderID int64) error {
			deleted = append(deleted, orderID)
			return nil
		},
		insertFunc: func(_ context.Context, order domain.Order) (domain.Order, error) {
			order.ID = 14
			return order, nil
		},
	}
	catalog := &stubCatalogRepository{
		snapshotFunc: func(context.Context) (domain.Catalog, error) { return testCatalog(), nil },
	}
	gateway := &stubGateway{
		createFunc: func(context.Context, payments.PaymentRequest) (payments.PaymentPage, error) {
			return payments.PaymentPage{RedirectURL: "https://pay"}, nil
		},
	}

	svc := newOrderServiceForTest(t, users, orders, catalog, gateway, nil)

	if _, err := svc.CreateFromCart(ctx, createCmd(domain.PaymentMethodCard)); err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != 5 {
		t.Fatalf("pending order not replaced: %v", deleted)
	}
}

func TestCreateFromCartKeepsPaidOrder(t *testing.T) {
	ctx := context.Background()

	profile := baseProfile()
	profile.OrderIDs = []int64{5}

	var savedProfile domain.UserProfile
	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) { return profile, nil },
		updateFunc: func(_ context.Context, p domain.UserProfile) (domain.UserProfile, error) {
			savedProfile = p
			return p, nil
		},
	}
	orders := &stubOrderRepository{
		findByIDFunc: func(_ context.Context, orderID int64) (domain.Order, error) {
			return domain.Order{ID: orderID, Paid: true}, nil
		},
		insertFunc: func(_ context.Context, order domain.Order) (domain.Order, error) {
			order.ID = 15
			return order, nil
		},
	}
	catalog := &stubCatalogRepository{
		snapshotFunc: func(context.Context) (domain.Catalog, error) { return testCatalog(), nil },
	}
	gateway := &stubGateway{
		createFunc: func(context.Context, payments.PaymentRequest) (payments.PaymentPage, error) {
			return payments.PaymentPage{RedirectURL: "https://pay"}, nil
		},
	}

	svc := newOrderServiceForTest(t, users, orders, catalog, gateway, nil)

	if _, err := svc.CreateFromCart(ctx, createCmd(domain.PaymentMethodCard)); err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if len(savedProfile.OrderIDs) != 2 {
		t.Fatalf("paid order must be kept: %v", savedProfile.OrderIDs)
	}
}

func TestCreateFromCartGatewayFailureDegrades(t *testing.T) {
	ctx := context.Background()

	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) { return baseProfile(), nil },
		updateFunc: func(_ context.Context, p domain.UserProfile) (domain.UserProfile, error) {
			return p, nil
		},
	}
	orders := &stubOrderRepository{
		insertFunc: func(_ context.Context, order domain.Order) (domain.Order, error) {
			order.ID = 16
			return order, nil
		},
	}
	catalog := &stubCatalogRepository{
		snapshotFunc: func(context.Context) (domain.Catalog, error) { return testCatalog(), nil },
	}
	gateway := &stubGateway{
		createFunc: func(context.Context, payments.PaymentRequest) (payments.PaymentPage, error) {
			return payments.PaymentPage{}, payments.ErrGatewayUnavailable
		},
	}

	svc := newOrderServiceForTest(t, users, orders, catalog, gateway, nil)

	result, err := svc.CreateFromCart(ctx, createCmd(domain.PaymentMethodCard))
	if err != nil {
		t.Fatalf("gateway failure must not fail checkout: %v", err)
	}
	if result.Status != domain.PaymentStatusError {
		t.Errorf("expected error status, got %s", result.Status)
	}
	if result.Order.ID != 16 {
		t.Errorf("order must still be created, got %#v", result.Order)
	}
}

func TestCreateFromCartValidation(t *testing.T) {
	svc := newOrderServiceForTest(t,
		&stubUserRepository{}, &stubOrderRepository{}, &stubCatalogRepository{}, &stubGateway{}, nil)

	cases := []struct {
		name string
		mut  func(*CreateOrderCommand)
	}{
		{"zero user", func(c *CreateOrderCommand) { c.UserID = 0 }},
		{"no first name", func(c *CreateOrderCommand) { c.FirstName = " " }},
		{"no email", func(c *CreateOrderCommand) { c.Email = "" }},
		{"no address", func(c *CreateOrderCommand) { c.ShippingAddress = "" }},
		{"bad method", func(c *CreateOrderCommand) { c.PaymentMethod = "cheque" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := createCmd(domain.PaymentMethodCard)
			tc.mut(&cmd)
			if _, err := svc.CreateFromCart(context.Background(), cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func TestCreateFromCartEmptyCart(t *testing.T) {
	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) {
			return domain.UserProfile{ID: 1}, nil
		},
	}
	catalog := &stubCatalogRepository{
		snapshotFunc: func(context.Context) (domain.Catalog, error) { return testCatalog(), nil },
	}
	svc := newOrderServiceForTest(t, users, &stubOrderRepository{}, catalog, &stubGateway{}, nil)

	if _, err := svc.CreateFromCart(context.Background(), createCmd(domain.PaymentMethodCard)); !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) {
			return domain.UserProfile{ID: 1, OrderIDs: []int64{5}}, nil
		},
	}
	orders := &stubOrderRepository{
		findByIDFunc: func(_ context.Context, orderID int64) (domain.Order, error) {
			return domain.Order{ID: orderID}, nil
		},
	}
	svc := newOrderServiceForTest(t, users, orders, &stubCatalogRepository{}, &stubGateway{}, nil)

	if _, err := svc.GetOrder(context.Background(), 1, 99); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}

	order, err := svc.GetOrder(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.ID != 5 {
		t.Fatalf("unexpected order %#v", order)
	}
}

func TestLastOrder(t *testing.T) {
	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) {
			return domain.UserProfile{ID: 1, OrderIDs: []int64{3, 8}}, nil
		},
	}
	orders := &stubOrderRepository{
		findByIDFunc: func(_ context.Context, orderID int64) (domain.Order, error) {
			return domain.Order{ID: orderID}, nil
		},
	}
	svc := newOrderServiceForTest(t, users, orders, &stubCatalogRepository{}, &stubGateway{}, nil)

	order, err := svc.LastOrder(context.Background(), 1)
	if err != nil {
		t.Fatalf("LastOrder: %v", err)
	}
	if order.ID != 8 {
		t.Fatalf("expected most recent order 8, got %d", order.ID)
	}
}

func TestLastOrderNoOrders(t *testing.T) {
	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) {
			return domain.UserProfile{ID: 1}, nil
		},
	}
	svc := newOrderServiceForTest(t, users, &stubOrderRepository{}, &stubCatalogRepository{}, &stubGateway{}, nil)

	if _, err := svc.LastOrder(context.Background(), 1); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestDropPendingOrderToleratesMissingOrder(t *testing.T) {
	ctx := context.Background()

	profile := baseProfile()
	profile.OrderIDs = []int64{5}

	var savedProfile domain.UserProfile
	users := &stubUserRepository{
		findByIDFunc: func(context.Context, int64) (domain.UserProfile, error) { return profile, nil },
		updateFunc: func(_ context.Context, p domain.UserProfile) (domain.UserProfile, error) {
			savedProfile = p
			return p, nil
		},
	}
	orders := &stubOrderRepository{
		findByIDFunc: func(context.Context, int64) (domain.Order, error) {
			return domain.Order{}, notFoundError{}
		},
		insertFunc: func(_ context.Context, order domain.Order) (domain.Order, error) {
			order.ID = 17
			return order, nil
		},
	}
	catalog := &stubCatalogRepository{
		snapshotFunc: func(context.Context) (domain.Catalog, error) { return testCatalog(), nil },
	}
	gateway := &stubGateway{
		createFunc: func(context.Context, payments.PaymentRequest) (payments.PaymentPage, error) {
			return payments.PaymentPage{RedirectURL: "https://pay"}, nil
		},
	}

	svc := newOrderServiceForTest(t, users, orders, catalog, gateway, nil)

	if _, err := svc.CreateFromCart(ctx, createCmd(domain.PaymentMethodCard)); err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if len(savedProfile.OrderIDs) != 1 || savedProfile.OrderIDs[0] != 17 {
		t.Fatalf("dangling order id not unlinked: %v", savedProfile.OrderIDs)
	}
}

package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/zerno-shop/api/internal/domain"
)

type stubMailer struct {
	sent []Message
	err  error
}

func (s *stubMailer) Send(ctx context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testOrder() domain.Order {
	return domain.Order{
		Reference: "01HZXREF",
		Customer: domain.OrderCustomer{
			FirstName:       "Олена",
			LastName:        "Ковальчук",
			Email:           "olena@shop.test",
			ShippingAddress: "Київ, вул. Хрещатик 1",
		},
		Lines: []domain.OrderLineItem{
			{Name: "Zerno Espresso (250g)", UnitPrice: 150, Quantity: 2},
		},
		Total:    300,
		Currency: "UAH",
	}
}

func newTestNotifier(t *testing.T, mailer Mailer, logger func(context.Context, string, map[string]any)) *Notifier {
	t.Helper()
	notifier, err := NewNotifier(NotifierDeps{
		Mailer: mailer,
		IDGen:  func() string { return "msg-1" },
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	return notifier
}

func TestOrderPlacedSendsMail(t *testing.T) {
	mailer := &stubMailer{}
	notifier := newTestNotifier(t, mailer, nil)

	notifier.OrderPlaced(context.Background(), testOrder())

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "olena@shop.test" {
		t.Errorf("unexpected recipient %q", msg.To)
	}
	if msg.ID != "msg-1" {
		t.Errorf("unexpected message id %q", msg.ID)
	}
	if !strings.Contains(msg.Subject, "01HZXREF") {
		t.Errorf("order reference missing from subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Zerno Espresso (250g)") {
		t.Errorf("line item missing from body %q", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "300") {
		t.Errorf("total missing from body %q", msg.HTML)
	}
}

func TestDeliveryFailureIsSwallowedAndLogged(t *testing.T) {
	mailer := &stubMailer{err: errors.New("relay down")}
	var events []string
	notifier := newTestNotifier(t, mailer, func(_ context.Context, event string, _ map[string]any) {
		events = append(events, event)
	})

	notifier.PaymentConfirmed(context.Background(), testOrder())

	if len(events) != 1 || events[0] != "notification_failed" {
		t.Fatalf("expected notification_failed event, got %v", events)
	}
}

func TestMissingRecipientSkipsSend(t *testing.T) {
	mailer := &stubMailer{}
	var events []string
	notifier := newTestNotifier(t, mailer, func(_ context.Context, event string, _ map[string]any) {
		events = append(events, event)
	})

	order := testOrder()
	order.Customer.Email = "  "
	notifier.CashOrderPlaced(context.Background(), order)

	if len(mailer.sent) != 0 {
		t.Fatalf("expected no send, got %d", len(mailer.sent))
	}
	if len(events) != 1 || events[0] != "notification_skipped" {
		t.Fatalf("expected notification_skipped event, got %v", events)
	}
}

func TestCustomerMarkupIsStripped(t *testing.T) {
	mailer := &stubMailer{}
	notifier := newTestNotifier(t, mailer, nil)

	order := testOrder()
	order.Customer.FirstName = `<script>alert("x")</script>Олена`
	order.Customer.ShippingAddress = `<img src=x onerror=alert(1)>Київ`
	notifier.OrderPlaced(context.Background(), order)

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(mailer.sent))
	}
	body := mailer.sent[0].HTML
	if strings.Contains(body, "<script>") || strings.Contains(body, "onerror") {
		t.Fatalf("markup not stripped: %q", body)
	}
	if !strings.Contains(body, "Олена") || !strings.Contains(body, "Київ") {
		t.Fatalf("text content lost: %q", body)
	}
}

package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/zerno-shop/api/internal/domain"
)

// Notifier sends order lifecycle emails. Delivery is best effort: failures are
// logged and never propagated to the order or payment flow.
type Notifier struct {
	mailer Mailer
	idGen  func() string
	logger func(ctx context.Context, event string, fields map[string]any)

	policy  *bluemonday.Policy
	amounts *message.Printer
}

// NotifierDeps wires the dependencies required by the notifier.
type NotifierDeps struct {
	Mailer Mailer
	IDGen  func() string
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// NewNotifier constructs a Notifier validating required dependencies.
func NewNotifier(deps NotifierDeps) (*Notifier, error) {
	if deps.Mailer == nil {
		return nil, errors.New("notifier: mailer is required")
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Notifier{
		mailer:  deps.Mailer,
		idGen:   idGen,
		logger:  logger,
		policy:  bluemonday.StrictPolicy(),
		amounts: message.NewPrinter(language.Ukrainian),
	}, nil
}

// OrderPlaced emails the customer after an order with card payment was created.
func (n *Notifier) OrderPlaced(ctx context.Context, order domain.Order) {
	subject := fmt.Sprintf("Замовлення %s прийнято", n.clean(order.Reference))
	n.deliver(ctx, "order_placed", order, subject, n.orderBody(order,
		"Дякуємо за замовлення! Після оплати ми відправимо його якнайшвидше."))
}

// CashOrderPlaced emails the customer after an order payable on delivery was created.
func (n *Notifier) CashOrderPlaced(ctx context.Context, order domain.Order) {
	subject := fmt.Sprintf("Замовлення %s прийнято", n.clean(order.Reference))
	n.deliver(ctx, "cash_order_placed", order, subject, n.orderBody(order,
		"Дякуємо за замовлення! Оплата при отриманні."))
}

// PaymentConfirmed emails the customer once the gateway confirmed the payment.
func (n *Notifier) PaymentConfirmed(ctx context.Context, order domain.Order) {
	subject := fmt.Sprintf("Оплату замовлення %s отримано", n.clean(order.Reference))
	n.deliver(ctx, "payment_confirmed", order, subject, n.orderBody(order,
		"Оплату отримано. Замовлення передано у відправку."))
}

func (n *Notifier) deliver(ctx context.Context, event string, order domain.Order, subject, html string) {
	to := strings.TrimSpace(order.Customer.Email)
	if to == "" {
		n.logger(ctx, "notification_skipped", map[string]any{
			"event":     event,
			"reference": order.Reference,
			"reason":    "no recipient",
		})
		return
	}

	msg := Message{
		ID:      n.idGen(),
		To:      to,
		Subject: subject,
		HTML:    html,
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger(ctx, "notification_failed", map[string]any{
			"event":      event,
			"reference":  order.Reference,
			"message_id": msg.ID,
			"error":      err.Error(),
		})
		return
	}
	n.logger(ctx, "notification_sent", map[string]any{
		"event":      event,
		"reference":  order.Reference,
		"message_id": msg.ID,
	})
}

func (n *Notifier) orderBody(order domain.Order, lead string) string {
	var b strings.Builder
	b.WriteString("<p>")
	name := strings.TrimSpace(n.clean(order.Customer.FirstName) + " " + n.clean(order.Customer.LastName))
	if name != "" {
		b.WriteString("Вітаємо, ")
		b.WriteString(name)
		b.WriteString("!<br>")
	}
	b.WriteString(lead)
	b.WriteString("</p><ul>")
	for _, line := range order.Lines {
		b.WriteString("<li>")
		b.WriteString(n.clean(line.Name))
		b.WriteString(": ")
		b.WriteString(n.amounts.Sprintf("%d", line.Quantity))
		b.WriteString(" × ")
		b.WriteString(n.amounts.Sprintf("%d", line.UnitPrice))
		b.WriteString(" ")
		b.WriteString(order.Currency)
		b.WriteString("</li>")
	}
	b.WriteString("</ul><p>Разом: ")
	b.WriteString(n.amounts.Sprintf("%d", order.Total))
	b.WriteString(" ")
	b.WriteString(order.Currency)
	b.WriteString("</p>")
	if addr := n.clean(order.Customer.ShippingAddress); addr != "" {
		b.WriteString("<p>Доставка: ")
		b.WriteString(addr)
		b.WriteString("</p>")
	}
	return b.String()
}

// clean strips any markup from customer-provided text before it is embedded in HTML.
func (n *Notifier) clean(value string) string {
	return strings.TrimSpace(n.policy.Sanitize(value))
}

package cms

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/zerno-shop/api/internal/domain"
)

// OrderRepository persists orders through the CMS entity service.
type OrderRepository struct {
	client *Client
}

// NewOrderRepository constructs an OrderRepository over the provided client.
func NewOrderRepository(client *Client) (*OrderRepository, error) {
	if client == nil {
		return nil, errors.New("cms: client is required")
	}
	return &OrderRepository{client: client}, nil
}

type orderEnvelope struct {
	Data orderEntry `json:"data"`
}

type orderEntry struct {
	ID         int64           `json:"id"`
	Attributes orderAttributes `json:"attributes"`
}

type orderAttributes struct {
	Reference       string      `json:"reference"`
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	ShippingAddress string      `json:"shippingAddress"`
	PaymentMethod   string      `json:"paymentMethod"`
	Lines           []orderLine `json:"products"`
	Total           int64       `json:"total"`
	Currency        string      `json:"currency"`
	Date            string      `json:"date"`
	Paid            bool        `json:"paid"`
	PublishedAt     time.Time   `json:"publishedAt"`
}

type orderLine struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Variant   string `json:"variant"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

type orderWrite struct {
	Data orderAttributes `json:"data"`
}

type orderPaidWrite struct {
	Data struct {
		Paid bool `json:"paid"`
	} `json:"data"`
}

// Insert creates the order entity; the CMS assigns the id.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	var envelope orderEnvelope
	body := orderWrite{Data: attributesFromOrder(order)}
	if err := r.client.post(ctx, "orders.insert", "/api/orders", body, &envelope); err != nil {
		return domain.Order{}, err
	}
	return orderFromEntry(envelope.Data), nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID int64) (domain.Order, error) {
	var envelope orderEnvelope
	path := fmt.Sprintf("/api/orders/%d", orderID)
	if err := r.client.get(ctx, "orders.find", path, &envelope); err != nil {
		return domain.Order{}, err
	}
	return orderFromEntry(envelope.Data), nil
}

// MarkPaid flips the paid flag. Paid is the only field the API ever mutates post-creation.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID int64) error {
	var body orderPaidWrite
	body.Data.Paid = true
	path := fmt.Sprintf("/api/orders/%d", orderID)
	return r.client.put(ctx, "orders.mark_paid", path, body, nil)
}

// Delete removes an order. Used only for pending-order compaction before a replacement.
func (r *OrderRepository) Delete(ctx context.Context, orderID int64) error {
	path := fmt.Sprintf("/api/orders/%d", orderID)
	return r.client.delete(ctx, "orders.delete", path)
}

func attributesFromOrder(order domain.Order) orderAttributes {
	lines := make([]orderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Variant:   line.Variant,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return orderAttributes{
		Reference:       order.Reference,
		FirstName:       order.Customer.FirstName,
		LastName:        order.Customer.LastName,
		Email:           order.Customer.Email,
		Phone:           order.Customer.Phone,
		ShippingAddress: order.Customer.ShippingAddress,
		PaymentMethod:   string(order.Customer.PaymentMethod),
		Lines:           lines,
		Total:           order.Total,
		Currency:        order.Currency,
		Date:            order.CreatedAtLocal,
		Paid:            order.Paid,
		PublishedAt:     order.CreatedAt,
	}
}

func orderFromEntry(entry orderEntry) domain.Order {
	lines := make([]domain.OrderLineItem, 0, len(entry.Attributes.Lines))
	for _, line := range entry.Attributes.Lines {
		lines = append(lines, domain.OrderLineItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Variant:   line.Variant,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return domain.Order{
		ID:        entry.ID,
		Reference: entry.Attributes.Reference,
		Customer: domain.OrderCustomer{
			FirstName:       entry.Attributes.FirstName,
			LastName:        entry.Attributes.LastName,
			Email:           entry.Attributes.Email,
			Phone:           entry.Attributes.Phone,
			ShippingAddress: entry.Attributes.ShippingAddress,
			PaymentMethod:   domain.PaymentMethod(entry.Attributes.PaymentMethod),
		},
		Lines:          lines,
		Total:          entry.Attributes.Total,
		Currency:       entry.Attributes.Currency,
		CreatedAt:      entry.Attributes.PublishedAt,
		CreatedAtLocal: entry.Attributes.Date,
		Paid:           entry.Attributes.Paid,
	}
}

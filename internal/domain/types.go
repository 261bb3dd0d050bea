package domain

import "time"

// PaymentMethod identifies how the customer intends to settle an order.
type PaymentMethod string

const (
	// PaymentMethodCard routes the order through the payment gateway.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCash skips the gateway entirely; the order stays unpaid until fulfilment.
	PaymentMethodCash PaymentMethod = "cash"
)

// PaymentStatus is the normalised reconciliation outcome reported to clients.
type PaymentStatus string

const (
	// PaymentStatusSuccess indicates the gateway confirmed the payment.
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusPending indicates the payment is not yet confirmed.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusError indicates the gateway reported a failure or was unreachable.
	PaymentStatusError PaymentStatus = "error"
)

// PriceTier is one purchasable variant of a product, e.g. a weight option.
// Amount is in whole currency units; the shop catalogue carries integral prices.
type PriceTier struct {
	Variant string
	Amount  int64
}

// Product is a catalogue entry as served by the CMS content API.
type Product struct {
	ID     int64
	Name   string
	Prices []PriceTier
}

// Catalog is a point-in-time snapshot of the product catalogue used to resolve carts.
type Catalog struct {
	Products []Product
}

// FindProduct returns the product with the given id, if present in the snapshot.
func (c Catalog) FindProduct(id int64) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// FindPrice returns the price tier matching the requested variant.
func (p Product) FindPrice(variant string) (PriceTier, bool) {
	for _, tier := range p.Prices {
		if tier.Variant == variant {
			return tier, true
		}
	}
	return PriceTier{}, false
}

// CartItem is a client-submitted cart line. Any price the client sends alongside
// is discarded; unit prices are always re-derived from the catalogue.
type CartItem struct {
	ProductID int64
	Variant   string
	Quantity  int
}

// OrderLineItem is an immutable snapshot of a resolved cart line. Later catalogue
// price changes do not retroactively alter persisted orders.
type OrderLineItem struct {
	ProductID int64
	Name      string
	Variant   string
	UnitPrice int64
	Quantity  int
}

// Subtotal returns the line total in whole currency units.
func (l OrderLineItem) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// OrderCustomer captures the customer and shipping details snapshotted on an order.
type OrderCustomer struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	ShippingAddress string
	PaymentMethod   PaymentMethod
}

// Order is the persisted checkout result. ID is assigned by the CMS on creation;
// Reference is the opaque identifier shared with the payment gateway. Paid is the
// only field mutated after creation and flips to true at most once.
type Order struct {
	ID             int64
	Reference      string
	Customer       OrderCustomer
	Lines          []OrderLineItem
	Total          int64
	Currency       string
	CreatedAt      time.Time
	CreatedAtLocal string
	Paid           bool
}

// IsCash reports whether the order bypasses the payment gateway.
func (o Order) IsCash() bool {
	return o.Customer.PaymentMethod == PaymentMethodCash
}

// UserProfile is the CMS user record extended with shop fields (cart, orders, shipping).
type UserProfile struct {
	ID       int64
	Email    string
	Name     string
	Surname  string
	Phone    string
	Address  string
	Cart     []CartItem
	OrderIDs []int64
}

// LastOrderID returns the most recently appended order id, or zero when none exist.
func (u UserProfile) LastOrderID() int64 {
	if len(u.OrderIDs) == 0 {
		return 0
	}
	return u.OrderIDs[len(u.OrderIDs)-1]
}

package payments

import (
	"context"
	"errors"
	"time"
)

// Reason codes reported by the gateway on status checks.
const (
	// ReasonCodePaid is the gateway's confirmation that the payment was captured.
	ReasonCodePaid = 1100
)

// ErrGatewayUnavailable indicates the gateway could not be reached or returned a
// malformed response. Callers decide whether to surface or swallow it.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// ClientInfo carries the customer fields forwarded with a payment initiation.
type ClientInfo struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

// PaymentRequest describes a payment-initiation call. The Names, Prices, and
// Counts slices must be positionally aligned with each other; the provider signs
// them in the same order it sends them.
type PaymentRequest struct {
	OrderReference string
	OrderDate      time.Time
	Amount         int64
	Currency       string
	Names          []string
	Prices         []int64
	Counts         []int
	Client         ClientInfo
	ReturnURL      string
}

// PaymentPage is the gateway's response to a successful initiation.
type PaymentPage struct {
	RedirectURL string
}

// StatusRequest identifies the order whose payment status should be checked.
type StatusRequest struct {
	OrderReference string
}

// StatusResult normalises the gateway's status-check response.
type StatusResult struct {
	ReasonCode int
	Confirmed  bool
}

// Provider is the payment-gateway contract the services depend on. The concrete
// implementation talks to WayForPay; tests substitute stubs.
type Provider interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentPage, error)
	CheckStatus(ctx context.Context, req StatusRequest) (StatusResult, error)
}

package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPayURL      = "https://secure.wayforpay.com/pay?behavior=offline"
	defaultAPIURL      = "https://api.wayforpay.com/api"
	defaultHTTPTimeout = 15 * time.Second
	defaultRetryDelay  = 500 * time.Millisecond
	statusAPIVersion   = "1"

	tracerName = "github.com/zerno-shop/api/internal/payments"
)

// WayForPayLogger defines the logging contract for gateway operations.
type WayForPayLogger func(ctx context.Context, event string, fields map[string]any)

// WayForPayConfig configures the WayForPay client.
type WayForPayConfig struct {
	MerchantAccount string
	MerchantDomain  string
	Signer          *Signer
	Language        string

	// PayURL and APIURL override the gateway endpoints, primarily for tests.
	PayURL string
	APIURL string

	HTTPClient *http.Client
	Timeout    time.Duration
	RetryDelay time.Duration
	Logger     WayForPayLogger
}

// WayForPayClient implements Provider against the WayForPay HTTP API.
type WayForPayClient struct {
	account    string
	domain     string
	language   string
	signer     *Signer
	payURL     string
	apiURL     string
	http       *http.Client
	retryDelay time.Duration
	logger     WayForPayLogger
	tracer     trace.Tracer
}

// NewWayForPayClient constructs the gateway client, validating merchant identity.
func NewWayForPayClient(cfg WayForPayConfig) (*WayForPayClient, error) {
	account := strings.TrimSpace(cfg.MerchantAccount)
	if account == "" {
		return nil, errors.New("wayforpay: merchant account is required")
	}
	domain := strings.TrimSpace(cfg.MerchantDomain)
	if domain == "" {
		return nil, errors.New("wayforpay: merchant domain is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("wayforpay: signer is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "UA"
	}

	return &WayForPayClient{
		account:    account,
		domain:     domain,
		language:   language,
		signer:     cfg.Signer,
		payURL:     defaultString(cfg.PayURL, defaultPayURL),
		apiURL:     defaultString(cfg.APIURL, defaultAPIURL),
		http:       httpClient,
		retryDelay: retryDelay,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

type purchaseBody struct {
	MerchantAccount    string   `json:"merchantAccount"`
	MerchantDomainName string   `json:"merchantDomainName"`
	MerchantSignature  string   `json:"merchantSignature"`
	Currency           string   `json:"currency"`
	Amount             int64    `json:"amount"`
	Language           string   `json:"language"`
	ReturnURL          string   `json:"returnUrl"`
	OrderReference     string   `json:"orderReference"`
	OrderNo            string   `json:"orderNo"`
	OrderDate          int64    `json:"orderDate"`
	ProductName        []string `json:"productName"`
	ProductPrice       []int64  `json:"productPrice"`
	ProductCount       []int    `json:"productCount"`
	ClientEmail        string   `json:"clientEmail"`
	ClientPhone        string   `json:"clientPhone"`
	ClientFirstName    string   `json:"clientFirstName"`
	ClientLastName     string   `json:"clientLastName"`
}

type purchaseResponse struct {
	URL string `json:"url"`
}

type statusBody struct {
	TransactionType   string `json:"transactionType"`
	MerchantAccount   string `json:"merchantAccount"`
	OrderReference    string `json:"orderReference"`
	MerchantSignature string `json:"merchantSignature"`
	APIVersion        string `json:"apiVersion"`
}

type statusResponse struct {
	ReasonCode int `json:"reasonCode"`
}

// CreatePayment submits a signed payment-initiation request and returns the page
// the customer must be redirected to. Initiation is never retried; the order is
// already persisted unpaid, so the caller can resubmit later.
func (c *WayForPayClient) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentPage, error) {
	if c == nil {
		return PaymentPage{}, errors.New("wayforpay: client is nil")
	}

	millis := req.OrderDate.UnixMilli()
	signature := c.signer.SignPurchaseRequest(PurchaseSignature{
		MerchantAccount: c.account,
		MerchantDomain:  c.domain,
		OrderReference:  req.OrderReference,
		OrderDateMillis: millis,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ProductNames:    req.Names,
		ProductCounts:   req.Counts,
		ProductPrices:   req.Prices,
	})

	body := purchaseBody{
		MerchantAccount:    c.account,
		MerchantDomainName: c.domain,
		MerchantSignature:  signature,
		Currency:           req.Currency,
		Amount:             req.Amount,
		Language:           c.language,
		ReturnURL:          req.ReturnURL,
		OrderReference:     req.OrderReference,
		OrderNo:            req.OrderReference,
		OrderDate:          millis,
		ProductName:        emptyIfNilStrings(req.Names),
		ProductPrice:       emptyIfNilInt64s(req.Prices),
		ProductCount:       emptyIfNilInts(req.Counts),
		ClientEmail:        req.Client.Email,
		ClientPhone:        req.Client.Phone,
		ClientFirstName:    req.Client.FirstName,
		ClientLastName:     req.Client.LastName,
	}

	ctx, span := c.tracer.Start(ctx, "wayforpay.create_payment",
		trace.WithAttributes(attribute.String("order.reference", req.OrderReference)))
	defer span.End()

	var resp purchaseResponse
	if err := c.post(ctx, c.payURL, body, &resp); err != nil {
		c.logger(ctx, "wayforpay.create_payment_failed", map[string]any{
			"orderReference": req.OrderReference,
			"error":          err.Error(),
		})
		return PaymentPage{}, err
	}
	if strings.TrimSpace(resp.URL) == "" {
		c.logger(ctx, "wayforpay.create_payment_no_url", map[string]any{
			"orderReference": req.OrderReference,
		})
		return PaymentPage{}, fmt.Errorf("%w: initiation response missing redirect url", ErrGatewayUnavailable)
	}

	c.logger(ctx, "wayforpay.payment_created", map[string]any{
		"orderReference": req.OrderReference,
		"amount":         req.Amount,
	})
	return PaymentPage{RedirectURL: resp.URL}, nil
}

// CheckStatus queries the gateway for the payment state of an order reference.
// Transient failures are retried once after a short backoff.
func (c *WayForPayClient) CheckStatus(ctx context.Context, req StatusRequest) (StatusResult, error) {
	if c == nil {
		return StatusResult{}, errors.New("wayforpay: client is nil")
	}

	body := statusBody{
		TransactionType:   "CHECK_STATUS",
		MerchantAccount:   c.account,
		OrderReference:    req.OrderReference,
		MerchantSignature: c.signer.SignStatusRequest(c.account, req.OrderReference),
		APIVersion:        statusAPIVersion,
	}

	ctx, span := c.tracer.Start(ctx, "wayforpay.check_status",
		trace.WithAttributes(attribute.String("order.reference", req.OrderReference)))
	defer span.End()

	var resp statusResponse
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return StatusResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}
		if err = c.post(ctx, c.apiURL, body, &resp); err == nil {
			break
		}
	}
	if err != nil {
		c.logger(ctx, "wayforpay.check_status_failed", map[string]any{
			"orderReference": req.OrderReference,
			"error":          err.Error(),
		})
		return StatusResult{}, err
	}

	return StatusResult{
		ReasonCode: resp.ReasonCode,
		Confirmed:  resp.ReasonCode == ReasonCodePaid,
	}, nil
}

func (c *WayForPayClient) post(ctx context.Context, url string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("wayforpay: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("wayforpay: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrGatewayUnavailable, httpResp.StatusCode)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func emptyIfNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func emptyIfNilInt64s(values []int64) []int64 {
	if values == nil {
		return []int64{}
	}
	return values
}

func emptyIfNilInts(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}

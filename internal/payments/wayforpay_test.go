package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, payURL, apiURL string) *WayForPayClient {
	t.Helper()
	signer, err := NewSigner("test-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client, err := NewWayForPayClient(WayForPayConfig{
		MerchantAccount: "test_merch",
		MerchantDomain:  "shop.test",
		Signer:          signer,
		PayURL:          payURL,
		APIURL:          apiURL,
		RetryDelay:      time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestCreatePaymentReturnsRedirectURL(t *testing.T) {
	var received purchaseBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://gw.test/pay/abc"})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, srv.URL)
	page, err := client.CreatePayment(context.Background(), PaymentRequest{
		OrderReference: "ref-9",
		OrderDate:      time.UnixMilli(1700000000000).UTC(),
		Amount:         300,
		Currency:       "UAH",
		Names:          []string{"Zerno Espresso (250g)"},
		Prices:         []int64{150},
		Counts:         []int{2},
		Client:         ClientInfo{Email: "a@b.test", FirstName: "Olena"},
		ReturnURL:      "https://shop.test/checkout/return?order=ref-9",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.RedirectURL != "https://gw.test/pay/abc" {
		t.Fatalf("unexpected redirect url %s", page.RedirectURL)
	}

	if received.OrderReference != "ref-9" || received.OrderNo != "ref-9" {
		t.Fatalf("order reference not forwarded: %#v", received)
	}
	if received.OrderDate != 1700000000000 {
		t.Fatalf("expected millisecond order date, got %d", received.OrderDate)
	}
	if len(received.ProductName) != 1 || len(received.ProductPrice) != 1 || len(received.ProductCount) != 1 {
		t.Fatalf("product arrays not aligned: %#v", received)
	}
	if received.MerchantSignature == "" {
		t.Fatal("expected merchant signature in payload")
	}

	signer, _ := NewSigner("test-secret")
	want := signer.SignPurchaseRequest(PurchaseSignature{
		MerchantAccount: "test_merch",
		MerchantDomain:  "shop.test",
		OrderReference:  "ref-9",
		OrderDateMillis: 1700000000000,
		Amount:          300,
		Currency:        "UAH",
		ProductNames:    []string{"Zerno Espresso (250g)"},
		ProductCounts:   []int{2},
		ProductPrices:   []int64{150},
	})
	if received.MerchantSignature != want {
		t.Fatalf("signature does not match payload arrays: got %s want %s", received.MerchantSignature, want)
	}
}

func TestCreatePaymentMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, srv.URL)
	_, err := client.CreatePayment(context.Background(), PaymentRequest{
		OrderReference: "ref-1",
		OrderDate:      time.Now(),
		Currency:       "UAH",
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestCreatePaymentDoesNotRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, srv.URL)
	_, err := client.CreatePayment(context.Background(), PaymentRequest{
		OrderReference: "ref-1",
		OrderDate:      time.Now(),
		Currency:       "UAH",
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("initiation must not retry, got %d calls", calls)
	}
}

func TestCheckStatusConfirmed(t *testing.T) {
	var received statusBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"reasonCode": 1100})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, srv.URL)
	result, err := client.CheckStatus(context.Background(), StatusRequest{OrderReference: "ref-5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Confirmed || result.ReasonCode != ReasonCodePaid {
		t.Fatalf("expected confirmed status, got %#v", result)
	}

	if received.TransactionType != "CHECK_STATUS" || received.APIVersion != "1" {
		t.Fatalf("unexpected status request %#v", received)
	}
	signer, _ := NewSigner("test-secret")
	if received.MerchantSignature != signer.SignStatusRequest("test_merch", "ref-5") {
		t.Fatal("status signature does not use the query field ordering")
	}
}

func TestCheckStatusDeclinedNotConfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"reasonCode": 1105})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, srv.URL)
	result, err := client.CheckStatus(context.Background(), StatusRequest{OrderReference: "ref-5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Confirmed {
		t.Fatalf("reason code 1105 must not confirm payment: %#v", result)
	}
}

func TestCheckStatusRetriesOnce(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"reasonCode": 1100})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, srv.URL)
	result, err := client.CheckStatus(context.Background(), StatusRequest{OrderReference: "ref-5"})
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if !result.Confirmed {
		t.Fatalf("expected confirmation after retry, got %#v", result)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}

package payments

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// Signer computes the keyed request signatures the gateway verifies on its side.
// The digest is HMAC-MD5 over a `;` separated field string; field order is part of
// the wire contract and must never change. The merchant secret is held in memory
// only and is never transmitted or logged.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from the shared merchant secret.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("payments: merchant secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// PurchaseSignature carries the ordered inputs of a payment-initiation signature.
// ProductNames, ProductCounts, and ProductPrices must be positionally aligned with
// the arrays sent in the request payload.
type PurchaseSignature struct {
	MerchantAccount string
	MerchantDomain  string
	OrderReference  string
	OrderDateMillis int64
	Amount          int64
	Currency        string
	ProductNames    []string
	ProductCounts   []int
	ProductPrices   []int64
}

// SignStatusRequest signs a status-check request over `account;orderReference`.
func (s *Signer) SignStatusRequest(merchantAccount, orderReference string) string {
	return s.digest(merchantAccount + ";" + orderReference)
}

// SignPurchaseRequest signs a payment-initiation request. Base fields are joined
// with `;` and terminated with one, followed by every product name terminated by
// `;`, every product count terminated by `;`, and the product prices joined by
// `;` without a trailing separator. An empty cart yields the stable base string
// with empty product segments.
func (s *Signer) SignPurchaseRequest(req PurchaseSignature) string {
	var b strings.Builder
	b.WriteString(req.MerchantAccount)
	b.WriteByte(';')
	b.WriteString(req.MerchantDomain)
	b.WriteByte(';')
	b.WriteString(req.OrderReference)
	b.WriteByte(';')
	b.WriteString(strconv.FormatInt(req.OrderDateMillis, 10))
	b.WriteByte(';')
	b.WriteString(strconv.FormatInt(req.Amount, 10))
	b.WriteByte(';')
	b.WriteString(req.Currency)
	b.WriteByte(';')

	for _, name := range req.ProductNames {
		b.WriteString(name)
		b.WriteByte(';')
	}
	for _, count := range req.ProductCounts {
		b.WriteString(strconv.Itoa(count))
		b.WriteByte(';')
	}
	for i, price := range req.ProductPrices {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatInt(price, 10))
	}

	return s.digest(b.String())
}

func (s *Signer) digest(message string) string {
	mac := hmac.New(md5.New, s.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

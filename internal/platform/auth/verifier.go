package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the presented token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the presented token failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenVerifier validates access tokens and extracts the subject user id.
type TokenVerifier interface {
	VerifyToken(token string) (int64, error)
}

// cmsClaims mirrors the payload the CMS signs into its session tokens. The
// subject is carried as a numeric "id" claim rather than the registered sub.
type cmsClaims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

// HMACVerifier verifies HS256 tokens signed with the CMS JWT secret.
type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACVerifier constructs a verifier over the shared signing secret.
func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &HMACVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// VerifyToken parses and validates the token, returning the CMS user id.
func (v *HMACVerifier) VerifyToken(token string) (int64, error) {
	claims := &cmsClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID <= 0 {
		return 0, fmt.Errorf("%w: missing user id claim", ErrTokenInvalid)
	}
	return claims.ID, nil
}

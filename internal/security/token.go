package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Parse failure classes. Expiry is reported separately because callers
// answer it differently than a bad signature.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims mirror the token layout shared across the XOPay services: expiry
// plus the acting user and its groups. Interactive user tokens also carry
// a session expiry and the address they were minted for; system tokens
// leave both empty.
type Claims struct {
	UserID     string   `json:"user_id"`
	Groups     []string `json:"groups"`
	SessionExp int64    `json:"session_exp,omitempty"`
	IPAddr     string   `json:"ip_addr,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) InGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

func (c *Claims) InAnyGroup(groups ...string) bool {
	for _, g := range groups {
		if c.InGroup(g) {
			return true
		}
	}
	return false
}

// Signer mints and verifies the HMAC service tokens used between internal
// services. One instance is shared by the outbound HTTP client (minting) and
// the admin API middleware (verification).
type Signer struct {
	key      []byte
	method   jwt.SigningMethod
	lifetime time.Duration
	systemID string
}

func NewSigner(key, algorithm, systemUserID string, lifetime time.Duration) (*Signer, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %q is not an HMAC method", algorithm)
	}
	return &Signer{
		key:      []byte(key),
		method:   method,
		lifetime: lifetime,
		systemID: systemUserID,
	}, nil
}

// SystemToken mints a short-lived token identifying this service within the
// "system" group. Callers mint a fresh token per outgoing request.
func (s *Signer) SystemToken() (string, error) {
	claims := &Claims{
		UserID: s.systemID,
		Groups: []string{"system"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(s.lifetime)),
		},
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

// Parse verifies the signature and expiry of a raw token. Expired tokens
// come back as ErrTokenExpired, everything else as ErrTokenInvalid.
func (s *Signer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

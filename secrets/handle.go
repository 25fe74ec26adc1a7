// Package secrets issues the scoped, short-lived handles through which a
// master seed may be used for signing. The seed itself is only ever released
// against a valid handle, at signing time, for the one identity the handle
// names.
package secrets

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalidHandle = errors.New("secrets: invalid signing handle")
	ErrExpiredHandle = errors.New("secrets: signing handle expired")
)

type HandleIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewHandleIssuer(secret []byte, ttl time.Duration) (*HandleIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("handle secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HandleIssuer{secret: secret, ttl: ttl}, nil
}

// Issue mints a handle scoped to one DID. Handles are HS256 JWTs with a
// unique jti and a short expiry; possession of one authorizes signing as
// that DID and nothing else.
func (h *HandleIssuer) Issue(did string) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   did,
		"scope": "sigil.sign",
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(h.ttl).Unix(),
	})
	return token.SignedString(h.secret)
}

// Redeem validates a handle and returns the DID it is scoped to.
func (h *HandleIssuer) Redeem(handle string) (string, error) {
	token, err := new(jwt.Parser).Parse(handle, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unsupported signing method: %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredHandle
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidHandle
	}
	if scope, _ := claims["scope"].(string); scope != "sigil.sign" {
		return "", fmt.Errorf("%w: wrong scope", ErrInvalidHandle)
	}
	did, _ := claims["sub"].(string)
	if did == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidHandle)
	}
	return did, nil
}

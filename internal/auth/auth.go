// Package auth verifies the bearer credentials presented to the gateway.
//
// Tokens are HS256-signed JWTs produced by the task-management service. The
// shared secret is distributed base64-encoded and decoded once at startup.
// Beyond signature and expiry, a token must carry `type == "access_token"`;
// refresh or any other token kind is rejected even when otherwise valid.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vku/taskchat/internal/models"
)

// AccessTokenType is the required value of the `type` claim.
const AccessTokenType = "access_token"

// Credential error kinds. The HTTP layer maps all three to 401 but reports
// the kind to the caller.
var (
	ErrMissingCredential = errors.New("missing or malformed authorization header")
	ErrExpired           = errors.New("token expired")
	ErrInvalid           = errors.New("invalid token")
)

// Verifier validates access tokens against a pre-shared HS256 secret.
// Verification is a pure function of (token, secret, current time), so a
// single Verifier is safe for concurrent use.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier decodes the base64 secret and builds a Verifier.
func NewVerifier(secretBase64 string) (*Verifier, error) {
	secret, err := base64.StdEncoding.DecodeString(secretBase64)
	if err != nil {
		return nil, fmt.Errorf("decode jwt secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &Verifier{secret: secret, now: time.Now}, nil
}

// FromAuthorizationHeader extracts the raw token from an Authorization
// header value. Anything other than a non-empty "Bearer <token>" yields
// ErrMissingCredential.
func FromAuthorizationHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingCredential
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return "", ErrMissingCredential
	}
	return raw, nil
}

// Verify validates signature, expiry and token type, and extracts the
// caller identity.
func (v *Verifier) Verify(raw string) (*models.Claims, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	// Signature and expiry check out; the type claim is a separate
	// authorization-intent gate.
	tokenType, _ := claims["type"].(string)
	if tokenType != AccessTokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalid, tokenType)
	}

	id, ok := claims["id"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing numeric id claim", ErrInvalid)
	}
	username, _ := claims["sub"].(string)

	out := &models.Claims{
		UserID:    int64(id),
		Username:  username,
		TokenType: tokenType,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// Sign mints an access token for the given identity. Used by the token
// CLI command and by tests; the serving path only verifies.
func (v *Verifier) Sign(userID int64, username string, ttl time.Duration) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   userID,
		"sub":  username,
		"type": AccessTokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

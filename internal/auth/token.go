// Package auth verifies the bearer tokens that carry a shopper's user id.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/stitchbag/internal/domain/identity"
)

var _ identity.Provider = (*TokenVerifier)(nil)

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 24 * time.Hour

// TokenVerifier validates and issues HS256 tokens. The token subject is the
// user id.
type TokenVerifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenVerifier creates a TokenVerifier. An empty issuer disables the
// issuer check.
func NewTokenVerifier(secret []byte, issuer string) (*TokenVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	return &TokenVerifier{
		secret: secret,
		issuer: issuer,
		ttl:    DefaultTTL,
		now:    time.Now,
	}, nil
}

// Authenticate returns the user id of a valid token. Any malformed, expired,
// foreign or unsigned token yields identity.ErrInvalidToken.
func (v *TokenVerifier) Authenticate(_ context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", errors.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", identity.ErrInvalidToken
	}
	return claims.Subject, nil
}

// Issue signs a token for userID.
func (v *TokenVerifier) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is empty")
	}
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

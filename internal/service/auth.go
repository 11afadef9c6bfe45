package service

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/errs"
)

// TokenClaims is the shape of the bearer tokens issued by the auth
// service. This core only verifies; it never mints tokens.
type TokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

var _ Auther = (*TokenAuther)(nil)

type TokenAuther struct {
	secret []byte
}

func NewTokenAuther(secret []byte) *TokenAuther {
	return &TokenAuther{secret: secret}
}

// Verify parses and validates an HS256 token. Every failure mode —
// missing, malformed, expired, bad signature, unparsable subject — folds
// into errs.ErrAuthentication: the connection is refused either way and
// the distinction is not the client's business.
func (a *TokenAuther) Verify(_ context.Context, credential string) (uuid.UUID, error) {
	if credential == "" {
		return uuid.Nil, fmt.Errorf("%w: missing credential", errs.ErrAuthentication)
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(credential, claims,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errs.ErrAuthentication, err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", errs.ErrAuthentication)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errs.ErrAuthentication)
	}
	return userID, nil
}

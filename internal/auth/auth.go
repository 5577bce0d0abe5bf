// Package auth resolves the optional authenticated identity attached to a
// request. Authentication itself is delegated to an external identity
// provider; this package only verifies the bearer tokens it mints.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shortlyhq/shortly/internal/models"
)

// ErrInvalidToken is returned when a bearer token is present but cannot be
// verified.
var ErrInvalidToken = errors.New("invalid token")

type contextKey struct{}

var identityKey contextKey

// Claims is the token payload issued by the identity provider.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies identity-provider tokens.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
	}
}

// Authenticate extracts the optional identity from a request. A missing
// Authorization header yields (nil, nil): the request is anonymous. A
// present but unverifiable token yields ErrInvalidToken.
func (a *Authenticator) Authenticate(r *http.Request) (*models.Identity, error) {
	const op = "auth.Authenticator.Authenticate"

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}

	return &models.Identity{
		ID:   claims.Subject,
		Role: role,
	}, nil
}

// WithIdentity stores an identity on the context. A nil identity is stored
// as-is and reads back as anonymous.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity attached to the context, or nil when the
// request is anonymous.
func IdentityFrom(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey).(*models.Identity)
	return identity
}

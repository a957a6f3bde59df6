package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/store"
)

// TokenAuthenticator resolves a bearer credential to a user identity.
// It is the single verification capability shared by the HTTP auth middleware
// and the WebSocket handshake, so the two paths cannot drift apart.
type TokenAuthenticator interface {
	// Authenticate verifies the raw token and confirms the subject still
	// exists. Returns the user's ID on success.
	// Returns ErrMissingToken, ErrInvalidToken, ErrExpiredToken, or
	// ErrUnknownIdentity on failure.
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

// tokenAuthenticator verifies JWTs and resolves their subject against the
// user store.
type tokenAuthenticator struct {
	jwtService JWTService
	userStore  store.UserStore
}

// Ensure tokenAuthenticator implements TokenAuthenticator
var _ TokenAuthenticator = (*tokenAuthenticator)(nil)

// NewTokenAuthenticator creates a TokenAuthenticator backed by the given JWT
// service and user store.
func NewTokenAuthenticator(jwtService JWTService, userStore store.UserStore) TokenAuthenticator {
	return &tokenAuthenticator{
		jwtService: jwtService,
		userStore:  userStore,
	}
}

// Authenticate implements TokenAuthenticator.
func (a *tokenAuthenticator) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrMissingToken
	}

	claims, err := a.jwtService.ValidateToken(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}

	// The token may outlive the account it was issued for.
	if _, err := a.userStore.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			logger.FromContext(ctx).Debug("token subject no longer exists",
				"user_id", claims.UserID)
			return uuid.Nil, ErrUnknownIdentity
		}
		return uuid.Nil, fmt.Errorf("failed to look up token subject: %w", err)
	}

	return claims.UserID, nil
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>"
// header value. Returns ErrMissingToken when the header is absent or not in
// Bearer form.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMissingToken
	}
	return parts[1], nil
}

// Package auth provides the authentication services of the application:
// JWT token generation and validation, password hashing, and the
// TokenAuthenticator capability that both the HTTP middleware and the
// WebSocket handshake use to resolve a bearer credential to a user identity.
package auth

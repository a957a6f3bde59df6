package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/taskwire/taskwire/internal/api/shared"
	"github.com/taskwire/taskwire/internal/service/auth"
)

// Handler authenticates WebSocket handshakes and hands accepted connections
// to the hub. Authentication happens entirely before the upgrade: a request
// without a valid bearer credential is rejected with a plain HTTP error and
// never touches the hub.
type Handler struct {
	authenticator auth.TokenAuthenticator
	hub           *Hub
	upgrader      websocket.Upgrader
	logger        *slog.Logger
}

// NewHandler creates a WebSocket handshake handler backed by the given
// authenticator and hub.
func NewHandler(authenticator auth.TokenAuthenticator, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		authenticator: authenticator,
		hub:           hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checking is the deployment proxy's concern; the
			// handshake itself is protected by bearer authentication.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "ws_handler"),
	}
}

// ServeHTTP implements http.Handler for the /ws endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
		return
	}

	// Token verification may hit the database; it completes fully before
	// any hub registration and holds no hub locks.
	userID, err := h.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrTokenNotYetValid),
			errors.Is(err, auth.ErrUnknownIdentity),
			errors.Is(err, auth.ErrMissingToken):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
		default:
			h.logger.Error("handshake authentication failed", "error", err)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("websocket upgrade failed", "error", err, "user_id", userID)
		return
	}

	client := newClient(userID.String(), conn, h.hub, h.logger)
	h.hub.Join(client)

	h.logger.Info("websocket connection established", "user_id", userID)

	go client.writePump()
	go client.readPump()
}

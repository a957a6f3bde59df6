package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taskwire/taskwire/internal/api/middleware"
)

// AuthRequirement states whether an entry point demands a verified identity.
type AuthRequirement int

const (
	// Public routes dispatch without any credential check.
	Public AuthRequirement = iota

	// Required routes reject requests lacking a valid bearer token before
	// the handler runs.
	Required
)

// Route maps one entry point to its handler and authentication requirement.
// The full set of routes is a plain static table, so the auth posture of
// every endpoint is visible in one place and checked at construction.
type Route struct {
	Method      string
	Pattern     string
	Requirement AuthRequirement
	Handler     http.HandlerFunc
}

// Routes builds the application's route table.
// The WebSocket endpoint is listed Public because its handler performs its
// own bearer check during the handshake, before the connection upgrade.
func Routes(
	authHandler *AuthHandler,
	userHandler *UserHandler,
	taskHandler *TaskHandler,
	wsHandler http.Handler,
) []Route {
	return []Route{
		{http.MethodPost, "/auth/signup", Public, authHandler.Signup},
		{http.MethodPost, "/auth/login", Public, authHandler.Login},
		{http.MethodGet, "/users/me", Required, userHandler.Me},
		{http.MethodPost, "/tasks", Required, taskHandler.Create},
		{http.MethodGet, "/tasks", Required, taskHandler.List},
		{http.MethodGet, "/tasks/{task_id}", Required, taskHandler.Get},
		{http.MethodPatch, "/tasks/{task_id}", Required, taskHandler.Update},
		{http.MethodDelete, "/tasks/{task_id}", Required, taskHandler.Delete},
		{http.MethodGet, "/ws", Public, wsHandler.ServeHTTP},
	}
}

// NewRouter assembles a chi router from the route table, applying the auth
// middleware to every route whose requirement is Required.
func NewRouter(routes []Route, authMiddleware *middleware.AuthMiddleware) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Trace)

	r.Group(func(public chi.Router) {
		for _, route := range routes {
			if route.Requirement == Public {
				public.Method(route.Method, route.Pattern, route.Handler)
			}
		}
	})

	r.Group(func(protected chi.Router) {
		protected.Use(authMiddleware.Authenticate)
		for _, route := range routes {
			if route.Requirement == Required {
				protected.Method(route.Method, route.Pattern, route.Handler)
			}
		}
	})

	return r
}

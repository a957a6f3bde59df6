package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/api/middleware"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/events"
	"github.com/taskwire/taskwire/internal/platform/postgres"
	"github.com/taskwire/taskwire/internal/service/auth"
	"github.com/taskwire/taskwire/internal/ws"
	"github.com/taskwire/taskwire/internal/ws/bridge"
)

// application holds the process-wide components, constructed once at startup
// and passed explicitly to whatever needs them.
type application struct {
	config *config.Config
	logger *slog.Logger

	db          *sql.DB
	redisClient *redis.Client

	hub       *ws.Hub
	bridge    *bridge.RedisBridge
	publisher *events.Publisher
	router    http.Handler
}

// newApplication wires the full dependency graph: stores, authentication,
// the realtime hub and bridge, the event publisher, and the HTTP router.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, logger); err != nil {
		return nil, err
	}

	userStore := postgres.NewUserStore(db)
	taskStore := postgres.NewTaskStore(db)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	bcrypt := auth.NewBcryptVerifier()
	authenticator := auth.NewTokenAuthenticator(jwtService, userStore)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The bridge reconnects on its own; an unreachable broker at
		// startup degrades delivery to this instance only.
		logger.Warn("broker unreachable at startup, continuing with local delivery only",
			"error", err, "addr", cfg.Redis.Addr)
	}

	hub := ws.NewHub(logger)
	eventBridge := bridge.New(redisClient, cfg.Redis.Stream, logger)
	publisher := events.NewPublisher(hub, eventBridge, logger)

	// Local presence transitions are forwarded to other instances, and
	// envelopes received from other instances are delivered locally.
	hub.SetPresenceListener(publisher.PresenceChanged)
	eventBridge.Subscribe(publisher.HandleEnvelope)

	authHandler := api.NewAuthHandler(userStore, jwtService, bcrypt, bcrypt)
	userHandler := api.NewUserHandler(userStore)
	taskHandler := api.NewTaskHandler(taskStore, publisher)
	wsHandler := ws.NewHandler(authenticator, hub, logger)

	routes := api.Routes(authHandler, userHandler, taskHandler, wsHandler)
	router := api.NewRouter(routes, middleware.NewAuthMiddleware(authenticator))

	return &application{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		hub:         hub,
		bridge:      eventBridge,
		publisher:   publisher,
		router:      router,
	}, nil
}

// run starts the bridge subscription loop and the HTTP server, and blocks
// until the context is canceled or the server fails.
func (app *application) run(ctx context.Context) error {
	go func() {
		if err := app.bridge.Run(ctx); err != nil && ctx.Err() == nil {
			app.logger.Error("bridge subscription loop exited", "error", err)
		}
	}()

	return app.startHTTPServer(ctx, app.router)
}

// cleanup releases the application's external connections.
func (app *application) cleanup() {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("failed to close broker connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}

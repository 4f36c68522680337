// Package server wires configuration, stores and handlers into an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/moneytrail/apiserver/config"
	"github.com/moneytrail/apiserver/internal/cache"
	"github.com/moneytrail/apiserver/internal/handlers"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/mail"
	"github.com/moneytrail/apiserver/internal/services"
	"github.com/moneytrail/apiserver/internal/storage"
	"github.com/moneytrail/apiserver/types"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	limiter    *handlers.RateLimiter
	logger     *log.Logger
	closers    []func() error
}

// Deps are the already-opened collaborators of a Server.
type Deps struct {
	Stores     Stores
	Objects    storage.ObjectStorage
	Mailer     mail.Sender
	Dashboards cache.DashboardCache
	// Clock overrides time.Now for the dashboard and auth flows.
	Clock func() time.Time
}

// New opens every backend named in cfg and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	fail := func(err error) (*Server, error) {
		closeAll(closers)
		return nil, err
	}

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, stores.Close)

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}

	mailer, closeMailer, err := OpenMailer(ctx, cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("open mailer: %w", err))
	}
	closers = append(closers, closeMailer)

	dashboards, closeCache := OpenDashboardCache(ctx, cfg.Redis, logger)
	closers = append(closers, closeCache)

	srv := NewWithDeps(cfg, logger, Deps{
		Stores:     stores,
		Objects:    objects,
		Mailer:     mailer,
		Dashboards: dashboards,
	})
	srv.closers = closers
	logger.Info("server configured",
		log.FieldOperation, log.OpStartup,
		"database", cfg.Database.Backend,
		"storage", cfg.Storage.Backend,
		"mq", cfg.MQ.Backend,
	)
	return srv, nil
}

// NewWithDeps builds the router around already-opened collaborators.
func NewWithDeps(cfg config.Config, logger *log.Logger, deps Deps) *Server {
	if deps.Dashboards == nil {
		deps.Dashboards = cache.Noop{}
	}

	var authOpts []services.AuthOption
	if deps.Clock != nil {
		authOpts = append(authOpts, services.WithAuthClock(deps.Clock))
	}
	authService := services.NewAuthService(deps.Stores.Users, deps.Stores.Codes, deps.Mailer, cfg.Auth, logger, authOpts...)
	imageService := services.NewImageService(deps.Objects, cfg.PublicBaseURL, logger)
	incomeService := services.NewTransactionService(types.KindIncome, deps.Stores.Incomes, deps.Dashboards, logger)
	expenseService := services.NewTransactionService(types.KindExpense, deps.Stores.Expenses, deps.Dashboards, logger)
	dashboardService := services.NewDashboardService(deps.Stores.Incomes, deps.Stores.Expenses, deps.Dashboards, logger)
	if deps.Clock != nil {
		dashboardService.WithClock(deps.Clock)
	}

	limiter := handlers.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst)
	authMiddleware := handlers.RequireAuth(authService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		log.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins(cfg.ClientURL),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: cfg.ClientURL != "*",
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Health(deps.Stores.Pinger))

	routes := func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authService, imageService, limiter.Middleware)
		})
		r.Route("/income", func(r chi.Router) {
			handlers.TransactionRouter(r, incomeService, authMiddleware)
		})
		r.Route("/expense", func(r chi.Router) {
			handlers.TransactionRouter(r, expenseService, authMiddleware)
		})
		r.Route("/dashboard", func(r chi.Router) {
			handlers.DashboardRouter(r, dashboardService, authMiddleware)
		})
		r.Route("/uploads", func(r chi.Router) {
			handlers.UploadsRouter(r, imageService)
		})
	}
	router.Group(routes)
	router.Route("/api/v1", routes)

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		limiter:    limiter,
		logger:     logger,
	}
}

// Router exposes the chi router, mainly for in-process tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.limiter.Stop()
	closeAll(s.closers)
	s.logger.Info("server stopped", log.FieldOperation, log.OpShutdown)
	return err
}

func closeAll(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i]()
	}
}

func allowedOrigins(clientURL string) []string {
	var origins []string
	for _, origin := range strings.Split(clientURL, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

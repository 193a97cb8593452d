// Package httpapi exposes gatekeeper operations as a JSON API over fiber.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

// Services bundles the operations the API exposes.
type Services struct {
	Auth     *services.AuthService
	Invites  *services.InviteService
	Accounts *services.AccountService
	Profiles *services.ProfileService
	Sweeper  *services.SweepService
}

// Limits configures per-client request pacing on the unauthenticated
// credential endpoints. Requests <= 0 disables limiting.
type Limits struct {
	Requests int
	Per      time.Duration
}

type Server struct {
	address string
	logger  logging.Logger
	svc     Services
	limits  Limits
}

func NewServer(address string, logger logging.Logger, svc Services, limits Limits) *Server {
	return &Server{
		address: address,
		logger:  logger.With("module", "http"),
		svc:     svc,
		limits:  limits,
	}
}

// App builds the fiber application. The context bounds background work
// started by middleware.
func (s *Server) App(ctx context.Context) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "gatekeeper",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(s.logger),
	})

	app.Use(recover.New())
	app.Use(requestLogger(s.logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := app.Group("/api")

	// Credential endpoints are registered before the admin group so its
	// middleware never runs for them.
	limited := func(h fiber.Handler) []fiber.Handler { return []fiber.Handler{h} }
	if s.limits.Requests > 0 {
		limiter := RateLimiter(ctx, s.limits.Requests, s.limits.Per)
		limited = func(h fiber.Handler) []fiber.Handler { return []fiber.Handler{limiter, h} }
	}
	api.Post("/login", limited(s.handleLogin)...)
	api.Post("/logout", s.handleLogout)
	api.Post("/invites/:code/redeem", limited(s.handleRedeem)...)

	admin := api.Group("", s.requireSession, s.requireAdmin)

	admin.Get("/invites", s.handleListInvites)
	admin.Post("/invites", s.handleCreateInvite)
	admin.Post("/invites/cleanup", s.handleCleanupInvites)
	admin.Get("/invites/:code", s.handleGetInvite)
	admin.Delete("/invites/:code", s.handleDeleteInvite)

	admin.Get("/accounts", s.handleListAccounts)
	admin.Post("/accounts/:id/disable", s.handleDisableAccount)
	admin.Post("/accounts/:id/enable", s.handleEnableAccount)
	admin.Put("/accounts/:id/expiry", s.handleSetExpiry)
	admin.Put("/accounts/:id/admin", s.handleSetAdmin)
	admin.Delete("/accounts/:id", s.handleDeleteAccount)

	admin.Post("/sweeps", s.handleSweep)

	admin.Get("/profiles", s.handleListProfiles)
	admin.Post("/profiles", s.handleCaptureProfile)
	admin.Delete("/profiles/:id", s.handleDeleteProfile)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	return app
}

func (s *Server) Run(ctx context.Context) error {
	app := s.App(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := app.Listen(s.address); err != nil {
		return err
	}
	return nil
}

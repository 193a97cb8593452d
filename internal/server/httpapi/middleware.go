package httpapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const (
	localSession = "session"
	localAccount = "account"

	clientIdle = 10 * time.Minute
)

// RateLimiter paces requests per client IP. Idle clients are forgotten;
// the cleanup loop stops with ctx.
func RateLimiter(ctx context.Context, requests int, per time.Duration) fiber.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		clients = make(map[string]*client)
		mu      sync.Mutex
	)

	go func() {
		ticker := time.NewTicker(clientIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				for ip, c := range clients {
					if time.Since(c.lastSeen) > clientIdle {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *fiber.Ctx) error {
		ip := c.IP()

		mu.Lock()
		cl, ok := clients[ip]
		if !ok {
			cl = &client{limiter: rate.NewLimiter(rate.Every(per/time.Duration(requests)), requests)}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, try again later")
		}
		return c.Next()
	}
}

func requestLogger(logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug(c.UserContext(), "request", "method", c.Method(), "path", c.Path(),
			"status", c.Response().StatusCode(), "duration", time.Since(start))
		return err
	}
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (s *Server) requireSession(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return common.ErrorUnauthorized
	}
	session, err := s.svc.Auth.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(localSession, session)
	return c.Next()
}

// requireAdmin checks the account's current admin flag on every request.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	session, ok := c.Locals(localSession).(*models.Session)
	if !ok {
		return common.ErrorUnauthorized
	}
	account, err := s.svc.Auth.RequireAdmin(c.UserContext(), session)
	if err != nil {
		return err
	}
	c.Locals(localAccount, account)
	return c.Next()
}

func currentAccount(c *fiber.Ctx) *models.Account {
	account, _ := c.Locals(localAccount).(*models.Account)
	return account
}

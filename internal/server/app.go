// Package server wires the gatekeeper components together and runs them:
// the JSON API, the gRPC health endpoint and the background expiry sweeper.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"

	gs "github.com/dmitrijs2005/gatekeeper/internal/server/grpc"
)

// MemoryRemote as RemoteBaseURL runs against an in-process media server
// directory instead of a real one.
const MemoryRemote = "memory"

const (
	remoteRetries     = 3
	remoteRetryBase   = 200 * time.Millisecond
	healthInterval    = 15 * time.Second
	loginRateRequests = 10
	loginRatePeriod   = time.Minute
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	sweeper *services.SweepService
	http    *httpapi.Server
	health  *gs.HealthServer
}

func newGateway(c *config.Config) (remote.Gateway, error) {
	if strings.EqualFold(strings.TrimSpace(c.RemoteBaseURL), MemoryRemote) {
		return remote.NewMemoryDirectory(), nil
	}
	return remote.NewClient(remote.ClientConfig{
		BaseURL:   c.RemoteBaseURL,
		APIKey:    c.RemoteAPIKey,
		Timeout:   c.RemoteTimeout,
		RateLimit: c.RemoteRateLimit,
	})
}

// newServices builds the services behind the API. Background jobs tolerate
// transient media server failures through retries; anything serving a
// request talks to the plain gateway and fails fast.
func newServices(c *config.Config, repos repomanager.RepositoryManager, gw remote.Gateway, hasher cryptox.Hasher, logger logging.Logger) httpapi.Services {
	background := remote.WithRetry(gw, remoteRetries, remoteRetryBase)

	// listing accounts synchronizes inline, so it gets its own fail-fast syncer
	requestSync := services.NewSyncService(repos.Accounts(), gw, hasher, logger)

	return httpapi.Services{
		Auth:     services.NewAuthService(repos.Accounts(), repos.Sessions(), gw, hasher, c.SecretKey, c.SessionValidityDuration, logger),
		Invites:  services.NewInviteService(repos.Invites(), repos.Accounts(), repos.Profiles(), gw, hasher, c.InviteValidityDuration, logger),
		Accounts: services.NewAccountService(repos.Accounts(), requestSync, gw, hasher, logger),
		Profiles: services.NewProfileService(repos.Profiles(), gw, logger),
		Sweeper:  services.NewSweepService(repos.Accounts(), repos.Sessions(), background, logger),
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if c.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}

	repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	gw, err := newGateway(c)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("remote init error: %w", err)
	}
	svc := newServices(c, repos, gw, cryptox.NewArgon2Hasher(cryptox.DefaultArgon2Params), logger)

	if c.BootstrapAdminUser != "" {
		created, err := svc.Accounts.Bootstrap(ctx, c.BootstrapAdminUser, c.BootstrapAdminPassword)
		if err != nil {
			_ = repos.Close()
			return nil, fmt.Errorf("bootstrap admin error: %w", err)
		}
		if created {
			logger.Info(ctx, "bootstrap administrator created", "username", c.BootstrapAdminUser)
		}
	}

	return &App{
		config:  c,
		logger:  logger,
		repos:   repos,
		sweeper: svc.Sweeper,
		http:    httpapi.NewServer(c.EndpointAddrHTTP, logger, svc, httpapi.Limits{Requests: loginRateRequests, Per: loginRatePeriod}),
		health:  gs.NewHealthServer(c.EndpointAddrHealth, logger, repos.Ping, healthInterval),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runServer runs one listener; its failure stops the whole app.
func (app *App) runServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx, app.config.SweepInterval)
	}()
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "health", app.health.Run)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(context.Background(), "failed to close store", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}

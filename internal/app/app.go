// Package app assembles the simulator from its configuration and manages
// its lifecycle from startup to graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/leonletto/tellersim/internal/auth"
	"github.com/leonletto/tellersim/internal/config"
	"github.com/leonletto/tellersim/internal/dispatch"
	"github.com/leonletto/tellersim/internal/httpapi"
	"github.com/leonletto/tellersim/internal/identity"
	"github.com/leonletto/tellersim/internal/journal"
	"github.com/leonletto/tellersim/internal/ratelimit"
	"github.com/leonletto/tellersim/internal/rpc"
	"github.com/leonletto/tellersim/internal/scheduler"
	"github.com/leonletto/tellersim/internal/websocket"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdleAge       = 10 * time.Minute
)

// App is one running simulator: a listener serving the terminal and
// observer endpoints plus the HTTP collaborators.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	scheduler       *scheduler.Scheduler
	hub             *websocket.Hub
	server          *websocket.Server
	journal         *journal.Journal
	store           *auth.Store
	observerLimiter *ratelimit.Limiter
	loginLimiter    *ratelimit.Limiter

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	sweepers     sync.WaitGroup
	stopOnce     sync.Once
	stopErr      error
}

// New wires every component. It opens the journal when one is configured
// but does not bind the listener.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}

	counters := identity.NewCounters(cfg.Mock.SessionStart, cfg.Mock.CallStart, cfg.Mock.ImageStart)
	handlers := rpc.NewHandlers(rpc.Deps{
		Mock: rpc.MockData{
			TellerID:        cfg.Mock.TellerID,
			TellerFirstName: cfg.Mock.TellerFirstName,
			TellerLastName:  cfg.Mock.TellerLastName,
			TellerUsername:  cfg.Mock.TellerUsername,
		},
		Counters: counters,
		Delays:   rpc.Delays(cfg.Delays),
		Logger:   logger,
	})
	registry, err := rpc.NewRegistry(handlers)
	if err != nil {
		return nil, fmt.Errorf("build handler registry: %w", err)
	}

	a.scheduler = scheduler.New(logger)
	a.hub = websocket.NewHub(a.scheduler, logger)

	mirrors := dispatch.Mirrors{a.hub}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path, cfg.Journal.Buffer, logger)
		if err != nil {
			a.scheduler.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		mirrors = append(mirrors, j)
	}

	dispatcher := dispatch.New(dispatch.Options{
		Handlers:  registry,
		Scheduler: a.scheduler,
		Terminals: a.hub,
		Mirror:    mirrors,
		Logger:    logger,
	})

	a.store = auth.NewStore(auth.Credentials{Username: cfg.Auth.Username, Password: cfg.Auth.Password}, cfg.Auth.SessionTTL)
	a.observerLimiter = ratelimit.New(limiterConfig(cfg.Observer))
	a.loginLimiter = ratelimit.New(limiterConfig(cfg.LoginRate))

	api := httpapi.NewHandlers(httpapi.Options{
		Store:         a.store,
		EncryptionKey: cfg.Auth.EncryptionKey,
		Counters:      counters,
		LoginLimiter:  a.loginLimiter,
		Stats:         a.hub,
		Version:       version,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Logger:        logger,
	})

	var authorize func(*http.Request) bool
	if cfg.Auth.RequireLogin {
		authorize = a.store.Authorize
	}

	a.server = websocket.NewServer(cfg.Server.Addr, websocket.Options{
		TerminalPath:    cfg.Server.TerminalPath,
		ObserverPath:    cfg.Server.ObserverPath,
		SendBuffer:      cfg.Server.SendBuffer,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		Dispatcher:      dispatcher,
		Hub:             a.hub,
		ObserverLimiter: a.observerLimiter,
		Authorize:       authorize,
		Fallback:        api.Router(),
		Logger:          logger,
	})
	return a, nil
}

// Start binds the listener and starts the background sweeper.
func (a *App) Start(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	a.sweepers.Add(1)
	go a.sweepLimiters()
	return nil
}

// Addr returns the bound listener address.
func (a *App) Addr() string {
	return a.server.Addr()
}

// Hub exposes the connection registry.
func (a *App) Hub() *websocket.Hub {
	return a.hub
}

// Run starts the simulator and blocks until ctx is done, SIGINT or SIGTERM
// arrives, or Shutdown is called. It then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	select {
	case <-sigCtx.Done():
		a.logger.Info("shutdown requested", "reason", context.Cause(sigCtx))
	case <-a.shutdownCh:
		a.logger.Info("shutdown requested", "reason", "programmatic")
	}
	return a.stop()
}

// Shutdown triggers a graceful shutdown of a running Run.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// Stop shuts down a simulator started with Start.
func (a *App) Stop() error {
	a.Shutdown()
	return a.stop()
}

// stop closes every connection (cancelling their pending notifications),
// shuts the listener down within the configured timeout, stops the
// scheduler and flushes the journal. Only the first call has any effect.
func (a *App) stop() error {
	a.stopOnce.Do(func() {
		a.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
		a.scheduler.Close()
		if a.journal != nil {
			if err := a.journal.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close journal: %w", err))
			}
		}
		a.sweepers.Wait()

		if len(errs) > 0 {
			a.stopErr = errors.Join(errs...)
			a.logger.Error("shutdown finished with errors", "error", a.stopErr)
			return
		}
		a.logger.Info("graceful shutdown complete")
	})
	return a.stopErr
}

// sweepLimiters forgets idle limiter keys until shutdown.
func (a *App) sweepLimiters() {
	defer a.sweepers.Done()

	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.shutdownCh:
			return
		case <-ticker.C:
			n := a.observerLimiter.CleanupStale(limiterIdleAge) + a.loginLimiter.CleanupStale(limiterIdleAge)
			if n > 0 {
				a.logger.Debug("forgot idle rate limiter keys", "removed", n)
			}
		}
	}
}

func limiterConfig(rc config.RateConfig) ratelimit.Config {
	return ratelimit.Config{PerSecond: rc.PerSecond, Burst: rc.Burst, Enabled: rc.Enabled}
}

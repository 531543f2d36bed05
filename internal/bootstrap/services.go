package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boudydegeer/product-analysis-sub000/config"
	reconcileradapter "github.com/boudydegeer/product-analysis-sub000/internal/adapters/reconciler"
	"github.com/boudydegeer/product-analysis-sub000/internal/adapters/runner"
	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/data"
	"github.com/boudydegeer/product-analysis-sub000/internal/service"
)

const shutdownWaitTimeout = 10 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	WorkItems *service.WorkItemService
	Webhook   *service.WebhookService
	Runner    core.AnalysisRunner
	Cache     core.StatusCache
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, the runner client, and the application
// services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps and config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	itemRepo := data.NewWorkItemRepo(deps.DB, data.RepoConfig{Logger: logger})
	resultRepo := data.NewResultRecordRepo(deps.DB)

	var cache core.StatusCache
	if deps.RedisClient != nil {
		cache = data.NewRedisCacheRepo(deps.RedisClient)
	}

	runnerClient, err := runner.NewClient(runner.ClientOptions{
		BaseURL:  deps.Config.Runner.BaseURL,
		APIToken: deps.Config.Runner.APIToken,
		Timeout:  deps.Config.Runner.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build runner client: %w", err)
	}

	workItems, err := service.NewWorkItemService(service.WorkItemServiceOptions{
		Items:       itemRepo,
		Results:     resultRepo,
		Runner:      runnerClient,
		CallbackURL: deps.Config.Runner.CallbackURL,
		Cache:       cache,
		StatusTTL:   deps.Config.Cache.StatusTTL,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build work item service: %w", err)
	}

	webhook, err := service.NewWebhookService(service.WebhookServiceOptions{
		Items:  itemRepo,
		Cache:  cache,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build webhook service: %w", err)
	}

	return ServiceContainer{
		WorkItems: workItems,
		Webhook:   webhook,
		Runner:    runnerClient,
		Cache:     cache,
	}, nil
}

// ServiceOrchestrationConfig groups everything needed to run the enabled
// services.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Services    ServiceContainer
	Logger      *slog.Logger
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, len(enabled)+1)

	var httpServer *http.Server
	if enabled[config.ServiceModeHTTP] {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
	}

	var backgrounds []backgroundServiceHandle
	if enabled[config.ServiceModeReconciler] {
		handle, startErr := startReconciler(serviceCtx, cfg, logger, errCh)
		if startErr != nil {
			return startErr
		}
		backgrounds = append(backgrounds, handle)
	}

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  httpServer,
		logger:      logger,
		backgrounds: backgrounds,
	})
}

func startReconciler(
	ctx context.Context,
	cfg *ServiceOrchestrationConfig,
	logger *slog.Logger,
	errCh chan<- error,
) (backgroundServiceHandle, error) {
	loop, err := reconcileradapter.NewRunner(reconcileradapter.RunnerOptions{
		DB:           cfg.DB,
		Config:       cfg.Config.Reconciler,
		Logger:       logger,
		RunnerClient: cfg.Services.Runner,
		Cache:        cfg.Services.Cache,
	})
	if err != nil {
		return backgroundServiceHandle{}, fmt.Errorf("build reconciler runner: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := loop.Run(ctx); runErr != nil {
			select {
			case errCh <- fmt.Errorf("reconciler failed: %w", runErr):
			case <-ctx.Done():
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", "reconciler")
	return backgroundServiceHandle{name: "reconciler", done: done}, nil
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for a shutdown signal or a service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}

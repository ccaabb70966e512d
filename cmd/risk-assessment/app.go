package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cuongbtq/phantom-risk/internal/api/handler"
	"github.com/cuongbtq/phantom-risk/internal/api/router"
	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/metrics"
	"github.com/cuongbtq/phantom-risk/internal/notify"
	"github.com/cuongbtq/phantom-risk/internal/registry"
	"github.com/cuongbtq/phantom-risk/internal/runner"
	"github.com/cuongbtq/phantom-risk/shared/database"
	"github.com/cuongbtq/phantom-risk/shared/logger"
	"github.com/cuongbtq/phantom-risk/shared/rabbitmq"
)

// app owns every long-lived resource of one command invocation
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *database.Client
	registry *registry.Storage
	rabbit   *rabbitmq.Client
	promReg  *prometheus.Registry
	runner   *runner.Runner
}

// newApp loads the configuration and initializes the enabled integrations.
// Targets selection only needs the logger, so withIntegrations is false there.
func newApp(configPath string, withIntegrations bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  appLogger,
		promReg: prometheus.NewRegistry(),
	}
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	appLogger.Info("Starting risk assessment",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	runnerCfg := runner.Config{
		Logger:          appLogger.Logger,
		Metrics:         metrics.New(a.promReg),
		ResultDirectory: cfg.Output.ResultDirectory,
		Workers:         cfg.Worker.Concurrency,
		XLSX:            cfg.Output.XLSX,
	}

	if withIntegrations {
		if err := a.initIntegrations(&runnerCfg); err != nil {
			a.close()
			return nil, err
		}
	}

	a.runner = runner.New(runnerCfg)
	return a, nil
}

func (a *app) initIntegrations(runnerCfg *runner.Config) error {
	if a.cfg.Database.Enabled {
		dbClient, err := initDatabase(&a.cfg.Database, a.logger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = dbClient

		a.registry = registry.NewStorage(dbClient)
		if err := a.registry.Migrate(context.Background()); err != nil {
			return fmt.Errorf("failed to migrate run registry: %w", err)
		}
		runnerCfg.Registry = a.registry

		a.logger.Info("Run registry ready", slog.String("driver", a.cfg.Database.Driver))
	}

	if a.cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&a.cfg.RabbitMQ, a.logger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		a.rabbit = rabbitClient
		runnerCfg.Notifier = notify.NewNotifier(rabbitClient, a.logger.Logger)

		a.logger.Info("RabbitMQ connection established")
	}

	return nil
}

// close releases resources in reverse order of creation
func (a *app) close() {
	if a.rabbit != nil {
		a.rabbit.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}

// execute runs fn under a signal-aware context. A signal stops the runner,
// which lets in-flight jobs finish; the wait is bounded by the worker shutdown timeout.
func execute(parent context.Context, configPath string, fn func(context.Context, *runner.Runner) error) error {
	if parent == nil {
		parent = context.Background()
	}

	a, err := newApp(configPath, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := a.startServer()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx, a.runner)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received, stopping assessment...")
		a.runner.Stop()

		select {
		case runErr = <-done:
		case <-time.After(a.cfg.Worker.ShutdownTimeout):
			a.logger.Warn("Worker shutdown timeout exceeded, forcing exit",
				slog.Duration("timeout", a.cfg.Worker.ShutdownTimeout),
			)
			runErr = errors.New("assessment did not stop within the shutdown timeout")
		}
	}

	if srv != nil {
		a.shutdownServer(srv)
	}

	if runErr != nil {
		a.logger.Error("Risk assessment failed", slog.Any("error", runErr))
		return runErr
	}

	a.logger.Info("Risk assessment finished")
	return nil
}

// startServer serves health, progress, metrics and the run registry while an assessment runs
func (a *app) startServer() *http.Server {
	if !a.cfg.Server.Enabled {
		return nil
	}

	r := initRouter(a.cfg.App.Environment, a)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	a.logger.Info("Starting status server",
		slog.String("address", addr),
		slog.Duration("read_timeout", a.cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", a.cfg.Server.WriteTimeout),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// the assessment keeps running without its status endpoints
			a.logger.Error("Status server failed", slog.Any("error", err))
		}
	}()

	return srv
}

func (a *app) shutdownServer(srv *http.Server) {
	a.logger.Info("Shutting down status server...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("Status server forced to shutdown", slog.Any("error", err))
		return
	}
	a.logger.Info("Status server shutdown complete")
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initDatabase opens the run registry database
func initDatabase(cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Client, error) {
	dbConfig := &database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return database.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the completion event publisher
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router of the status server
func initRouter(environment string, a *app) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:   a.logger.Logger,
		Gatherer: a.promReg,
		Progress: a.runner,
	}
	// typed nils would defeat the nil checks in the router and handlers
	if a.registry != nil {
		deps.Runs = a.registry
	}
	if a.db != nil {
		deps.Database = a.db
	}

	return router.SetupRouter(deps)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/accountreport"
	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/cuongbtq/billing-inspector/internal/paramcheck"
	"github.com/cuongbtq/billing-inspector/internal/scheduler"
	"github.com/cuongbtq/billing-inspector/internal/scheduler/storage"
	"github.com/cuongbtq/billing-inspector/internal/xxlaudit"
	"github.com/cuongbtq/billing-inspector/internal/xxljob"
	"github.com/cuongbtq/billing-inspector/shared/database"
	"github.com/cuongbtq/billing-inspector/shared/logger"
	"github.com/cuongbtq/billing-inspector/shared/postgresql"
	"github.com/cuongbtq/billing-inspector/shared/rabbitmq"
	"github.com/cuongbtq/billing-inspector/shared/sms"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("SCHEDULER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/scheduler-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	runOnce := flag.String("run", "", "Run one pipeline immediately and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateSchedulerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize logger
	baseLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer baseLogger.Close()
	appLogger := baseLogger.With(slog.String("service", "scheduler"))

	appLogger.Info("Starting scheduler service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("timezone", loc.String()),
	)

	jobs := initJobs(cfg, loc, appLogger)

	schedCfg := &scheduler.Config{
		Logger:        appLogger.Logger,
		Pipelines:     cfg.Scheduler.Pipelines,
		Jobs:          jobs,
		Location:      loc,
		Concurrency:   cfg.Scheduler.Concurrency,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
	}

	// Run history is optional
	var dbClient *postgresql.Client
	if cfg.RunStore.Enabled {
		dbClient, err = initPostgreSQL(&cfg.RunStore, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize run store: %w", err)
		}
		defer dbClient.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = dbClient.Migrate(migrateCtx)
		cancel()
		if err != nil {
			return err
		}

		schedCfg.Store = storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
		appLogger.Info("Run store connection established")
	}

	// Manual run requests are optional
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled && *runOnce == "" {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		schedCfg.Requests = rabbitClient
		appLogger.Info("RabbitMQ connection established")
	}

	sched, err := scheduler.New(schedCfg)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if *runOnce != "" {
		return runPipelineOnce(sched, cfg, *runOnce, appLogger.Logger)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := sched.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Scheduler service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Scheduler error",
			slog.Any("error", err),
		)
		return err
	}

	// Give running jobs time to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		appLogger.Warn("Scheduler shutdown timeout exceeded, forcing exit",
			slog.Any("error", err),
		)
	}
	cancel()

	appLogger.Info("Scheduler service shutdown complete")
	return nil
}

// runPipelineOnce executes a single pipeline synchronously
func runPipelineOnce(sched *scheduler.Scheduler, cfg *config.Config, pipelineID string, logger *slog.Logger) error {
	if _, ok := cfg.Pipeline(pipelineID); !ok {
		return fmt.Errorf("unknown pipeline %q", pipelineID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	message, err := sched.RunNow(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("pipeline %s failed: %w", pipelineID, err)
	}

	logger.Info("Pipeline finished",
		slog.String("pipeline_id", pipelineID),
		slog.String("message", message),
	)
	return nil
}

// initJobs builds the job behind every pipeline
func initJobs(cfg *config.Config, loc *time.Location, appLogger *logger.Logger) map[string]scheduler.Job {
	accessor := database.NewAccessor(appLogger.Logger, cfg.Scheduler.QueryTimeout)
	notifier := sms.NewClient(cfg.SMSAPI, cfg.HTTPTimeout, appLogger.Logger)
	console := xxljob.NewClient(xxljob.Config{
		LoginURL: cfg.XXLJob.LoginURL,
		PageURL:  cfg.XXLJob.PageURL,
		Timeout:  cfg.HTTPTimeout,
	}, appLogger.Logger)

	return map[string]scheduler.Job{
		config.PipelineCheckConfig: paramcheck.NewJob(cfg, accessor, notifier,
			appLogger.Job(config.PipelineCheckConfig),
			paramcheck.WithLocation(loc),
		),
		config.PipelineCheckXXLJob: xxlaudit.NewJob(cfg, console, notifier,
			appLogger.Job(config.PipelineCheckXXLJob),
		),
		config.PipelineFetchAccount: accountreport.NewJob(cfg, accessor, notifier,
			appLogger.Job(config.PipelineFetchAccount),
			accountreport.WithLocation(loc),
		),
	}
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

// initPostgreSQL initializes the run store client
func initPostgreSQL(cfg *config.RunStoreConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
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

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		Password:      cfg.Password,
		VHost:         cfg.VHost,
		Exchange:      cfg.Exchange,
		ExchangeType:  cfg.ExchangeType,
		Queue:         cfg.Queue,
		RoutingKey:    cfg.RoutingKey,
		RetryAttempts: cfg.RetryAttempts,
		RetryInterval: cfg.RetryInterval,
		Heartbeat:     cfg.Heartbeat,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fluent/fluent-logger-golang/fluent"

	"rental-ingest-service/internal/adapters/domainfetcher"
	logger_adapter "rental-ingest-service/internal/adapters/logger"
	"rental-ingest-service/internal/adapters/postgres"
	rabbitmq_adapter "rental-ingest-service/internal/adapters/rabbitmq"
	"rental-ingest-service/internal/adapters/rest"
	"rental-ingest-service/internal/adapters/runlog"
	"rental-ingest-service/internal/adapters/snapshot"
	"rental-ingest-service/internal/adapters/webhook"
	"rental-ingest-service/internal/configs"
	"rental-ingest-service/internal/contextkeys"
	"rental-ingest-service/internal/core/port"
	usecases_port "rental-ingest-service/internal/core/port/usecases_port"
	"rental-ingest-service/internal/core/usecase"
	"rental-ingest-service/pkg/fluentlogger"
)

type App struct {
	config    *configs.AppConfig
	apiServer *rest.Server

	crawlUseCase     usecases_port.CrawlSearchPort
	reconcileUseCase usecases_port.ReconcileSnapshotPort

	runReportQueue *rabbitmq_adapter.RunReportQueueAdapter
	logger         port.LoggerPort
	baseLogger     port.LoggerPort
	fluentClient   *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		UseColor: true,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	ctx := context.Background()

	dbPool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: appConfig.Database.URL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	listingStore, err := postgres.NewListingStoreAdapter(dbPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing store: %w", err)
	}
	if err := listingStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	appLogger.Info("Database initialized", nil)

	keywords, err := configs.LoadKeywords(appConfig.Crawler.KeywordsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature keywords: %w", err)
	}

	fetcherLogger := baseLogger.WithFields(port.Fields{"component": "fetcher"})
	fetcher := domainfetcher.NewDomainFetcherAdapter(appConfig.Crawler, fetcherLogger)

	snapshotWriter := snapshot.NewWriterAdapter(appConfig.Snapshot.Dir,
		baseLogger.WithFields(port.Fields{"component": "snapshot_writer"}))
	snapshotReader := snapshot.NewReaderAdapter(
		baseLogger.WithFields(port.Fields{"component": "snapshot_reader"}))

	classifyUseCase := usecase.NewClassifyFeaturesUseCase(keywords)
	processUseCase := usecase.NewProcessListingUseCase(fetcher, fetcher, classifyUseCase, snapshotWriter)
	crawlUseCase := usecase.NewCrawlSearchUseCase(
		fetcher, processUseCase, snapshotWriter,
		appConfig.Crawler.SearchURLs,
		snapshot.RegionLabelFromURL,
		appConfig.Crawler.InterURLDelayMin, appConfig.Crawler.InterURLDelayMax,
	)

	runLog := runlog.NewMemoryRunLog()

	var reporters []port.RunReporterPort
	var runReportQueue *rabbitmq_adapter.RunReportQueueAdapter
	if appConfig.RabbitMQ.Enabled {
		runReportQueue, err = rabbitmq_adapter.NewRunReportQueueAdapter(appConfig.RabbitMQ.URL,
			baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"}))
		if err != nil {
			return nil, fmt.Errorf("failed to create run report queue: %w", err)
		}
		reporters = append(reporters, runReportQueue)
		appLogger.Info("RabbitMQ run report publisher initialized", nil)
	}
	if appConfig.Webhook.URL != "" {
		reporters = append(reporters, webhook.NewNotifierAdapter(appConfig.Webhook.URL,
			baseLogger.WithFields(port.Fields{"component": "webhook"})))
		appLogger.Info("New-listings webhook notifier initialized", port.Fields{"url": appConfig.Webhook.URL})
	}

	reconcileUseCase := usecase.NewReconcileSnapshotUseCase(snapshotReader, listingStore, runLog, reporters...)

	appLogger.Info("All use cases initialized", nil)

	apiHandlers := rest.NewRunHandlers(runLog)
	apiServer := rest.NewServer(appConfig.Rest.Port, apiHandlers, baseLogger)

	return &App{
		config:           appConfig,
		apiServer:        apiServer,
		crawlUseCase:     crawlUseCase,
		reconcileUseCase: reconcileUseCase,
		runReportQueue:   runReportQueue,
		logger:           appLogger,
		baseLogger:       baseLogger,
		fluentClient:     fluentClient,
	}, nil
}

// Run starts the API server and the crawl-reconcile pipeline. It returns when
// the pipeline finishes, a component fails or a shutdown signal arrives.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		if a.apiServer != nil {
			if err := a.apiServer.Stop(context.Background()); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}

		if a.runReportQueue != nil {
			if err := a.runReportQueue.Close(); err != nil {
				a.logger.Error("Error closing run report queue", err, nil)
			}
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.Rest.Port})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- a.runPipeline(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for pipeline, signals or server error...", nil)

	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case err := <-serverErrors:
		a.logger.Error("HTTP server failed to start, shutting down", err, nil)
		runErr = err
	case err := <-pipelineDone:
		if err != nil {
			a.logger.Error("Pipeline run failed", err, nil)
			runErr = err
		} else {
			a.logger.Info("Pipeline run completed.", nil)
		}
	}

	cancelApp()
	return runErr
}

// runPipeline executes one crawl followed by the reconciliation of its
// snapshot. An empty snapshot path means nothing was captured; the store is
// left untouched rather than marking every listing off-market.
func (a *App) runPipeline(ctx context.Context) error {
	pipelineLogger := a.baseLogger.WithFields(port.Fields{"component": "pipeline"})
	ctx = contextkeys.ContextWithLogger(ctx, pipelineLogger)

	report, err := a.crawlUseCase.Execute(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	if report.SnapshotPath == "" {
		pipelineLogger.Warn("Crawl produced no snapshot, skipping reconciliation", port.Fields{
			"run_id": report.RunID.String(),
		})
		return nil
	}

	if _, err := a.reconcileUseCase.Execute(ctx, report.SnapshotPath); err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	return nil
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"taxledger/internal/amqp"
	"taxledger/internal/cache"
	"taxledger/internal/cli"
	apphttp "taxledger/internal/http"
	"taxledger/internal/importer"
	"taxledger/internal/log"
	"taxledger/internal/rates"
	"taxledger/internal/services"
	"taxledger/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentApp)

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)
	store := be.Store

	if cfg.SeedDemoData {
		if err := storage.SeedDemo(ctx, store, time.Now()); err != nil {
			logger.Error("Failed to seed demo data", log.FieldError, err)
			os.Exit(1)
		}
	} else if err := storage.SeedCurrencies(ctx, store); err != nil {
		logger.Error("Failed to seed currencies", log.FieldError, err)
		os.Exit(1)
	}

	// Events are optional; a nil publisher disables them.
	var (
		events    *amqp.Client
		publisher services.EventPublisher
	)
	if cfg.AMQPURL != "" {
		events = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingPrefix, logger)
		if err := events.Connect(ctx); err != nil {
			// Publish reconnects lazily, so the API still starts.
			logger.Warn("AMQP broker unreachable at startup", log.FieldError, err)
		}
		publisher = events
	}

	fallback, err := rates.LoadFallback(cfg.FallbackRatesFile)
	if err != nil {
		logger.Error("Failed to load fallback rates", log.FieldError, err)
		os.Exit(1)
	}
	var provider rates.Provider
	if cfg.FXProviderURL != "" {
		provider = rates.NewHTTPProvider(cfg.FXProviderURL, cfg.FXTimeout)
	}
	rateSvc := rates.NewService(store, provider, fallback, publisher, logger)

	var scheduler *rates.Scheduler
	if cfg.FXRefreshInterval > 0 {
		scheduler = rates.NewScheduler(rateSvc, cfg.FXRefreshInterval, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start rate scheduler", log.FieldError, err)
			os.Exit(1)
		}
	}

	dashboard := services.NewDashboardService(store, logger)
	transactions := services.NewTransactionService(store, publisher, dashboard, logger)

	caches := cache.NewManager(logger)
	caches.Register(dashboard.Cache())
	caches.StartCleanup(5 * time.Minute)

	imports, closeImports, err := importer.FromConfig(ctx, cfg, store, transactions, publisher, logger)
	if err != nil {
		logger.Error("Failed to initialize importer", log.FieldError, err, "extractor", cfg.ImportExtractor)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Services{
		Users:        services.NewUserService(store, store, logger),
		Currencies:   services.NewCurrencyService(store, rateSvc),
		Categories:   services.NewCategoryService(store, store),
		Transactions: transactions,
		Reports:      services.NewReportService(store, publisher, dashboard, logger),
		Dashboard:    dashboard,
		Importer:     imports,
	}, store, logger)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if scheduler != nil {
			if err := scheduler.Stop(ctx); err != nil {
				logger.Warn("Rate scheduler did not stop cleanly", log.FieldError, err)
			}
		}
		caches.Stop()
		closeImports()
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting taxledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"extractor", cfg.ImportExtractor,
		"events", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

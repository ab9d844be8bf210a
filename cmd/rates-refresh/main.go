// Command rates-refresh updates the stored exchange rates once and exits.
// It is meant to be run from cron when the server's own scheduler is off.
package main

import (
	"context"
	"os"
	"time"

	"taxledger/internal/amqp"
	"taxledger/internal/cli"
	"taxledger/internal/log"
	"taxledger/internal/rates"
	"taxledger/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentRates)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FXTimeout+30*time.Second)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	if err := storage.SeedCurrencies(ctx, be.Store); err != nil {
		logger.Error("Failed to seed currencies", log.FieldError, err)
		os.Exit(1)
	}

	fallback, err := rates.LoadFallback(cfg.FallbackRatesFile)
	if err != nil {
		logger.Error("Failed to load fallback rates", log.FieldError, err)
		os.Exit(1)
	}

	var publisher rates.Publisher
	if cfg.AMQPURL != "" {
		events := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingPrefix, logger)
		defer events.Close()
		publisher = events
	}

	svc := rates.NewService(be.Store, rates.NewHTTPProvider(cfg.FXProviderURL, cfg.FXTimeout), fallback, publisher, logger)
	res, err := svc.Refresh(ctx)
	if err != nil {
		logger.Error("Rate refresh failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Rates refreshed", log.FieldSource, res.Source, log.FieldCount, len(res.Updated))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/pixrelay/pixrelay/internal/config"
	"github.com/pixrelay/pixrelay/internal/dedup"
	"github.com/pixrelay/pixrelay/internal/dlq"
	"github.com/pixrelay/pixrelay/internal/gateway"
	"github.com/pixrelay/pixrelay/internal/handlers"
	"github.com/pixrelay/pixrelay/internal/logging"
	"github.com/pixrelay/pixrelay/internal/server"
	"github.com/pixrelay/pixrelay/internal/service"
	"github.com/pixrelay/pixrelay/internal/sinks"
	"github.com/pixrelay/pixrelay/internal/store"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(slog.String("service", "pixrelay"))
	logging.SetDefault(logger)

	slog.Info("Starting pixrelay",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("gateway_url", cfg.Gateway.URL),
	)

	ctx := context.Background()

	// Initialize correlation store
	corrStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize correlation store: %v", err)
	}
	defer corrStore.Close()

	// Initialize deduplication ledger
	var ledger dedup.Ledger
	if cfg.Dedup.Enabled {
		if cfg.Storage.Backend == "redis" {
			redisLedger, err := dedup.NewRedisLedger(ctx, cfg.Storage.Redis.URL, cfg.Dedup.TTL)
			if err != nil {
				log.Printf("WARNING: Failed to initialize Redis dedup ledger: %v", err)
				log.Println("Falling back to in-memory deduplication")
				ledger = dedup.NewMemoryLedger(cfg.Dedup.TTL)
			} else {
				ledger = redisLedger
			}
		} else {
			ledger = dedup.NewMemoryLedger(cfg.Dedup.TTL)
		}
		defer ledger.Close()
	} else {
		log.Println("Webhook deduplication disabled")
	}

	// Initialize DLQ for failed sink deliveries
	var dlqWriter dlq.Writer
	if cfg.DLQ.Enabled {
		natsQueue, err := dlq.NewNATSQueue(cfg.DLQ.NatsURL)
		if err != nil {
			log.Printf("WARNING: Failed to connect DLQ: %v", err)
			log.Println("Failed sink deliveries will only be logged")
			dlqWriter = dlq.Noop{}
		} else {
			dlqWriter = natsQueue
			log.Printf("DLQ enabled (nats: %s)", cfg.DLQ.NatsURL)
		}
		defer dlqWriter.Close()
	} else {
		dlqWriter = dlq.Noop{}
	}

	// Initialize sinks; each is independently optional
	sinkList := []sinks.Sink{
		sinks.NewNotificationSink(cfg.Sinks.Notification.URL, cfg.Sinks.Timeout),
		sinks.NewAttributionSink(cfg.Sinks.Attribution.URL, cfg.Sinks.Attribution.APIToken, cfg.Sinks.Timeout),
		sinks.NewAdConversionSink(cfg.Sinks.AdConversion.URL, cfg.Sinks.AdConversion.PixelID, cfg.Sinks.AdConversion.AccessToken, cfg.Sinks.Timeout),
	}
	for _, s := range sinkList {
		if s.Enabled() {
			log.Printf("Sink enabled: %s", s.Name())
		} else {
			log.Printf("Sink disabled (missing configuration): %s", s.Name())
		}
	}
	dispatcher := sinks.NewDispatcher(sinkList, dlqWriter, logger, cfg.Sinks.Timeout)

	// Initialize gateway client and service
	gatewayClient := gateway.New(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	paymentService := service.NewPaymentService(corrStore, gatewayClient, dispatcher, ledger, logger)

	// Initialize HTTP handlers
	handler := handlers.NewPixHandler(paymentService, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("pixrelay listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// newStore selects the correlation store backend from configuration. The
// memory backend needs no external services and is the default.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "memory", "":
		return store.NewMemoryStore(), nil

	case "redis":
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.NewRedisStore(initCtx, cfg.Storage.Redis.URL, cfg.Storage.Retention)

	case "postgres":
		log.Println("Running database migrations...")
		m, err := migrate.New("file://"+cfg.Storage.Postgres.MigrationsPath, cfg.Storage.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("initialize migrations: %w", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Println("Database migrations completed")

		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.NewPostgresStore(initCtx, cfg.Storage.Postgres.DSN)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, redis, postgres)", cfg.Storage.Backend)
	}
}

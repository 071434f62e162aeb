package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/avelora/storefront/internal/cart"
	"github.com/avelora/storefront/internal/checkout"
	"github.com/avelora/storefront/internal/config"
	"github.com/avelora/storefront/internal/event"
	"github.com/avelora/storefront/internal/gateway"
	handler "github.com/avelora/storefront/internal/handler/http"
	"github.com/avelora/storefront/pkg/clock"
	"github.com/avelora/storefront/pkg/database"
	"github.com/avelora/storefront/pkg/health"
	"github.com/avelora/storefront/pkg/httpclient"
	pkgkafka "github.com/avelora/storefront/pkg/kafka"
	"github.com/avelora/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the checkout coordinator.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	redisClient     *redis.Client
	producer        *pkgkafka.Producer
	checkoutService *checkout.Service
	httpServer      *http.Server
	tracerShutdown  func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "checkout-coordinator",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis for the cart snapshot cache.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Initialize Kafka producer for lifecycle events.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// HTTP client with circuit breaker for gateway calls.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	clientCfg.MaxRetries = cfg.HTTPMaxRetries

	cbClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.CircuitBreakerConfig{
			Name:         "gateway",
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     time.Duration(cfg.CBInterval) * time.Second,
			Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		},
		logger,
	)

	// Build the dependency graph.
	gatewayClient := gateway.NewHTTPClient(cbClient, cfg.GatewayBaseURL, logger)
	resyncer := cart.NewGatewayResyncer(cbClient, redisClient, cfg.GatewayBaseURL, logger)
	eventProducer := event.NewProducer(producer, logger)

	checkoutService := checkout.NewService(
		gatewayClient,
		resyncer,
		eventProducer,
		clock.NewSystem(),
		time.Duration(cfg.CountdownTickMS)*time.Millisecond,
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", producer.Ping)

	router := handler.NewRouter(checkoutService, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		redisClient:     redisClient,
		producer:        producer,
		checkoutService: checkoutService,
		httpServer:      httpServer,
		tracerShutdown:  tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until a shutdown signal arrives or
// the server fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// shutdown drains the HTTP server, releases live sessions, and closes
// external connections.
func (a *App) shutdown() error {
	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	// Stop countdown timers and release still-active holds best-effort.
	a.checkoutService.Shutdown(ctx)

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close failed", slog.String("error", err.Error()))
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close failed", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
	}

	return nil
}

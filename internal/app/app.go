package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/notify"
	rediscache "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/storage/local"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// tokenExpiry bounds tokens issued by this process; verification only
// checks the exp claim.
const tokenExpiry = 30 * 24 * time.Hour

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	stores         *Stores
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		stores:         stores,
		tracerShutdown: tracerShutdown,
	}

	healthHandler := health.NewHandler()
	stores.RegisterHealth(healthHandler)

	// Search cache. A nil SearchCache disables caching.
	var cache service.SearchCache
	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			a.closeClients(context.Background())
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		sc := rediscache.NewSearchCache(client, cfg.SearchCacheTTL())
		cache = sc
		healthHandler.RegisterOptional("redis", sc.Ping)
		logger.Info("search cache enabled",
			slog.String("addr", cfg.RedisAddr),
			slog.Duration("ttl", cfg.SearchCacheTTL()),
		)
	}

	// Kafka producer. Without it domain events are only logged.
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(a.producer, logger)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		a.closeClients(context.Background())
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	store, err := local.New(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		a.closeClients(context.Background())
		return nil, fmt.Errorf("open upload storage: %w", err)
	}

	opts := []service.ProductServiceOption{service.WithPageSize(cfg.SearchPageSize)}
	if cache != nil {
		opts = append(opts, service.WithSearchCache(cache))
	}
	svc := handler.Services{
		Products: service.NewProductService(stores.Products, store, eventProducer, logger, opts...),
		Reviews:  service.NewReviewService(stores.Products, cache, eventProducer, logger),
		Orders:   service.NewOrderService(stores.Orders, stores.Users, newNotifier(cfg, logger), eventProducer, logger, cfg.SMSFallbackTo),
		Users:    service.NewUserService(stores.Users, logger),
	}

	jwt := auth.NewJWTManager(cfg.JWTSecret, tokenExpiry)
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:       serviceName,
		CORS:              cors,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		UploadsPath:       uploadsMount(cfg.UploadBaseURL),
		Uploads:           http.FileServer(http.Dir(cfg.UploadDir)),
	}, svc, jwt.Verify, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// newNotifier selects the SMS backend. Twilio falls back to the log
// notifier while its circuit breaker is open.
func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	logNotifier := notify.NewLogNotifier(logger)
	if cfg.SMSProvider != config.SMSTwilio {
		return logNotifier
	}
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = 10 * time.Second
	client := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), httpclient.DefaultBreakerConfig("twilio"), logger)
	return notify.NewTwilioNotifier(notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.SMSFrom,
		BaseURL:    cfg.TwilioBaseURL,
	}, client, logNotifier, logger)
}

// uploadsMount returns the router path for a relative upload base URL.
// Absolute base URLs point at a CDN, so nothing is served locally.
func uploadsMount(baseURL string) string {
	if !strings.HasPrefix(baseURL, "/") || strings.HasPrefix(baseURL, "//") {
		return ""
	}
	return strings.TrimRight(baseURL, "/")
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("store", a.stores.driver),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	errs = append(errs, a.closeClients(shutdownCtx)...)
	if err := a.tracerShutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeClients(ctx context.Context) []error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka producer close: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if err := a.stores.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, err := range errs {
		a.logger.Error("close error", slog.String("error", err.Error()))
	}
	return errs
}

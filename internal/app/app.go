// Package app assembles the web frontend from its configuration and runs it
// until a shutdown signal arrives.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/config"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/events"
	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/Bernard-Murphy/dbay-public/internal/identity"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/metrics"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/tracer"
	"github.com/Bernard-Murphy/dbay-public/internal/rate"
	"github.com/Bernard-Murphy/dbay-public/internal/router"
	"github.com/Bernard-Murphy/dbay-public/internal/session"
	"github.com/Bernard-Murphy/dbay-public/web"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const serviceName = "dbay-web"

type App struct {
	cfg           *config.Config
	log           *logger.Logger
	server        *http.Server
	metricsServer *http.Server
	tracer        *sdktrace.TracerProvider
	redisClient   *redis.Client
	natsConn      *nats.Conn
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	appLogger.Info("Logger initialized")
	appLogger.Info("Configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Bool("cognito", cfg.CognitoEnabled()),
	)
	if cfg.InsecureSessionSecret() {
		appLogger.Warn("SESSION_SECRET is not set, using the development secret")
	}

	tp := tracer.InitTracer(serviceName, cfg.OTLPEndpoint, appLogger)
	m := metrics.NewMetricsManager("dbay_web")

	a := &App{
		cfg:           cfg,
		log:           appLogger,
		tracer:        tp,
		metricsServer: metrics.NewMetricsServer(cfg.MetricsPort, m.Registry),
	}

	sessionStorage := session.NewMemoryStorage()
	var rateOpts []rate.Option
	if cfg.RedisAddr != "" {
		appLogger.Info("Initializing Redis client...", zap.String("addr", cfg.RedisAddr))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.redisClient = client
		sessionStorage = session.NewRedisStorage(client)
		rateOpts = append(rateOpts, rate.WithSharedStore(rate.NewRedisStore(client, 2*cfg.RateTTL)))
		appLogger.Info("Redis client initialized successfully")
	} else {
		appLogger.Info("REDIS_ADDR not set, sessions are kept in memory")
	}
	rateOpts = append(rateOpts, rate.WithMetrics(m))

	codec := session.NewCookieCodec(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)
	sessions := session.NewManager(sessionStorage, codec, cfg.SessionTTL, appLogger)

	rates := rate.NewCache(
		rate.NewCoinGeckoFetcher(cfg.PriceFeedURL, cfg.HTTPClientTimeout),
		cfg.DogeUSDFallbackRate,
		cfg.RateTTL,
		appLogger,
		rateOpts...,
	)

	baseURLs := make(map[apiclient.Service]string, len(apiclient.Services))
	for _, svc := range apiclient.Services {
		baseURLs[svc] = cfg.ServiceURL(string(svc))
	}
	api := apiclient.New(apiclient.Config{
		BaseURLs:      baseURLs,
		Timeout:       cfg.HTTPClientTimeout,
		UploadTimeout: cfg.UploadTimeout,
		UserIDHeader:  !cfg.CognitoEnabled(),
	}, appLogger, m)

	provider, err := newIdentity(ctx, cfg, api, appLogger)
	if err != nil {
		return nil, err
	}

	publisher := events.NewNopPublisher()
	if cfg.NATSURL != "" {
		conn, err := events.NewConnection(cfg.NATSURL, events.ConnOptions{}, appLogger)
		if err != nil {
			return nil, err
		}
		a.natsConn = conn
		publisher, err = events.NewNATSPublisher(conn)
		if err != nil {
			return nil, err
		}
	}

	views, err := handler.NewRenderer(templateFS(cfg.TemplateDir, appLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	deps := handler.Deps{
		API:      api,
		Identity: provider,
		Views:    views,
		Forms:    handler.NewForms(),
		Rates:    rates,
		Events:   events.NewEmitter(publisher, appLogger),
		Logger:   appLogger,
		Metrics:  m,
	}
	mux := router.New(router.Handlers{
		Listing:   handler.NewListingHandler(deps),
		Search:    handler.NewSearchHandler(deps),
		User:      handler.NewUserHandler(deps),
		Dashboard: handler.NewDashboardHandler(deps),
		Admin:     handler.NewAdminHandler(deps),
		System:    handler.NewSystemHandler(deps),
	}, router.Options{
		Sessions: sessions,
		Profile: func(ctx context.Context, sess *domain.Session) (*domain.User, error) {
			return api.WithSession(sess).Me(ctx)
		},
		Logger:  appLogger,
		Metrics: m,
		Static:  http.FileServer(http.FS(web.Static())),
	})

	a.server = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Warm the rate so the first page does not show the fallback.
	warmCtx, cancel := context.WithTimeout(ctx, cfg.HTTPClientTimeout)
	if err := rates.Refresh(warmCtx); err != nil {
		appLogger.Warn("Initial DOGE/USD rate fetch failed, using fallback", zap.Error(err))
	}
	cancel()

	return a, nil
}

func newIdentity(ctx context.Context, cfg *config.Config, api *apiclient.Client, log *logger.Logger) (identity.Provider, error) {
	var provider identity.Provider
	if cfg.CognitoEnabled() {
		client, err := identity.NewCognitoClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		profile := func(ctx context.Context, idToken string) (*domain.User, error) {
			return api.WithToken(idToken).Me(ctx)
		}
		provider = identity.NewCognitoProvider(client, cfg.CognitoClientID, api, profile, log)
	} else {
		provider = identity.NewDevProvider(api, log)
	}
	log.Info("Identity provider selected", zap.String("provider", provider.Name()))

	if cfg.DemoAuthFallback {
		log.Warn("DEMO_AUTH_FALLBACK is enabled: sign-in falls back to local demo sessions when the backend fails")
		return identity.WithDemoFallback(provider, log), nil
	}
	return provider, nil
}

// templateFS prefers templates on disk so they can be edited without a
// rebuild, and falls back to the embedded copy.
func templateFS(dir string, log *logger.Logger) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			log.Info("Serving templates from disk", zap.String("dir", dir))
			return os.DirFS(dir)
		}
	}
	return web.Templates()
}

func (a *App) Run() {
	a.log.Info("Starting application components...")

	go metrics.StartMetricsServer(a.metricsServer, a.log)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server starting", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		a.log.Info("Received shutdown signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		a.log.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Error during HTTP server graceful shutdown", zap.Error(err))
	} else {
		a.log.Info("HTTP server stopped successfully")
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error("Error shutting down metrics server", zap.Error(err))
		}
	}

	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.log.Error("Error draining NATS connection", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error("Error closing Redis client", zap.Error(err))
		} else {
			a.log.Info("Redis client closed successfully")
		}
	}
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	a.log.Info("Application shut down successfully")
	_ = a.log.Sync()
}

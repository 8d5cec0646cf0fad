package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/dormdash/internal/domain/assistant"
	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/gemini"
	"github.com/xenking/dormdash/internal/handler"
	"github.com/xenking/dormdash/internal/live"
	"github.com/xenking/dormdash/internal/session"
	"github.com/xenking/dormdash/internal/storage/postgres"
	redisstore "github.com/xenking/dormdash/internal/storage/redis"
	"github.com/xenking/dormdash/internal/storage/s3"
	"github.com/xenking/dormdash/pkg/health"
	"github.com/xenking/dormdash/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	taxRate, err := cfg.Checkout.Rate()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Session store: Redis when configured, otherwise process memory.
	var sessionStore session.Store
	if cfg.RedisURL != "" {
		rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		sessionStore = redisstore.NewSessionStore(rdb)
	} else {
		lg.Warn("Redis URL not set, sessions are kept in memory")
		mem := session.NewMemoryStore()
		go mem.RunSweeper(ctx, cfg.Session.SweepInterval)
		sessionStore = mem
	}

	// Image hosting is optional; uploads answer 503 without it.
	var images vendor.ImageStore
	if cfg.S3.Enabled() {
		store, err := s3.NewImageStore(ctx, cfg.S3)
		if err != nil {
			return errors.Wrap(err, "create image store")
		}
		images = store
	} else {
		lg.Info("S3 bucket not set, image uploads disabled")
	}

	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	// Repositories.
	accountRepo := postgres.NewAccountRepository(pool)
	vendorRepo := postgres.NewVendorRepository(pool)
	menuRepo := postgres.NewMenuRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	ratingStore := postgres.NewRatingStore(pool)

	// Domain services.
	authService := auth.NewService(accountRepo, cfg.Auth.BcryptCost)
	vendorService := vendor.NewService(vendorRepo, menuRepo, images)
	orderService := order.NewService(orderRepo)
	sessions := session.NewManager(sessionStore, []byte(cfg.Session.Secret), cfg.Session.TTL, taxRate)
	aggregator, err := rating.NewAggregator(ratingStore, cfg.Rating.MaxAttempts,
		m.MeterProvider().Meter("github.com/xenking/dormdash/rating"))
	if err != nil {
		return errors.Wrap(err, "create rating aggregator")
	}

	var helper handler.Assistant
	if cfg.Gemini.APIKey != "" {
		httpClient := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
		}
		gen := gemini.NewClient(gemini.Config{
			APIKey:          cfg.Gemini.APIKey,
			Model:           cfg.Gemini.Model,
			BaseURL:         cfg.Gemini.BaseURL,
			Timeout:         cfg.Gemini.Timeout,
			Temperature:     cfg.Gemini.Temperature,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		}, httpClient, m.TracerProvider())
		helper = assistant.NewService(vendorService, orderRepo, gen)
	} else {
		lg.Info("Gemini API key not set, assistant disabled")
	}

	// Live order updates: NOTIFY -> broker -> WebSocket subscribers.
	broker := live.NewBroker()
	listener := postgres.NewListener(pool, broker, live.ParseTopics, lg.Named("listener"))
	go func() {
		if err := listener.Run(ctx); err != nil {
			lg.Error("Order event listener stopped", zap.Error(err))
		}
	}()

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			MaxUploadBytes: cfg.Upload.MaxBytes,
			AllowedOrigins: cfg.CORS.Origins,
		},
		handler.Services{
			Auth:      authService,
			Sessions:  sessions,
			Vendors:   vendorService,
			Orders:    orderService,
			Ratings:   aggregator,
			Assistant: helper,
			Broker:    broker,
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("dormdash-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}
	// Shutdown does not wait for hijacked connections; closing the broker
	// ends every live subscription so WebSocket streams close cleanly.
	server.RegisterOnShutdown(broker.Close)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

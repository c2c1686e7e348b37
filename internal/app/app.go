package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/catalog"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/paylock"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/seller"
	"github.com/xenking/storefront-checkout/internal/domain/webhook"
	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/internal/notify"
	"github.com/xenking/storefront-checkout/internal/processor/stripe"
	"github.com/xenking/storefront-checkout/internal/storage/memory"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	redisstore "github.com/xenking/storefront-checkout/internal/storage/redis"
	"github.com/xenking/storefront-checkout/pkg/health"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// Server is the wired storefront API.
type Server struct {
	handler http.Handler
	health  *health.Health
	closers []func()
}

// Handler returns the root HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Close releases database, cache and broker connections in reverse order.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Server) onClose(fn func()) { s.closers = append(s.closers, fn) }

// New creates all dependencies and the HTTP handler. Background loops stop
// when ctx is cancelled; connections are released by Close.
func New(ctx context.Context, lg *zap.Logger, t httpmiddleware.TelemetryProvider, cfg *Config) (_ *Server, rerr error) {
	s := &Server{health: health.New()}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	products, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	lg.Info("Catalog loaded", zap.String("path", cfg.Catalog.Path), zap.Int("products", products.Len()))

	healthSvc := s.health
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Order ledger and processed webhook events.
	var (
		orders order.Repository   = memory.NewOrderRepository()
		events webhook.EventStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.onClose(pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		orders = postgres.NewOrderRepository(pool)
		events = postgres.NewEventRepository(pool)
	} else {
		lg.Warn("No database configured, orders are kept in memory")
		mem := memory.NewEventStore()
		go mem.Run(ctx, time.Hour, memory.DefaultEventRetention)
		events = mem
	}

	// Payment locks.
	var lockStore paylock.Store = paylock.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		s.onClose(func() { _ = client.Close() })

		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(client))
		lockStore = redisstore.NewLockStore(client, cfg.Lock.RedisPrefix)
	}
	locks := paylock.NewManager(lockStore, paylock.Config{
		TTL:           cfg.Lock.TTL,
		SweepInterval: cfg.Lock.SweepInterval,
	})
	go func() {
		if err := locks.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("Payment lock sweeper stopped", zap.Error(err))
		}
	}()

	// Order notifications.
	var notifier webhook.Notifier = notify.Log{}
	if cfg.AMQP.URL != "" {
		conn, ch, err := notify.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, errors.Wrap(err, "connect amqp")
		}
		s.onClose(func() { _ = conn.Close() })

		healthSvc.AddReadinessCheck("amqp", time.Second, func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		})
		notifier = notify.NewPublisher(ch, cfg.AMQP.Exchange)
	}

	// Payment processor.
	stripeClient, err := stripe.New(stripe.Config{
		SecretKey:         cfg.Stripe.SecretKey,
		Timeout:           cfg.Stripe.Timeout,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
		BaseURL:           cfg.Stripe.BaseURL,
		Breaker: stripe.BreakerConfig{
			Failures:         cfg.Stripe.Breaker.Failures,
			OpenTimeout:      cfg.Stripe.Breaker.OpenTimeout,
			Interval:         cfg.Stripe.Breaker.Interval,
			HalfOpenRequests: cfg.Stripe.Breaker.HalfOpenRequests,
		},
	}, lg)
	if err != nil {
		return nil, errors.Wrap(err, "create stripe client")
	}
	verifier, err := stripe.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance)
	if err != nil {
		return nil, errors.Wrap(err, "create webhook verifier")
	}

	// Domain services.
	fees, err := cfg.FeePolicy()
	if err != nil {
		return nil, err
	}
	orderService := order.NewService(orders)
	issuer, err := payment.NewIssuer(payment.Config{
		Fees:              fees,
		SellerAccountID:   cfg.Stripe.ConnectedAccountID,
		IdempotencyWindow: cfg.Checkout.IdempotencyWindow,
	}, payment.Deps{
		Locks:          locks,
		Carts:          cart.NewValidator(products),
		Processor:      stripeClient,
		Orders:         orderService,
		MeterProvider:  t.MeterProvider(),
		TracerProvider: t.TracerProvider(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create issuer")
	}
	if !issuer.ConnectEnabled() {
		lg.Warn("No connected account configured, marketplace routes are disabled")
	}
	sellers, err := seller.NewService(cfg.Stripe.ConnectedAccountID, stripeClient)
	if err != nil {
		return nil, errors.Wrap(err, "create seller service")
	}
	if issuer.ConnectEnabled() && cfg.Stripe.SellerKey == "" {
		lg.Warn("No seller key configured, seller dashboard routes are public")
	}
	dispatcher, err := webhook.NewDispatcher(webhook.Deps{
		Verifier:      verifier,
		Events:        events,
		Orders:        orderService,
		Notifier:      notifier,
		MeterProvider: t.MeterProvider(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create dispatcher")
	}

	healthSvc.Start(ctx, 10*time.Second)
	s.onClose(healthSvc.Stop)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(handler.Config{
		PublishableKey: cfg.Stripe.PublishableKey,
		RequireSession: cfg.Checkout.RequireSession,
		PaymentRateLimit: httpmiddleware.RateLimitConfig{
			Max:    cfg.Checkout.RateLimit,
			Window: cfg.Checkout.RateWindow,
		},
		MaxBodyBytes: cfg.Checkout.MaxBodyBytes,
		SellerKey:    cfg.Stripe.SellerKey,
	}, products, issuer, dispatcher, sellers, healthSvc)
	go h.PaymentLimiter().Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	s.handler = httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.SessionHeader, handler.SignatureHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument("storefront-api", routeFinder, t),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
	return s, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	s, err := New(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Stripe calls are bounded by their own timeout.
		WriteTimeout:   cfg.Stripe.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler:        s.Handler(),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.health.SetReady(false)
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

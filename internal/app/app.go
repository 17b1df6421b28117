package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/wello-store/internal/domain/checkout"
	"github.com/xenking/wello-store/internal/domain/coupon"
	"github.com/xenking/wello-store/internal/domain/ledger"
	"github.com/xenking/wello-store/internal/domain/notify"
	"github.com/xenking/wello-store/internal/domain/session"
	"github.com/xenking/wello-store/internal/handler"
	"github.com/xenking/wello-store/internal/sink"
	"github.com/xenking/wello-store/pkg/health"
	"github.com/xenking/wello-store/pkg/httpmiddleware"
)

const (
	healthInterval   = 10 * time.Second
	maxPendingEvents = 1000
)

// Telemetry supplies tracer and meter providers; *app.Telemetry from
// go-faster/sdk implements it.
type Telemetry = httpmiddleware.Telemetry

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("coupons", cfg.Coupons.Source),
	)

	st, err := openStores(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sinks, closeSinks := newSinks(lg, m, cfg.Notify)
	defer closeSinks()
	dispatcher := notify.NewDispatcher(cfg.Notify.Timeout, sinks...)
	// Deliveries in flight finish before the pool and Kafka writer close.
	defer dispatcher.Wait()

	accounts := ledger.New(st.users)
	checkoutSvc, err := checkout.NewService(coupon.NewGuard(st.coupons), accounts, dispatcher,
		checkout.WithHandoff(notify.Handoff{Phone: cfg.Notify.Phone}),
		checkout.WithMeterProvider(m.MeterProvider()),
		checkout.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	sessions := session.NewRegistry(st.snapshots, st.pepper)

	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		st.products,
		accounts,
		sessions,
		checkoutSvc,
	)

	healthSvc := health.New()
	if st.pool != nil {
		healthSvc.Add(health.Check{
			Name:    "postgres",
			Probe:   health.Readiness,
			Func:    health.Ping(st.pool),
			Timeout: 5 * time.Second,
		})
	}
	healthSvc.Add(health.Check{Name: "goroutines", Probe: health.Liveness, Func: health.Goroutines(10000)})
	healthSvc.Add(health.Check{
		Name:  "notifications",
		Probe: health.Liveness,
		Func:  health.Backlog(dispatcher.Pending, maxPendingEvents),
	})

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.Live)
	router.Get("/readyz", healthSvc.Readiness)
	router.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Routes(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("wello-api", m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Label(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Credentials: cfg.CORS.AllowCredentials,
				Expose:      []string{httpmiddleware.RequestIDHeader},
				MaxAge:      86400,
			}),
			limiter.Middleware(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gctx, healthInterval)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		sessions.RunEviction(gctx, cfg.Sessions.EvictInterval, cfg.Sessions.IdleTimeout)
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})
	healthSvc.SetReady(true)

	return g.Wait()
}

// newSinks builds the configured notification sinks and a function that
// releases them.
func newSinks(lg *zap.Logger, m Telemetry, cfg NotifyConfig) ([]notify.Sink, func()) {
	var (
		sinks   []notify.Sink
		closers []func() error
	)
	client := sink.NewClient(m.TracerProvider(), m.MeterProvider())
	if cfg.RecorderURL != "" {
		sinks = append(sinks, sink.NewRecorder(client, cfg.RecorderURL))
	}
	if cfg.MailURL != "" {
		sinks = append(sinks, sink.NewMailer(client, cfg.MailURL))
	}
	if brokers := sink.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		k := sink.NewKafka(brokers, cfg.KafkaTopic)
		sinks = append(sinks, k)
		closers = append(closers, k.Close)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	lg.Info("Notification sinks", zap.Strings("sinks", names))

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				lg.Warn("Close sink", zap.Error(err))
			}
		}
	}
}

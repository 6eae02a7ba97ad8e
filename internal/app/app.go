// Package app wires the gateway's dependencies and runs the long-running
// HTTP host. Stateless hosts reuse the same pipeline through BuildPipeline.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/engramhq/gateway/internal/domain/auth"
	"github.com/engramhq/gateway/internal/domain/identity"
	"github.com/engramhq/gateway/internal/domain/org"
	"github.com/engramhq/gateway/internal/envelope"
	"github.com/engramhq/gateway/internal/handler"
	"github.com/engramhq/gateway/internal/memory"
	"github.com/engramhq/gateway/internal/pipeline"
	"github.com/engramhq/gateway/internal/ratelimit"
	"github.com/engramhq/gateway/internal/repository"
	"github.com/engramhq/gateway/pkg/health"
	"github.com/engramhq/gateway/pkg/httpmiddleware"
)

// endpointPrefixes is the route inventory the 404 handler advertises.
var endpointPrefixes = []string{
	"/livez",
	"/readyz",
	"/v1/me",
	"/v1/limits",
	"/v1/memories",
	"/v1/admin",
}

// BuildPipeline assembles the shared auth pipeline over the given stores.
// Every host adapter mounts the chain this returns; none re-implements it.
func BuildPipeline(cfg *Config, keys auth.KeyStore, users identity.UserStore, orgs org.Store, counters ratelimit.CounterStore) *pipeline.Pipeline {
	return pipeline.New(
		pipeline.Config{
			ProjectScope: cfg.ProjectScope,
			StoreTimeout: cfg.StoreTimeout,
		},
		auth.NewAPIKeyAuthenticator(keys, users),
		auth.NewJWTAuthenticator([]byte(cfg.JWTSecret)),
		org.NewResolver(orgs, users),
		counters,
	)
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the long-running host.
func Run(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Stores.
	keyRepo := repository.NewAPIKeyRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	orgRepo := repository.NewOrgRepository(pool)

	keys, err := auth.NewPrefilter(ctx, keyRepo, keyRepo, cfg.Prefilter.Capacity)
	if err != nil {
		return errors.Wrap(err, "build key prefilter")
	}

	counters := ratelimit.NewMemoryStore()
	counters.StartCleanup(ctx, cfg.RateLimit.CleanupInterval)

	pipe := BuildPipeline(cfg, keys, userRepo, orgRepo, counters)
	h := handler.New(orgRepo, counters)

	// Protected routes behind the pipeline.
	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/me", h.Me)
	protected.HandleFunc("GET /v1/limits", h.Limits)
	protected.Handle("GET /v1/admin/organizations", httpmiddleware.Wrap(
		http.HandlerFunc(h.AdminOrganizations),
		pipe.ScopeCheck(),
		pipeline.RequireAdmin(),
	))
	protected.Handle("/v1/memories", memory.Unrouted())
	protected.Handle("/v1/memories/", memory.Unrouted())
	protected.Handle("/", envelope.NotFound(endpointPrefixes))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/v1/", pipe.Handler(protected))
	mux.Handle("/", envelope.NotFound(endpointPrefixes))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
			}),
			httpmiddleware.Instrument("engram-gateway", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

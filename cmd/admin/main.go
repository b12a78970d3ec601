package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/config"
	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/events"
	"github.com/boddenberg/alugueis-admin-go/internal/handler"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/client"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/resilience"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/sessionstore"
	"github.com/boddenberg/alugueis-admin-go/internal/port"
	"github.com/boddenberg/alugueis-admin-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()
	fileErr := cfg.ApplyFile(os.Getenv("CONFIG_FILE"))

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.Version)
	defer logger.Sync()

	if fileErr != nil {
		logger.Fatal("failed to read config file", zap.String("path", os.Getenv("CONFIG_FILE")), zap.Error(fileErr))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.String("desktop_token_policy", string(cfg.PolicyFor(domain.VariantDesktop))),
		zap.String("mobile_token_policy", string(cfg.PolicyFor(domain.VariantMobile))),
		zap.Int("viewport_breakpoint", cfg.ViewportBreakpoint),
		zap.Any("modules", cfg.Modules),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "alugueis-admin", cfg.Version)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("alugueis-api", logger)
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- API base URL ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	prober := client.NewHealthProber(httpClient, resilienceCfg, logger)

	base := cfg.APIBaseURL
	if base == "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		base = config.ResolveAPIBaseURL(ctx,
			config.HostEnv{Hostname: cfg.PublicHost, Protocol: cfg.PublicScheme},
			config.BaseRules{HostOverrides: cfg.HostOverrides, APIPort: cfg.APIPort, HealthPath: cfg.Endpoints.Health},
			prober,
			logger,
		)
		cancel()
	}
	target := base
	if target == config.RelativeBase {
		target = cfg.RelativeOrigin()
	}
	logger.Info("api base resolved", zap.String("base_url", base), zap.String("target", target))

	// --- Clients ---
	api := client.NewAPIClient(httpClient, target, cb, bulkhead, metrics, logger)

	// --- Session stores ---
	memory := sessionstore.NewMemory(cfg.SessionTTL)
	defer memory.Close()

	var store port.SessionStore = memory
	durable, err := sessionstore.NewSQLite(cfg.SessionDBPath, logger)
	if err != nil {
		logger.Warn("durable session store unavailable, sessions will not survive restarts",
			zap.String("path", cfg.SessionDBPath),
			zap.Error(err),
		)
	} else {
		defer durable.Close()
		tiered := sessionstore.NewTiered(memory, durable, metrics, logger)
		store = tiered

		sweepCtx, stopSweep := context.WithCancel(context.Background())
		defer stopSweep()
		go tiered.Sweep(sweepCtx, 10*time.Minute)
	}

	// --- Services ---
	sessions := service.NewSessionManager(api, store, cfg.Endpoints.Auth, cfg.SessionTTL, metrics, logger)
	defer sessions.Close()
	api.OnUnauthorized(sessions.HandleUnauthorized)

	bus := events.NewBus(metrics, logger)
	type subscription struct {
		kind domain.EntityKind
		id   string
	}
	var subs []subscription
	subscribe := func(kind domain.EntityKind, name string, l events.Listener) {
		subs = append(subs, subscription{kind: kind, id: bus.Subscribe(kind, name, l)})
	}

	deps := handler.Deps{
		Config:   cfg,
		Sessions: sessions,
		Health:   prober,
		API:      api,
		Metrics:  metrics,
		Logger:   logger,
	}

	if cfg.Modules.Proprietarios {
		deps.Owners = service.NewOwnerService(api, cfg.Endpoints.Proprietarios, cfg.SessionTTL, logger)
		defer deps.Owners.Close()
		subscribe(domain.KindOwners, "proprietarios", deps.Owners.Reload)
	}
	if cfg.Modules.Imoveis {
		deps.Properties = service.NewPropertyService(api, cfg.Endpoints.Imoveis, cfg.SessionTTL, logger)
		defer deps.Properties.Close()
		subscribe(domain.KindProperties, "imoveis", deps.Properties.Reload)
	}
	if cfg.Modules.Participacoes {
		deps.Participations = service.NewParticipationService(api,
			cfg.Endpoints.Participacoes, cfg.Endpoints.Proprietarios, cfg.Endpoints.Imoveis,
			cfg.SessionTTL, logger)
		defer deps.Participations.Close()
		// The matrix crosses owners and properties, so it follows all three.
		for _, kind := range []domain.EntityKind{domain.KindParticipations, domain.KindOwners, domain.KindProperties} {
			subscribe(kind, "participacoes", deps.Participations.Reload)
		}
	}
	if cfg.Modules.Alugueis {
		deps.Rentals = service.NewRentalService(api, cfg.Endpoints.Alugueis, cfg.SessionTTL, logger)
		defer deps.Rentals.Close()
		subscribe(domain.KindRentals, "alugueis", deps.Rentals.Reload)
	}
	if cfg.Modules.Dashboard {
		deps.Dashboard = service.NewDashboardService(api,
			cfg.Endpoints.Proprietarios, cfg.Endpoints.Imoveis, cfg.Endpoints.Alugueis, logger)
	}
	if cfg.Modules.Relatorios {
		deps.Reports = service.NewReportService(api, cfg.Endpoints.Relatorios, logger)
	}
	if cfg.Modules.Usuarios {
		deps.Users = service.NewUserService(api, cfg.Endpoints.Auth, logger)
	}
	if cfg.Modules.Importacao {
		paths := make(map[domain.EntityKind]string, len(domain.ImportKinds))
		for _, kind := range domain.ImportKinds {
			paths[kind] = cfg.Endpoints.Collection(kind)
			logger.Info("import refresh wiring",
				zap.String("kind", string(kind)),
				zap.Strings("subscribers", bus.Subscribers(kind)),
			)
		}
		deps.Imports = service.NewImportService(api, paths, bus, metrics, logger)
	}

	// Modules stop listening before their caches are closed.
	defer func() {
		for i := len(subs) - 1; i >= 0; i-- {
			bus.Unsubscribe(subs[i].kind, subs[i].id)
		}
	}()

	// --- Router ---
	router := handler.NewRouter(deps)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/agencydesk/contracts"
	authhandler "github.com/zenGate-Global/agencydesk/domains/auth/be/handler"
	authrepo "github.com/zenGate-Global/agencydesk/domains/auth/be/repo"
	authservice "github.com/zenGate-Global/agencydesk/domains/auth/be/service"
	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/agencydesk/platform/go/middleware"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
	"github.com/zenGate-Global/agencydesk/platform/go/tenant"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	DatabaseURL          string        `env:"DATABASE_URL,required"`
	TenantDatabaseURL    string        `env:"TENANT_DATABASE_URL"`
	TenantPoolMaxConns   int32         `env:"TENANT_POOL_MAX_CONNS" envDefault:"4"`
	TenantConnectTimeout time.Duration `env:"TENANT_CONNECT_TIMEOUT" envDefault:"5s"`
	TenantQueryTimeout   time.Duration `env:"TENANT_QUERY_TIMEOUT" envDefault:"10s"`
	TestDatabasePattern  string        `env:"TEST_DATABASE_PATTERN"`
	PasswordCryptMode    string        `env:"PASSWORD_CRYPT_MODE" envDefault:"database"`

	JWTSecret     string        `env:"JWT_SECRET,required"`
	TokenIssuer   string        `env:"TOKEN_ISSUER" envDefault:"agencydesk"`
	TokenAudience string        `env:"TOKEN_AUDIENCE" envDefault:"agencydesk-app"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "auth-api",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	mainPool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init main postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(mainPool)

	tenantBase := cfg.TenantDatabaseURL
	if tenantBase == "" {
		tenantBase = cfg.DatabaseURL
	}
	pools, err := persistence.NewPoolManager(persistence.PoolManagerConfig{
		BaseConnString: tenantBase,
		MaxConns:       cfg.TenantPoolMaxConns,
		MaxConnIdle:    5 * time.Minute,
		ConnectTimeout: cfg.TenantConnectTimeout,
	})
	if err != nil {
		logger.Fatal("init tenant pool manager", zap.Error(err))
	}
	defer pools.Close()

	registry, err := persistence.NewTenantRegistry(mainPool)
	if err != nil {
		logger.Fatal("init tenant registry", zap.Error(err))
	}

	cryptMode, err := authrepo.ParseCryptMode(cfg.PasswordCryptMode)
	if err != nil {
		logger.Fatal("invalid PASSWORD_CRYPT_MODE", zap.Error(err))
	}

	filter, err := tenant.NewDatabaseFilter(cfg.TestDatabasePattern)
	if err != nil {
		logger.Fatal("invalid TEST_DATABASE_PATTERN", zap.Error(err))
	}

	repository, err := authrepo.NewPostgresRepository(mainPool, pools, persistence.NewSchemaRepairer(), authrepo.Config{
		MainDatabase: mainPool.Config().ConnConfig.Database,
		CryptMode:    cryptMode,
	})
	if err != nil {
		logger.Fatal("init auth repository", zap.Error(err))
	}

	issuer, err := platformauth.NewIssuer(platformauth.IssuerConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.TokenIssuer,
		Audience: cfg.TokenAudience,
		TTL:      cfg.TokenTTL,
	})
	if err != nil {
		logger.Fatal("init token issuer", zap.Error(err))
	}

	locator := authservice.NewLocator(repository, authservice.LocatorConfig{
		TenantQueryTimeout: cfg.TenantQueryTimeout,
		Databases:          filter,
	}, logger)
	authService := authservice.New(locator, issuer)
	authHTTPHandler := authhandler.New(authService, logger)

	authSpec, err := contracts.LoadAuth()
	if err != nil {
		logger.Fatal("load auth contract", zap.Error(err))
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.CORS(cfg.CORSOrigins),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", readinessHandler(registry, logger))

	registerDocsRoutes(rootRouter, logger)

	apiRouter := chi.NewRouter()
	apiRouter.Use(buildAuthMiddleware(issuer))
	apiRouter.Use(platformmiddleware.RequestTrace)

	authValidator := platformmiddleware.NewSpecValidator(logger, "auth", authSpec)
	apiRouter.Group(func(r chi.Router) {
		r.Use(authValidator)
		r.Post("/auth/login", authHTTPHandler.Login)
		r.With(platformauth.RequireSession).Get("/auth/session", authHTTPHandler.Session)
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireSession)
		r.Use(tenantRouteMiddleware(pools, mainPool))
		r.Get("/tenant/ping", tenantPingHandler(logger))
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireSuperAdmin)
		r.Get("/admin/tenant-pools", tenantPoolsHandler(pools))
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func readinessHandler(registry *persistence.TenantRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := registry.Ping(r.Context()); err != nil {
			platformlogging.FromRequest(r, logger).Warn("readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

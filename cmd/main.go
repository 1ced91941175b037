package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-catalog-service/internal/api"
	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/config"
	"storefront-catalog-service/internal/events"
	"storefront-catalog-service/internal/inquiry"
	"storefront-catalog-service/internal/logging"
	"storefront-catalog-service/internal/metrics"
	"storefront-catalog-service/internal/store"
)

const (
	defaultAppName      = "StorefrontCatalogService"
	healthCheckInterval = 15 * time.Second
	shutdownTimeout     = 30 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, relying on system environment")
	}

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("error loading configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("service", defaultAppName)
	log.WithFields(logrus.Fields{"app_env": cfg.AppEnv, "store_backend": cfg.Store.Backend}).Info("configuration loaded")

	// --- Store ---
	client, closers, err := setupStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize store")
	}

	// --- Catalog components ---
	cache := setupCache(cfg, log, &closers)
	publisher := setupPublisher(cfg, log, &closers)

	tokens, err := auth.NewTokenService(cfg.Auth.SecretKey, cfg.Auth.TokenTTL())
	if err != nil {
		log.WithError(err).Fatal("failed to create token service")
	}
	credentials, err := auth.NewConfigCredentials(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.AdminPasswordHash)
	if err != nil {
		log.WithError(err).Fatal("failed to create admin credentials")
	}

	var inquiries api.InquirySubmitter
	if cfg.InquiryEnabled() {
		relay := inquiry.NewSMTPRelay(inquiry.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Timeout:  cfg.SMTP.Timeout,
		})
		svc, err := inquiry.NewService(relay, cfg.SMTP.From, cfg.SMTP.To)
		if err != nil {
			log.WithError(err).Fatal("failed to create inquiry service")
		}
		inquiries = svc
		log.WithField("smtp_host", cfg.SMTP.Host).Info("inquiry delivery enabled")
	} else {
		log.Warn("SMTP not configured, inquiry delivery disabled")
	}

	grpcHealth := health.NewServer()
	checker := api.NewHealthChecker(client, grpcHealth)

	httpAPIHandler := api.NewHTTPHandler(api.Deps{
		Reader:         catalog.NewQueryEngine(client, cache),
		Writer:         catalog.NewGateway(client, cache, publisher),
		Inquiries:      inquiries,
		Credentials:    credentials,
		Tokens:         tokens,
		Health:         checker,
		LoginLimiter:   api.NewRateLimiter("login", cfg.RateLimit.LoginPerMinute),
		InquiryLimiter: api.NewRateLimiter("inquiry", cfg.RateLimit.InquiryPerMinute),
	})

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, cfg, logger)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		log.WithField("port", cfg.HttpServer.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server ListenAndServe error")
		}
		log.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(log, grpcHealth)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		log.WithError(err).WithField("port", cfg.GrpcServer.Port).Fatal("failed to listen for gRPC")
	}

	go func() {
		log.WithField("port", cfg.GrpcServer.Port).Info("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.WithError(err).Fatal("gRPC server Serve error")
		}
		log.Info("gRPC server has stopped")
	}()

	watchCtx, stopWatch := context.WithCancel(logging.IntoContext(context.Background(), log))
	go checker.Watch(watchCtx, healthCheckInterval)

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(log, httpServer, grpcServer, grpcHealth, stopWatch, closers, shutdownComplete)

	<-shutdownComplete
	log.Info("service shutdown sequence finished")
}

// namedCloser is a resource released during shutdown.
type namedCloser struct {
	name string
	c    io.Closer
}

func setupStore(cfg *config.Config, log *logrus.Entry) (store.Client, []namedCloser, error) {
	switch cfg.Store.Backend {
	case config.BackendREST:
		client, err := store.NewRESTClient(store.RESTConfig{
			URL:        cfg.Store.SupabaseURL,
			ServiceKey: cfg.Store.SupabaseKey,
			Timeout:    cfg.Store.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("using PostgREST store backend")
		return client, nil, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Store.Postgres.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info("database connection established")
		if cfg.Store.Postgres.AutoMigrate {
			version, err := store.Migrate(db)
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			log.WithField("schema_version", version).Info("database schema is up to date")
		}
		return store.NewPostgresClient(db, cfg.Store.Timeout), []namedCloser{{"database", db}}, nil

	case config.BackendMemory:
		mem := store.NewMemoryClient()
		store.SeedDemoCatalog(mem)
		log.Warn("using in-memory store seeded with the demo catalog")
		return mem, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func setupCache(cfg *config.Config, log *logrus.Entry, closers *[]namedCloser) catalog.CategoryCache {
	if cfg.Cache.RedisAddr == "" {
		return catalog.NopCache{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable at startup, category cache will retry per request")
	}
	*closers = append(*closers, namedCloser{"redis", rdb})
	log.WithField("addr", cfg.Cache.RedisAddr).Info("category cache enabled")
	return catalog.NewRedisCategoryCache(rdb, cfg.Cache.CategoryTTL)
}

func setupPublisher(cfg *config.Config, log *logrus.Entry, closers *[]namedCloser) events.Publisher {
	if len(cfg.Events.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	p := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	*closers = append(*closers, namedCloser{"kafka", p})
	log.WithField("topic", cfg.Events.KafkaTopic).Info("catalog events enabled")
	return p
}

func setupBaseMiddleware(router *chi.Mux, cfg *config.Config, logger *logrus.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(middleware.Timeout(cfg.HttpServer.RequestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func setupGRPCServer(log *logrus.Entry, grpcHealth *health.Server) *grpc.Server {
	s := grpc.NewServer()

	grpc_health_v1.RegisterHealthServer(s, grpcHealth)
	log.Info("gRPC health check service registered")

	// Enable gRPC server reflection (useful for tools like grpcurl).
	reflection.Register(s)
	return s
}

func waitForShutdown(
	log *logrus.Entry,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	grpcHealth *health.Server,
	stopWatch context.CancelFunc,
	closers []namedCloser,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	log.WithField("signal", receivedSignal.String()).Info("starting graceful shutdown")

	stopWatch()
	grpcHealth.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server graceful shutdown failed")
	} else {
		log.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		log.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		log.WithError(shutdownCtx.Err()).Warn("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	for _, c := range closers {
		if err := c.c.Close(); err != nil {
			log.WithError(err).WithField("resource", c.name).Warn("error closing resource")
		}
	}

	log.Info("graceful shutdown sequence completed")
}

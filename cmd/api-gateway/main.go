package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dispatch-api/api/swagger"
	"github.com/noah-isme/dispatch-api/internal/handler"
	internalmiddleware "github.com/noah-isme/dispatch-api/internal/middleware"
	"github.com/noah-isme/dispatch-api/internal/repository"
	"github.com/noah-isme/dispatch-api/internal/service"
	"github.com/noah-isme/dispatch-api/pkg/cache"
	"github.com/noah-isme/dispatch-api/pkg/config"
	"github.com/noah-isme/dispatch-api/pkg/database"
	"github.com/noah-isme/dispatch-api/pkg/jobs"
	"github.com/noah-isme/dispatch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dispatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dispatch-api/pkg/middleware/requestid"
)

// @title Dispatch API
// @version 0.1.0
// @description Generic read, update and delete endpoints over registered models.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	var readiness []handler.ReadinessCheck

	var (
		store service.RecordStore
		audit service.AuditWriter
	)
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		if err := database.EnsureSchema(context.Background(), db); err != nil {
			logr.Fatal("failed to prepare database schema", zap.Error(err))
		}
		store = repository.NewRecordRepository(db)
		audit = repository.NewAuditRepository(db)
		readiness = append(readiness, handler.ReadinessCheck{Name: "database", Check: pingDB(db)})
	default:
		store = repository.NewMemoryRecordRepository()
		audit = repository.NewMemoryAuditRepository()
	}
	store = service.NewInstrumentedStore(store, metrics)
	auditQueue := service.NewAuditQueue(audit, jobs.Config{Workers: 2, MaxRetries: 3, Logger: logr})
	defer auditQueue.Close()

	var cacheRepo service.CacheRepository
	if cfg.ReadCache.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.NewRedis(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logr.Warn("read cache disabled: redis unavailable", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			readiness = append(readiness, handler.ReadinessCheck{Name: "redis", Check: pingRedis(client)})
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.ReadCache.TTL, logr, cacheRepo != nil)

	registry := service.NewSchemaRegistry(cfg.Dispatch, logr)
	if err := service.RegisterExampleSchemas(registry, cfg.Dispatch); err != nil {
		logr.Fatal("failed to register schemas", zap.Error(err))
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, logr)
	dispatchSvc := service.NewDispatchService(cfg.Dispatch, registry, store, nil, auditQueue, cacheSvc, metrics, logr)

	dispatchHandler := handler.NewDispatchHandler(dispatchSvc, logr)
	schemaHandler := handler.NewSchemaHandler(registry)
	metricsHandler := handler.NewMetricsHandler(metrics, readiness...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedHeaders...))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	dispatch := api.Group("/dispatch")
	dispatch.Use(internalmiddleware.OptionalJWT(tokens), internalmiddleware.WithResponseMeta())
	dispatch.Any("/:model", dispatchHandler.Handle)
	dispatch.Any("/:model/:ident", dispatchHandler.Handle)
	dispatch.Any("/:model/:ident/:field", dispatchHandler.Handle)

	staff := api.Group("")
	staff.Use(internalmiddleware.JWT(tokens), internalmiddleware.RequireStaff())
	staff.GET("/schemas", schemaHandler.List)
	staff.GET("/metrics/summary", metricsHandler.Summary)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store", cfg.Store.Driver)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func pingDB(db *sqlx.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func pingRedis(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"price-cache-api/internal/cache"
	"price-cache-api/internal/catalog"
	"price-cache-api/internal/config"
	"price-cache-api/internal/controllers"
	"price-cache-api/internal/horizon"
	"price-cache-api/internal/monitoring"
	"price-cache-api/internal/pricecache"
	"price-cache-api/pkg/logger"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Logging)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	store, err := cache.NewRedisStore(&cfg.Redis, cfg.PriceCache.Retention, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer store.Close()

	chainClient := horizon.NewClient(&cfg.Horizon, log)
	catalogClient := catalog.NewClient(&cfg.Catalog, log)
	deriver := pricecache.NewDeriver(chainClient, cfg.PriceCache.CalculationTimeout, log)

	engine := pricecache.NewEngine(store, deriver, catalogClient, pricecache.EngineConfig{
		BatchSize:  cfg.PriceCache.BatchSize,
		BatchDelay: cfg.PriceCache.BatchDelay,
	}, metrics, log)

	updater := pricecache.NewUpdater(engine, cfg.PriceCache.UpdateInterval, log)

	// Bootstrap the catalog off the serving path: the API starts answering
	// immediately, with lazy admission covering reads that beat the bootstrap.
	go func() {
		ctx := context.Background()

		initialized, err := store.IsInitialized(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to read initialization flag")
		}
		if !initialized {
			log.Info("Bootstrapping token catalog")
			if err := engine.Initialize(ctx); err != nil {
				log.WithError(err).Error("Catalog bootstrap failed")
			}
		}

		updater.Start()
	}()

	router := setupRouter(engine, store, chainClient, log)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":        addr,
			"environment": cfg.Environment,
		}).Info("Price cache API starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	updater.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func setupRouter(engine *pricecache.Engine, store *cache.RedisStore, chain *horizon.Client, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	healthController := controllers.NewHealthController(store, chain)
	healthController.RegisterRoutes(router)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	priceController := controllers.NewPriceController(engine, log)
	priceController.RegisterRoutes(api)

	return router
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		}).Debug("Request handled")
	}
}

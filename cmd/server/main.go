// cmd/server is the search API's HTTP entrypoint: POST /search,
// GET /similar-documents/:chunk_id, GET /context/:chunk_id,
// GET /metadata, plus health and readiness checks. gin.New with a
// CustomRecovery handler, an ordered middleware stack, and graceful
// shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/opensearch-project/opensearch-go/v2"

	"pravachan-index/internal/config"
	"pravachan-index/internal/embed"
	"pravachan-index/internal/logger"
	"pravachan-index/internal/search"
	"pravachan-index/internal/telemetry"
	"pravachan-index/middleware"
	"pravachan-index/routes"
	"pravachan-index/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	shutdownTracer, err := telemetry.InitTracer("pravachan-index")
	if err != nil {
		log.Printf("failed to initialize tracing: %v", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Printf("failed to initialize metrics: %v", err)
	}

	logger.InitLogger(cfg)
	logger.Info("search API starting", "gin_mode", cfg.GinMode, "port", cfg.Port)

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.SearchClusterURL},
		Username:  cfg.SearchClusterUsername,
		Password:  cfg.SearchClusterPassword,
	})
	if err != nil {
		log.Fatal("Failed to create search cluster client:", err)
	}

	querier := &search.OpenSearchQuerier{OS: osClient}
	lookup := search.NewOpenSearchLookup(querier)
	embedder := embed.NewGoogleAdapter(cfg)

	// No external cross-encoder is wired by default; search_type
	// "relevance" degrades to fused order until one is configured.
	searcher := search.NewSearcher(cfg, querier, embedder, nil)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered", "error", recovered, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_code": "internal_error",
			"message":    "An unexpected error occurred",
		})
		c.Abort()
	}))

	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.ManualTracing())
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestSizeLimit(1 << 20)) // 1 MB, JSON search requests only
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	routes.SetupRoutes(router, routes.Deps{
		Config:      cfg,
		Searcher:    searcher,
		Lookup:      lookup,
		MongoClient: mongoClient,
		RedisClient: rdb,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("search API listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("search API shutting down")

	ctx, cancel := utils.WithLongTimeout(context.Background())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	logger.Info("search API exited")
}

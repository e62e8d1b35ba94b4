package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"pravachan-index/internal/config"
	"pravachan-index/internal/search"
	"pravachan-index/utils"
)

// Deps is everything the search API's route groups close over, built
// once in cmd/server and threaded through SetupRoutes.
type Deps struct {
	Config      *config.Config
	Searcher    *search.Searcher
	Lookup      search.Lookup
	MongoClient *mongo.Client
	RedisClient *redis.Client
}

// SetupRoutes mounts the search API's endpoints plus the operational
// /health and /ready checks.
func SetupRoutes(router *gin.Engine, deps Deps) {
	SetupSearchRoutes(router, deps.Config, deps.Searcher)
	SetupSimilarRoutes(router, deps.Config, deps.Lookup)
	SetupContextRoutes(router, deps.Config, deps.Lookup)
	SetupMetadataRoutes(router, deps.Config, deps.Lookup)

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		status := gin.H{"status": "ok"}
		code := http.StatusOK

		if err := deps.MongoClient.Ping(ctx, nil); err != nil {
			status["mongo"] = "unreachable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["mongo"] = "ok"
		}

		if err := deps.RedisClient.Ping(ctx).Err(); err != nil {
			status["redis"] = "unreachable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["redis"] = "ok"
		}

		c.JSON(code, status)
	})

	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

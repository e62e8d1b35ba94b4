package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-wide environment configuration described by the
// closed set in the external-interfaces contract: corpus root, state
// directory, search cluster endpoint + credentials, OCR provider
// credentials, embedding model identifier, worker-pool sizes, per-call
// timeouts, log level.
type Config struct {
	CorpusRoot   string
	StateDir     string
	StateBackend string // "mongo" or "sqlite"
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	CORSOrigins  []string
	LogLevel     string

	// Redis backs the asynq broker and the HTTP rate limiter.
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// OCR Adapter
	OCRServiceURL          string
	OCRTimeoutSeconds      int
	OCRConfidenceThreshold float64
	OCRCropMarginPercent   float64

	// Embedding Adapter
	EmbeddingsProvider    string
	GoogleEmbeddingsModel string
	GoogleAPIKey          string
	EmbeddingDimensions   int
	EmbeddingMaxRetries   int
	EmbeddingTimeoutSec   int

	// Search cluster (OpenSearch)
	SearchClusterURL      string
	SearchClusterUsername string
	SearchClusterPassword string
	SearchIndexName       string
	SearchTimeoutSeconds  int

	// Worker pool sizing
	OCRWorkerPoolSize   int
	EmbedWorkerPoolSize int
	IndexQueueCapacity  int

	// Discovery scan cadence
	ScanCron string

	// Chunking defaults, overridable per resolved config
	DefaultChunkSize    int
	DefaultChunkOverlap int

	// RRF / search defaults
	RRFConstant       int
	RerankTopM        int
	DefaultPageSize   int
	ProximityDistance int

	// HTTP rate limiting (per IP + endpoint, via Redis INCR/EXPIRE)
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		CorpusRoot:   getEnv("CORPUS_ROOT", "./corpus"),
		StateDir:     getEnv("STATE_DIR", "./state"),
		StateBackend: getEnv("STATE_BACKEND", "mongo"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/pravachan_index"),
		DBName:       getEnv("DB_NAME", "pravachan_index"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "release"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OCRServiceURL:          getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRTimeoutSeconds:      getEnvInt("OCR_TIMEOUT_SECONDS", 120),
		OCRConfidenceThreshold: getEnvFloat64("OCR_CONFIDENCE_THRESHOLD", 0.7),
		OCRCropMarginPercent:   getEnvFloat64("OCR_CROP_MARGIN_PERCENT", 0.0),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GoogleAPIKey:          getEnv("GOOGLE_API_KEY", ""),
		EmbeddingDimensions:   getEnvInt("EMBEDDING_DIMENSIONS", 768),
		EmbeddingMaxRetries:   getEnvInt("EMBEDDING_MAX_RETRIES", 5),
		EmbeddingTimeoutSec:   getEnvInt("EMBEDDING_TIMEOUT_SECONDS", 30),

		SearchClusterURL:      getEnv("SEARCH_CLUSTER_URL", "http://localhost:9200"),
		SearchClusterUsername: getEnv("SEARCH_CLUSTER_USERNAME", ""),
		SearchClusterPassword: getEnv("SEARCH_CLUSTER_PASSWORD", ""),
		SearchIndexName:       getEnv("SEARCH_INDEX_NAME", "pravachan_chunks"),
		SearchTimeoutSeconds:  getEnvInt("SEARCH_TIMEOUT_SECONDS", 10),

		OCRWorkerPoolSize:   getEnvInt("OCR_WORKER_POOL_SIZE", 4),
		EmbedWorkerPoolSize: getEnvInt("EMBED_WORKER_POOL_SIZE", 4),
		IndexQueueCapacity:  getEnvInt("INDEX_QUEUE_CAPACITY", 256),

		ScanCron: getEnv("SCAN_CRON", "*/30 * * * *"),

		DefaultChunkSize:    getEnvInt("DEFAULT_CHUNK_SIZE", 1000),
		DefaultChunkOverlap: getEnvInt("DEFAULT_CHUNK_OVERLAP", 150),

		RRFConstant:       getEnvInt("RRF_CONSTANT", 60),
		RerankTopM:        getEnvInt("RERANK_TOP_M", 50),
		DefaultPageSize:   getEnvInt("DEFAULT_PAGE_SIZE", 10),
		ProximityDistance: getEnvInt("DEFAULT_PROXIMITY_DISTANCE", 5),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
	}

	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

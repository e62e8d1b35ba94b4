package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pravachan-index/internal/config"
	"pravachan-index/internal/discovery"
	"pravachan-index/internal/embed"
	"pravachan-index/internal/index"
	"pravachan-index/internal/logger"
	"pravachan-index/internal/ocr"
	"pravachan-index/internal/queue"
	"pravachan-index/internal/state"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	store, closeStore, err := openStateStore(cfg)
	if err != nil {
		log.Fatal("Failed to open state store:", err)
	}
	defer closeStore()

	resolver := config.NewResolver(cfg.CorpusRoot)
	ocrAdapter := ocr.NewAdapter(cfg)
	embedder := embed.NewGoogleAdapter(cfg)

	indexer, err := index.NewClient(cfg)
	if err != nil {
		log.Fatal("Failed to create search cluster client:", err)
	}
	if err := indexer.EnsureIndex(context.Background()); err != nil {
		log.Fatal("Failed to ensure search index:", err)
	}

	engine := discovery.NewEngine(cfg, resolver, store, ocrAdapter, embedder, indexer)

	redisOpt, err := queue.RedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to build Redis connection option:", err)
	}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	handlers := queue.NewHandlers(engine, client)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.OCRWorkerPoolSize + cfg.EmbedWorkerPoolSize + 2,
			Queues:      queue.QueueConfig(cfg),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("queue: task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	logger.Info("worker: starting ingest pipeline worker",
		"ocr_pool", cfg.OCRWorkerPoolSize, "embed_pool", cfg.EmbedWorkerPoolSize)

	if err := server.Run(handlers.Mux()); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}

// openStateStore mirrors cmd/discover: the worker must read and write
// the same FileState rows the scanning process does.
func openStateStore(cfg *config.Config) (state.Store, func(), error) {
	if cfg.StateBackend == "sqlite" {
		if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
			return nil, nil, err
		}
		s, err := state.NewSQLiteStore(filepath.Join(cfg.StateDir, "file_states.db"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, err
	}
	store := state.NewMongoStore(mongoClient, cfg.DBName)
	return store, func() { mongoClient.Disconnect(context.Background()) }, nil
}

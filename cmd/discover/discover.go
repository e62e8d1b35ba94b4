// cmd/discover is the Discovery Engine's CLI entrypoint: a one-shot
// corpus scan by default, or a scheduled recurring scan when run with
// the "schedule" command.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

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
	command := "scan"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	store, closeStore, err := openStateStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer closeStore()

	resolver := config.NewResolver(cfg.CorpusRoot)
	ocrAdapter := ocr.NewAdapter(cfg)
	embedder := embed.NewGoogleAdapter(cfg)

	indexer, err := index.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create search cluster client: %v", err)
	}
	if err := indexer.EnsureIndex(context.Background()); err != nil {
		log.Fatalf("Failed to ensure search index: %v", err)
	}

	engine := discovery.NewEngine(cfg, resolver, store, ocrAdapter, embedder, indexer)

	// A scan dispatches to the asynq worker pools when Redis is
	// reachable, falling back to running every stage inline otherwise
	// (useful for a small corpus or a single-machine deployment).
	if redisOpt, err := queue.RedisOpt(cfg); err == nil {
		if rdb, pingErr := config.NewRedisClient(cfg); pingErr == nil {
			rdb.Close()
			client := asynq.NewClient(redisOpt)
			defer client.Close()
			engine.SetDispatcher(queue.NewAsynqDispatcher(client))
		}
	}

	switch command {
	case "scan":
		runScan(engine)
	case "schedule":
		runSchedule(cfg, engine)
	default:
		fmt.Println("Usage: discover <command>")
		fmt.Println("Commands:")
		fmt.Println("  scan      - run a single corpus scan and exit")
		fmt.Println("  schedule  - run recurring scans on cfg.ScanCron until interrupted")
		os.Exit(1)
	}
}

// openStateStore picks the State Store backing from cfg.StateBackend:
// the shared Mongo collection for multi-node deployments, or the
// embedded SQLite file under cfg.StateDir for single-node ones.
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

func runScan(engine *discovery.Engine) {
	result, err := engine.Scan(context.Background())
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	logger.Info("discover: scan complete",
		"new", result.New, "content_changed", result.ContentChanged,
		"config_changed", result.ConfigChanged, "unchanged", result.Unchanged,
		"deleted", result.Deleted, "failed", result.Failed)
}

func runSchedule(cfg *config.Config, engine *discovery.Engine) {
	scheduler := discovery.NewScheduler(engine)
	if err := scheduler.Start(cfg.ScanCron); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	logger.Info("discover: scheduled scan running", "cron", cfg.ScanCron)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	scheduler.Stop()
	logger.Info("discover: scheduler stopped")
}

// Package queue wires the ingest pipeline's OCR and embed/index stages
// onto bounded asynq worker pools: OCRStage work is enqueued
// on the "ocr" queue, EmbedIndexStage work on the "embed" queue,
// metadata-only reindexing on the "index" queue. cmd/worker configures
// per-queue priority weights from cfg.OCRWorkerPoolSize / EmbedWorkerPoolSize.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"pravachan-index/internal/config"
	"pravachan-index/internal/discovery"
	"pravachan-index/internal/logger"
	"pravachan-index/models"
)

const (
	TaskOCRStage        = "discovery:ocr"
	TaskEmbedIndexStage = "discovery:embed"
	TaskReindexMetadata = "discovery:reindex_metadata"
)

// RedisOpt builds the asynq broker connection option from Config,
// accepting either a full redis:// URI or a bare host:port, matching
// internal/config.NewRedisClient's dual parsing.
func RedisOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return asynq.ParseRedisURI(cfg.RedisURL)
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// QueueConfig returns the asynq queue priority weights cmd/worker's
// server uses, derived from the configured OCR/embed pool sizes so the
// relative worker counts approximate two dedicated bounded pools even
// though asynq schedules one shared goroutine pool.
func QueueConfig(cfg *config.Config) map[string]int {
	return map[string]int{
		"ocr":   cfg.OCRWorkerPoolSize,
		"embed": cfg.EmbedWorkerPoolSize,
		"index": 2,
	}
}

type ocrPayload struct {
	Path  string           `json:"path"`
	Prior models.FileState `json:"prior"`
}

type embedPayload struct {
	Staged discovery.StagedDocument `json:"staged"`
}

type reindexPayload struct {
	Path  string           `json:"path"`
	Prior models.FileState `json:"prior"`
}

// AsynqDispatcher implements discovery.Dispatcher by enqueuing work
// instead of running it inline in the scanning goroutine.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) DispatchIngest(ctx context.Context, path string, prior models.FileState) error {
	payload, err := json.Marshal(ocrPayload{Path: path, Prior: prior})
	if err != nil {
		return fmt.Errorf("marshal ocr payload: %w", err)
	}
	_, err = d.client.EnqueueContext(ctx, asynq.NewTask(TaskOCRStage, payload,
		asynq.MaxRetry(3), asynq.Timeout(15*time.Minute), asynq.Queue("ocr")))
	return err
}

func (d *AsynqDispatcher) DispatchMetadataReindex(ctx context.Context, path string, prior models.FileState) error {
	payload, err := json.Marshal(reindexPayload{Path: path, Prior: prior})
	if err != nil {
		return fmt.Errorf("marshal reindex payload: %w", err)
	}
	_, err = d.client.EnqueueContext(ctx, asynq.NewTask(TaskReindexMetadata, payload,
		asynq.MaxRetry(3), asynq.Timeout(5*time.Minute), asynq.Queue("index")))
	return err
}

// Handlers runs the ingest pipeline stages as asynq task handlers,
// chaining OCRStage's output onto the embed queue rather than running
// both stages in the same worker pool.
type Handlers struct {
	engine *discovery.Engine
	client *asynq.Client
}

func NewHandlers(engine *discovery.Engine, client *asynq.Client) *Handlers {
	return &Handlers{engine: engine, client: client}
}

func (h *Handlers) HandleOCRStage(ctx context.Context, t *asynq.Task) error {
	var p ocrPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	staged, err := h.engine.OCRStage(ctx, p.Path, p.Prior)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(embedPayload{Staged: *staged})
	if err != nil {
		return fmt.Errorf("%w: marshal staged document: %v", asynq.SkipRetry, err)
	}
	_, err = h.client.EnqueueContext(ctx, asynq.NewTask(TaskEmbedIndexStage, payload,
		asynq.MaxRetry(3), asynq.Timeout(10*time.Minute), asynq.Queue("embed")))
	if err != nil {
		return fmt.Errorf("enqueue embed stage: %w", err)
	}
	logger.Info("queue: ocr stage complete", "path", p.Path, "paragraphs", len(staged.Paragraphs))
	return nil
}

func (h *Handlers) HandleEmbedIndexStage(ctx context.Context, t *asynq.Task) error {
	var p embedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return h.engine.EmbedIndexStage(ctx, &p.Staged)
}

func (h *Handlers) HandleReindexMetadata(ctx context.Context, t *asynq.Task) error {
	var p reindexPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return h.engine.ReindexMetadata(ctx, p.Path, p.Prior)
}

// Mux builds the asynq.ServeMux routing every task type to its handler,
// for cmd/worker to hand to asynq.Server.Run.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOCRStage, h.HandleOCRStage)
	mux.HandleFunc(TaskEmbedIndexStage, h.HandleEmbedIndexStage)
	mux.HandleFunc(TaskReindexMetadata, h.HandleReindexMetadata)
	return mux
}

package discovery

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"pravachan-index/internal/logger"
)

// Scheduler runs periodic corpus scans on cfg.ScanCron: a gocron
// wrapper with a single uniquely-tagged job and a Start/Stop lifecycle.
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    *Engine
	cancel    context.CancelFunc
}

func NewScheduler(engine *Engine) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s, engine: engine}
}

// Start schedules the corpus scan on cronExpr and runs it asynchronously
// until Stop is called.
func (s *Scheduler) Start(cronExpr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	_, err := s.scheduler.Cron(cronExpr).Tag("corpus-scan").Do(func() {
		result, err := s.engine.Scan(ctx)
		if err != nil {
			logger.Error("discovery: scheduled scan aborted", "error", err)
			return
		}
		logger.Info("discovery: scheduled scan complete",
			"new", result.New, "content_changed", result.ContentChanged,
			"config_changed", result.ConfigChanged, "unchanged", result.Unchanged,
			"deleted", result.Deleted, "failed", result.Failed)
	})
	if err != nil {
		cancel()
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

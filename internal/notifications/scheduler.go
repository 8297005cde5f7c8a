package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/mediahook/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// SchedulerConfig contains scheduler configuration.
type SchedulerConfig struct {
	Interval        time.Duration
	MinBatchSize    int
	ForceIndividual bool
	FlushOnShutdown bool
	FlushTimeout    time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:        300 * time.Second,
		MinBatchSize:    3,
		FlushOnShutdown: true,
		FlushTimeout:    30 * time.Second,
	}
}

// Scheduler periodically drains the queue and delivers its contents.
type Scheduler struct {
	config  SchedulerConfig
	queue   *Queue
	adapter Adapter

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler delivering through adapter.
func NewScheduler(config SchedulerConfig, queue *Queue, adapter Adapter) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.MinBatchSize < 1 {
		config.MinBatchSize = 1
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = DefaultSchedulerConfig().FlushTimeout
	}
	return &Scheduler{
		config:  config,
		queue:   queue,
		adapter: adapter,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	caps := s.adapter.Capability()
	slog.Info("starting batch scheduler",
		"platform", caps.Platform,
		"merge_forward", caps.SupportsMergeForward,
		"interval", s.config.Interval,
		"min_batch_size", s.config.MinBatchSize,
		"force_individual", s.config.ForceIndividual,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the loop and waits for an in-flight run. With FlushOnShutdown
// set, messages still queued are delivered once more before returning.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()

		if s.config.FlushOnShutdown {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.FlushTimeout)
			defer cancel()
			s.RunOnce(ctx)
		}
		slog.Info("batch scheduler stopped")
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce drains the queue and delivers the drained messages. Fewer than
// MinBatchSize messages, an adapter without merge-forward or the
// ForceIndividual override mean one delivery per message in enqueue order.
// Otherwise all messages go out as a single forward bundle.
// Failures are logged and never retried.
func (s *Scheduler) RunOnce(ctx context.Context) {
	entries := s.queue.Drain()
	RecordQueueSize(s.queue.Len())
	if len(entries) == 0 {
		return
	}
	recordDrained(len(entries))

	caps := s.adapter.Capability()
	individual := len(entries) < s.config.MinBatchSize ||
		!caps.SupportsMergeForward ||
		s.config.ForceIndividual

	ctx = ctxlog.With(ctx, "run_id", uuid.NewString(), "platform", caps.Platform)
	ctxlog.FromContext(ctx).Debug("delivering queued messages",
		"count", len(entries),
		"individual", individual,
	)

	if individual {
		s.sendIndividually(ctx, caps.Platform, entries)
		return
	}
	s.sendBundle(ctx, caps.Platform, entries)
}

func (s *Scheduler) sendIndividually(ctx context.Context, platform string, entries []Entry) {
	log := ctxlog.FromContext(ctx)
	for _, entry := range entries {
		start := time.Now()
		err := s.adapter.SendIndividual(ctx, entry.Message)
		recordDelivery(platform, modeIndividual, err, time.Since(start))

		if err != nil {
			log.Error("failed to send notification",
				"entry_id", entry.ID,
				"retryable", IsRetryable(err),
				"error", err,
			)
			continue
		}
		log.Debug("notification sent", "entry_id", entry.ID)
	}
}

func (s *Scheduler) sendBundle(ctx context.Context, platform string, entries []Entry) {
	log := ctxlog.FromContext(ctx)
	msgs := make([]Message, len(entries))
	for i, entry := range entries {
		msgs[i] = entry.Message
	}

	start := time.Now()
	err := s.adapter.SendForwardBundle(ctx, msgs)
	recordDelivery(platform, modeBundle, err, time.Since(start))

	if err != nil {
		log.Error("failed to send forward bundle",
			"count", len(msgs),
			"retryable", IsRetryable(err),
			"error", err,
		)
		return
	}
	log.Info("forward bundle sent", "count", len(msgs))
}

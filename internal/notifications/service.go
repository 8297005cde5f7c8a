package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bissquit/mediahook/internal/classify"
	"github.com/bissquit/mediahook/internal/dedup"
	"github.com/bissquit/mediahook/internal/domain"
	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/bissquit/mediahook/internal/pkg/ctxlog"
)

// Outcome is the result of ingesting one webhook.
type Outcome int

// Ingest outcomes.
const (
	OutcomeQueued Outcome = iota
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQueued:
		return "queued"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Enricher completes canonical events with external metadata.
type Enricher interface {
	Enrich(ctx context.Context, ev domain.CanonicalEvent) domain.EnrichedEvent
}

// ServiceConfig contains ingest configuration.
type ServiceConfig struct {
	DedupTTL time.Duration
	// Compact selects the single-line-break layout, used when the delivery
	// adapter cannot merge messages.
	Compact bool
}

// ServiceDeps are the collaborators of Service. Enricher may be nil.
type ServiceDeps struct {
	Decoder       *classify.Decoder
	Fingerprinter *dedup.Fingerprinter
	Store         dedup.Store
	Classifier    *classify.Classifier
	Enricher      Enricher
	Renderer      *Renderer
	Queue         *Queue
}

// Service turns inbound webhook bodies into queued messages.
type Service struct {
	config ServiceConfig
	deps   ServiceDeps
	closed atomic.Bool
}

// NewService creates a new ingest service.
func NewService(config ServiceConfig, deps ServiceDeps) *Service {
	if deps.Fingerprinter == nil {
		deps.Fingerprinter = dedup.NewFingerprinter()
	}
	return &Service{config: config, deps: deps}
}

// Ingest decodes, deduplicates, classifies, enriches and renders body, then
// queues the result for the scheduler.
//
// A fingerprint is recorded before the rest of the pipeline runs so that
// concurrent retries of the same notification are queued once. It is
// forgotten again when processing fails, letting the sender retry.
func (s *Service) Ingest(ctx context.Context, body []byte, headers http.Header) (Outcome, error) {
	if s.closed.Load() {
		return OutcomeQueued, ErrShuttingDown
	}
	log := ctxlog.FromContext(ctx)

	payload, err := s.deps.Decoder.Decode(body, headers)
	if err != nil {
		recordReceived("unknown", "malformed")
		return OutcomeQueued, err
	}
	if payload.Repaired {
		log.Debug("payload parsed after repair")
	}

	fp, duplicate := s.checkDuplicate(ctx, payload)
	if duplicate {
		recordReceived("unknown", "duplicate")
		log.Info("duplicate notification ignored")
		return OutcomeDuplicate, nil
	}

	ev := s.deps.Classifier.Classify(payload)

	enriched := domain.EnrichedEvent{CanonicalEvent: ev, DataSourceTag: domain.DataSourceOriginal}
	if s.deps.Enricher != nil && enrich.Eligible(ev) {
		enriched = s.deps.Enricher.Enrich(ctx, ev)
	}

	msg, err := s.deps.Renderer.Render(enriched, s.config.Compact)
	if err != nil {
		s.forget(ctx, fp)
		recordReceived(string(ev.Source), "error")
		return OutcomeQueued, fmt.Errorf("render message: %w", err)
	}

	entry, err := s.deps.Queue.Push(msg)
	if err != nil {
		s.forget(ctx, fp)
		recordReceived(string(ev.Source), "error")
		if errors.Is(err, ErrQueueClosed) {
			return OutcomeQueued, ErrShuttingDown
		}
		return OutcomeQueued, fmt.Errorf("enqueue message: %w", err)
	}
	RecordQueueSize(s.deps.Queue.Len())
	recordReceived(string(ev.Source), "queued")

	log.Info("notification queued",
		"entry_id", entry.ID,
		"source", ev.Source,
		"item_type", ev.ItemType,
		"data_source", enriched.DataSourceTag,
	)
	return OutcomeQueued, nil
}

// checkDuplicate records the payload fingerprint and reports whether it was
// already present. An empty fingerprint means the payload could not be
// checked and is processed as new.
func (s *Service) checkDuplicate(ctx context.Context, payload classify.Payload) (string, bool) {
	log := ctxlog.FromContext(ctx)

	fp, err := s.deps.Fingerprinter.Fingerprint(payload.Data)
	if err != nil {
		log.Warn("failed to fingerprint payload, skipping dedup", "error", err)
		return "", false
	}

	seen, err := s.deps.Store.CheckAndRecord(ctx, fp, s.config.DedupTTL)
	if err != nil {
		log.Warn("dedup check failed, processing as new", "error", err)
		return "", false
	}
	return fp, seen
}

func (s *Service) forget(ctx context.Context, fp string) {
	if fp == "" {
		return
	}
	if err := s.deps.Store.Forget(context.WithoutCancel(ctx), fp); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to forget fingerprint", "error", err)
	}
}

// Close stops accepting new webhooks. Already queued messages are left for
// the scheduler.
func (s *Service) Close() {
	s.closed.Store(true)
	s.deps.Queue.Close()
}

// Ping checks the dedup backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.deps.Store.Ping(ctx)
}

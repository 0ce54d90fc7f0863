package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concertforge/ticket-engine/internal/domain/repositories"
	"github.com/concertforge/ticket-engine/internal/domain/services"
	"github.com/concertforge/ticket-engine/pkg/logger"
)

// RetrySchedulerConfig tunes the background retry sweep (§4.6): how often it runs, how
// many due Transactions one sweep loads, and how many it retries at once. The scheduler
// takes no lease or lock, so each running instance sweeps on its own.
type RetrySchedulerConfig struct {
	ScanInterval time.Duration
	BatchSize    int
	Concurrency  int
}

// RetryScheduler periodically reopens failed Transactions whose nextRetryAt is due,
// dispatching each to TransactionEngine.Retry with bounded concurrency (§2 item 10,
// §4.6). Failures are logged, not removed from consideration — they keep a fresh
// nextRetryAt from the engine's own backoff path.
type RetryScheduler struct {
	store  repositories.Store
	engine *TransactionEngine
	clock  services.Clock
	cfg    RetrySchedulerConfig

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRetryScheduler constructs a RetryScheduler from its injected dependencies.
func NewRetryScheduler(store repositories.Store, engine *TransactionEngine, clock services.Clock, cfg RetrySchedulerConfig) *RetryScheduler {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &RetryScheduler{
		store:  store,
		engine: engine,
		clock:  clock,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called. It is meant to be
// launched as a background goroutine from main, mirroring the teacher's
// MonitoringJobsService worker-loop shape.
func (s *RetryScheduler) Start(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop signals the sweep loop to exit and blocks until it has.
func (s *RetryScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *RetryScheduler) sweep(ctx context.Context) {
	due, err := s.store.Transactions().ListDueForRetry(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		logger.Errorf("retry scheduler: list due for retry: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, txn := range due {
		txn := txn
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			// The engine has no standing user directory to source a contact email from
			// (out of scope per the Non-goals on event/user CRUD); the gateway's
			// Initialize contract still requires one, so retries use a stable synthetic
			// address keyed by the owning user, logged for operator visibility.
			email := fmt.Sprintf("user+%s@ticket-engine.internal", txn.UserID)

			if _, err := s.engine.Retry(ctx, txn.ID, email); err != nil {
				logger.Warnf("retry scheduler: retry failed for transaction %s: %v", txn.ID, err)
			}
		}()
	}
	wg.Wait()
}

package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Processor runs the deferred settlement step for stored transactions. Each
// scheduled identifier gets a single attempt: wait out the settlement delay,
// re-read the record, and flip it to PROCESSED if it still exists. A record
// that disappeared while waiting is skipped silently; a store error ends the
// attempt with a log line and no retry.
type Processor struct {
	repo   Repository
	delay  time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProcessor(repo Repository, delay time.Duration, logger *slog.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		repo:   repo,
		delay:  delay,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule starts a detached processing task for the transaction and returns
// immediately. Callers must schedule each identifier at most once; the
// ingestion path guarantees this by only scheduling on a fresh insert.
func (p *Processor) Schedule(transactionID string) {
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.run(transactionID)
	}()
}

func (p *Processor) run(transactionID string) {
	// Stand-in for the downstream settlement call. No lock or connection is
	// held while waiting.
	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-p.ctx.Done():
		return
	}

	if _, err := p.repo.GetTransaction(p.ctx, transactionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Purged while we waited. Nothing left to do.
			return
		}

		p.logger.Error("reading transaction for settlement",
			"transaction_id", transactionID, "error", err)

		return
	}

	if err := p.repo.MarkProcessed(p.ctx, transactionID); err != nil {
		p.logger.Error("marking transaction processed",
			"transaction_id", transactionID, "error", err)
	}
}

// Recover re-schedules transactions a previous run left in PROCESSING for
// longer than the settlement delay. Re-marking a record that completed in the
// meantime just rewrites processed_at, which is harmless, so the sweep does
// not need to coordinate with in-flight tasks.
func (p *Processor) Recover(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-p.delay)

	ids, err := p.repo.ListStalled(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing stalled transactions: %w", err)
	}

	for _, id := range ids {
		p.Schedule(id)
	}

	if len(ids) > 0 {
		p.logger.Info("re-scheduled stalled transactions", "count", len(ids))
	}

	return nil
}

// Close aborts pending settlement waits and blocks until all tasks return.
// Tasks cut short here are picked up by Recover on the next start.
func (p *Processor) Close() {
	p.cancel()
	p.wg.Wait()
}

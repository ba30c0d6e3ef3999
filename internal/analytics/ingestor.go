package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/nulzo/reliability-forge/internal/store"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"go.uber.org/zap"
)

// Ingestor handles the asynchronous persistence of pipeline runs.
type Ingestor interface {
	Log(run *model.Run)
	Start(ctx context.Context)
	// Stop flushes what is buffered and waits for the worker to exit.
	// Runs logged after the Start context is cancelled are still kept until Stop.
	Stop()
}

type Option func(*ingestor)

func WithBatchSize(n int) Option {
	return func(i *ingestor) { i.batchSize = n }
}

func WithFlushInterval(d time.Duration) Option {
	return func(i *ingestor) { i.flushTime = d }
}

type ingestor struct {
	logger    *zap.Logger
	repo      store.Repository
	runChan   chan *model.Run
	batchSize int
	flushTime time.Duration

	mu      sync.RWMutex
	started bool
	stopped bool
	done    chan struct{}
}

func NewIngestor(logger *zap.Logger, repo store.Repository, opts ...Option) Ingestor {
	i := &ingestor{
		logger:    logger,
		repo:      repo,
		runChan:   make(chan *model.Run, 1000),
		batchSize: 50,
		flushTime: 5 * time.Second,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *ingestor) Log(run *model.Run) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.stopped {
		i.logger.Warn("Ingestor stopped, dropping run", zap.String("run_id", run.ID))
		return
	}

	select {
	case i.runChan <- run:
	default:
		i.logger.Warn("Run history buffer full, dropping run", zap.String("run_id", run.ID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started || i.stopped {
		return
	}
	i.started = true
	go i.worker(ctx)
}

func (i *ingestor) Stop() {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return
	}
	i.stopped = true
	close(i.runChan)
	started := i.started
	i.mu.Unlock()

	if started {
		<-i.done
	}
}

func (i *ingestor) worker(ctx context.Context) {
	defer close(i.done)

	batch := make([]*model.Run, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		err := i.repo.WithTx(context.Background(), func(tx store.Repository) error {
			for _, run := range batch {
				if err := tx.Runs().Log(context.Background(), run); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			// fall back to row by row so one bad run does not drop the batch
			i.logger.Warn("Batch insert failed, retrying individually", zap.Int("size", len(batch)), zap.Error(err))
			for _, run := range batch {
				if err := i.repo.Runs().Log(context.Background(), run); err != nil {
					i.logger.Error("Failed to persist run", zap.String("id", run.ID), zap.Error(err))
				}
			}
		}
		batch = batch[:0]
	}

	// cancellation only forces a flush; the worker exits when Stop closes runChan
	cancelled := ctx.Done()
	for {
		select {
		case run, ok := <-i.runChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, run)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-cancelled:
			flush()
			cancelled = nil
		}
	}
}

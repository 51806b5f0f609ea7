package mailer

import (
	"context"
	"sync"
	"time"

	"log/slog"
)

// WorkerPool drains the outbox. Each worker fetches the next due job, runs
// its handler, and either marks it done, schedules a retry with exponential
// backoff, or dead-letters it after max attempts.
type WorkerPool struct {
	outbox      *Outbox
	handlers    map[string]Handler
	logger      *slog.Logger
	workerCount int
	stop        chan struct{}
	wg          sync.WaitGroup
}

func NewWorkerPool(outbox *Outbox, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{outbox: outbox, handlers: handlers, logger: logger, workerCount: workerCount, stop: make(chan struct{})}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them
func (p *WorkerPool) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
			job, err := p.outbox.FetchNext(ctx)
			if err != nil {
				p.logger.Error("fetch job", "err", err)
				time.Sleep(1 * time.Second)
				continue
			}
			if job == nil {
				// nothing to do
				time.Sleep(500 * time.Millisecond)
				continue
			}
			h, ok := p.handlers[job.Type]
			if !ok {
				job.Status = "failed"
				job.LastError = "no handler"
				_ = p.outbox.MoveToDeadLetter(ctx, job)
				continue
			}
			err = h(ctx, job)
			if err == nil {
				job.Status = "done"
				_ = p.outbox.UpdateJob(ctx, job)
				continue
			}
			job.Attempts++
			job.LastError = err.Error()
			if job.Attempts >= job.MaxAttempts {
				job.Status = "failed"
				if mvErr := p.outbox.MoveToDeadLetter(ctx, job); mvErr != nil {
					p.logger.Error("move to dead letter", "err", mvErr)
				}
				continue
			}
			// schedule retry with backoff
			backoff := BackoffDuration(job.Attempts)
			t := time.Now().Add(backoff)
			job.NextTryAt = &t
			job.Status = "retry"
			if upErr := p.outbox.UpdateJob(ctx, job); upErr != nil {
				p.logger.Error("update job for retry", "err", upErr)
			}
		}
	}
}

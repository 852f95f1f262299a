package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("download queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// RunFunc processes one download
type RunFunc func(ctx context.Context, downloadID string) error

// Pool runs downloads in-process with a fixed number of workers. It is the
// dispatcher of the "local" queue driver.
type Pool struct {
	workers int
	run     RunFunc
	log     *logrus.Logger

	tasks  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a pool of workers sharing a queue of queueSize pending
// downloads.
func NewPool(workers, queueSize int, run RunFunc, log *logrus.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		run:     run,
		log:     log,
		tasks:   make(chan string, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for id := range p.tasks {
		if err := p.run(p.ctx, id); err != nil {
			p.log.WithError(err).WithField("download_id", id).Warn("download task failed")
		}
	}
}

// Dispatch queues a download. It never blocks; a full queue is reported as
// ErrQueueFull.
func (p *Pool) Dispatch(ctx context.Context, downloadID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- downloadID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting downloads, cancels running ones and waits for the
// workers to exit or ctx to expire.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		p.cancel()
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Drain stops accepting downloads and waits until every queued download has
// run to completion.
func (p *Pool) Drain() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.tasks)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

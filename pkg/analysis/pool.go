// Package analysis runs post-call work off the webhook hot path. A
// bounded worker pool drains summary jobs so the webhook handler
// acknowledges the platform without waiting on a model call.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/conversation"
)

const (
	defaultNumWorkers = 2
	defaultQueueSize  = 64

	// summaryTimeout bounds one summary completion.
	summaryTimeout = 30 * time.Second
)

// Job is one finished call to summarize.
type Job struct {
	CallID     string
	Transcript []conversation.Message
}

// Config is the configuration options for the pool.
type Config struct {
	// Summarizer produces the call summaries.
	Summarizer Summarizer

	// NumWorkers is the number of background workers (default 2).
	NumWorkers int

	// QueueSize is the capacity of the buffered job queue (default 64).
	QueueSize int

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool processes summary jobs asynchronously via a worker pool.
type Pool struct {
	summarizer Summarizer
	queue      chan Job
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// NewPool creates a pool and starts its worker goroutines.
func NewPool(c Config) (*Pool, error) {
	if c.Summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	p := &Pool{
		summarizer: c.Summarizer,
		queue:      make(chan Job, c.QueueSize),
		logger:     c.Logger,
	}

	p.wg.Add(c.NumWorkers)
	for i := 0; i < c.NumWorkers; i++ {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing. Returns true if enqueued,
// false if the queue is full and the job was dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("summary job queued", zap.String("call_id", job.CallID))
		return true
	default:
		p.logger.Warn("summary queue full, dropping job", zap.String("call_id", job.CallID))
		return false
	}
}

// Close stops intake and waits for in-flight jobs to drain. Call it
// during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debug("summary worker started", zap.Int("worker_id", id))

	for job := range p.queue {
		p.process(job)
	}

	p.logger.Debug("summary worker stopped", zap.Int("worker_id", id))
}

func (p *Pool) process(job Job) {
	if len(job.Transcript) == 0 {
		p.logger.Debug("skipping summary for empty transcript", zap.String("call_id", job.CallID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()

	summary, err := p.summarizer.Summarize(ctx, job.Transcript)
	if err != nil {
		p.logger.Error("call summary failed",
			zap.String("call_id", job.CallID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("call summarized",
		zap.String("call_id", job.CallID),
		zap.Int("turns", len(job.Transcript)),
		zap.String("summary", summary),
	)
}

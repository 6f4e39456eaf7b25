// Package worker provides bounded worker pools for enrichment jobs.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Job is one unit of enrichment work.
type Job struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool runs submitted jobs on a fixed number of goroutines.
type Pool struct {
	jobs chan Job
	wg   sync.WaitGroup
	once sync.Once
}

// NewPool creates a pool whose queue holds queueSize pending jobs.
func NewPool(queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{jobs: make(chan Job, queueSize)}
}

// Start launches the worker goroutines. Jobs observe ctx; once it is done,
// queued jobs are drained without running.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				if ctx.Err() != nil {
					continue
				}
				p.run(ctx, job)
			}
		}()
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", job.Name).Interface("panic", r).Msg("worker: job panicked")
		}
	}()
	job.Run(ctx)
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

// Submit queues a job without blocking. It reports false when the queue is
// full and the job was dropped.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		log.Warn().Str("job", job.Name).Msg("worker: dropping job, queue full")
		return false
	}
}

// Package pool runs background work, such as history saves, on a bounded
// and self-sizing set of goroutines.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClosed = errors.New("pool is closed")
	ErrFull   = errors.New("pool queue is full")
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Config sizes a Pool. Non-positive Workers or IdleTimeout and a negative
// QueueSize select the defaults.
type Config struct {
	Workers     int           `yaml:"workers" json:"workers"`
	QueueSize   int           `yaml:"queue_size" json:"queue_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	// OnPanic receives the value recovered from a panicking task.
	OnPanic func(any) `yaml:"-" json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   256,
		IdleTimeout: time.Minute,
	}
}

// Pool starts workers on demand up to Config.Workers. A worker idle for
// IdleTimeout exits unless it is the last one. Close runs what is queued.
type Pool struct {
	cfg   Config
	queue chan job
	wg    sync.WaitGroup

	// closing the queue under mu keeps senders off a closed channel
	mu     sync.RWMutex
	closed bool

	workers atomic.Int32
	busy    atomic.Int32

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

func New(cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	return &Pool{cfg: cfg, queue: make(chan job, cfg.QueueSize)}
}

// =============================================================================
// Submission
// =============================================================================

// Submit queues task and returns at once. When the queue is full and no
// worker can be added it fails with ErrFull.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.submitted.Add(1)

	j := job{ctx: ctx, task: task}
	if p.tryEnqueue(j) {
		p.grow()
		return nil
	}
	// a fresh worker may free a slot
	if p.grow() && p.tryEnqueue(j) {
		return nil
	}
	p.rejected.Add(1)
	return ErrFull
}

// Do queues task, waiting for room if needed, and returns its error.
// A done ctx abandons the wait but not a task already queued.
func (p *Pool) Do(ctx context.Context, task Task) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	p.submitted.Add(1)
	p.grow()

	j := job{ctx: ctx, task: task, done: make(chan error, 1)}
	select {
	case p.queue <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		p.rejected.Add(1)
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) tryEnqueue(j job) bool {
	select {
	case p.queue <- j:
		return true
	default:
		return false
	}
}

// =============================================================================
// Workers
// =============================================================================

// grow starts a worker unless the pool is at its limit.
func (p *Pool) grow() bool {
	for {
		n := p.workers.Load()
		if int(n) >= p.cfg.Workers {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			p.wg.Add(1)
			go p.work()
			return true
		}
	}
}

func (p *Pool) work() {
	defer p.wg.Done()

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				p.workers.Add(-1)
				return
			}
			p.busy.Add(1)
			err := p.run(j)
			p.busy.Add(-1)

			if j.done != nil {
				j.done <- err
			}
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			idle.Reset(p.cfg.IdleTimeout)

		case <-idle.C:
			if p.retire() {
				return
			}
			idle.Reset(p.cfg.IdleTimeout)
		}
	}
}

// retire gives up an idle worker's slot unless it is the last one.
func (p *Pool) retire() bool {
	for {
		n := p.workers.Load()
		if n <= 1 {
			return false
		}
		if p.workers.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (p *Pool) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.cfg.OnPanic != nil {
				p.cfg.OnPanic(r)
			}
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return j.task(j.ctx)
}

// Close refuses new tasks, runs the queued ones and waits for every
// worker to exit. Repeated calls return immediately.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// =============================================================================
// Stats
// =============================================================================

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int { return len(p.queue) }

// Busy returns the number of workers running a task.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

type Stats struct {
	Workers   int   `json:"workers"`
	Busy      int   `json:"busy"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Busy:      p.Busy(),
		Queued:    p.Queued(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

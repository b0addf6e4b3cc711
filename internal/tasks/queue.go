package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls worker count and buffering.
type Config struct {
	Workers     int
	BufferSize  int
	DropIfFull  bool
	TaskTimeout time.Duration
}

// Task is a named unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// ErrorHandler receives failed task results. It runs on a worker goroutine.
type ErrorHandler func(name string, err error)

// Queue executes tasks on background workers.
type Queue struct {
	cfg       Config
	onError   ErrorHandler
	ch        chan Task
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	completed atomic.Uint64

	// intake is held shared by Submit and exclusively by Close, so no
	// task can land in ch after the workers have drained it.
	intake sync.RWMutex
	closed bool
}

// New starts a queue with cfg.Workers goroutines.
func New(cfg Config, onError ErrorHandler) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if onError == nil {
		onError = func(string, error) {}
	}

	q := &Queue{
		cfg:     cfg,
		onError: onError,
		ch:      make(chan Task, cfg.BufferSize),
	}

	q.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go q.run()
	}

	return q
}

func (q *Queue) run() {
	defer q.wg.Done()

	for task := range q.ch {
		q.execute(task)
	}
}

func (q *Queue) execute(task Task) {
	if task.Run == nil {
		return
	}

	ctx := context.Background()
	if q.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.TaskTimeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		return task.Run(ctx)
	}()
	if err != nil {
		q.onError(task.Name, err)
	}
	q.completed.Add(1)
}

// Submit enqueues task. It reports false when the task was not accepted
// (queue closed, buffer full with DropIfFull, or ctx done). A true result
// guarantees the task runs before Close returns.
func (q *Queue) Submit(ctx context.Context, task Task) bool {
	if q == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.intake.RLock()
	defer q.intake.RUnlock()
	if q.closed {
		return false
	}

	if q.cfg.DropIfFull {
		select {
		case q.ch <- task:
			return true
		default:
			q.dropped.Add(1)
			return false
		}
	}

	select {
	case q.ch <- task:
		return true
	case <-ctx.Done():
		q.dropped.Add(1)
		return false
	}
}

// Close stops intake, drains queued tasks and waits for workers to exit.
// Submit calls blocked on a full buffer finish before intake closes.
func (q *Queue) Close() {
	if q == nil {
		return
	}
	q.intake.Lock()
	if q.closed {
		q.intake.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.intake.Unlock()

	q.wg.Wait()
}

// Dropped reports tasks that were rejected at submission.
func (q *Queue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}

// Completed reports tasks that finished running, successfully or not.
func (q *Queue) Completed() uint64 {
	if q == nil {
		return 0
	}
	return q.completed.Load()
}

package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPoolStopped = errors.New("worker pool is stopped")
	ErrPoolFull    = errors.New("worker pool task queue is full")
)

type Task func()

type PoolStats struct {
	ActiveWorkers int `json:"active_workers"`
	MaxWorkers    int `json:"max_workers"`
	QueueLength   int `json:"queue_length"`
	QueueCapacity int `json:"queue_capacity"`
}

type WorkerPool struct {
	tasks      chan Task
	wg         sync.WaitGroup
	active     atomic.Int32
	maxWorkers int
	submitWait time.Duration
	logger     zerolog.Logger

	mu        sync.RWMutex
	stopped   bool
	startOnce sync.Once
}

func NewWorkerPool(maxWorkers int, logger zerolog.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		tasks:      make(chan Task, maxWorkers*10),
		maxWorkers: maxWorkers,
		submitWait: time.Second,
		logger:     logger,
	}
}

func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		wp.logger.Info().Int("max_workers", wp.maxWorkers).Msg("Starting worker pool")

		for i := 0; i < wp.maxWorkers; i++ {
			wp.wg.Add(1)
			go wp.worker(i)
		}
	})
}

// Stop closes the queue and waits for queued and running tasks to finish.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.logger.Info().Msg("Worker pool stopped")
}

// Submit queues a task, waiting briefly when the queue is full.
func (wp *WorkerPool) Submit(task Task) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.tasks <- task:
		return nil
	default:
	}

	wp.logger.Warn().Msg("Worker pool task queue is full")
	select {
	case wp.tasks <- task:
		return nil
	case <-time.After(wp.submitWait):
		return ErrPoolFull
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug().Int("worker_id", id).Msg("Worker started")

	for task := range wp.tasks {
		wp.run(id, task)
	}

	wp.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

func (wp *WorkerPool) run(id int, task Task) {
	wp.active.Add(1)
	defer func() {
		wp.active.Add(-1)
		if r := recover(); r != nil {
			wp.logger.Error().
				Int("worker_id", id).
				Interface("panic", r).
				Msg("Worker recovered from panic")
		}
	}()

	task()
}

func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		ActiveWorkers: int(wp.active.Load()),
		MaxWorkers:    wp.maxWorkers,
		QueueLength:   len(wp.tasks),
		QueueCapacity: cap(wp.tasks),
	}
}

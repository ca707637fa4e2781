package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
)

// Worker processes tasks from the task queue.
// reconcile_all fans out to one reconcile_repo task per tracked repository;
// reconcile_repo reconciles the repository and notifies its subscribers.
type Worker struct {
	taskQueue      driven.TaskQueue
	notifications  driving.NotificationService
	scheduler      driving.Scheduler
	startScheduler bool
	logger         *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue     driven.TaskQueue
	Notifications driving.NotificationService
	// Scheduler fans reconcile_all out into per-repository tasks.
	Scheduler driving.Scheduler
	// StartScheduler also runs the scheduler's periodic loop with the worker.
	StartScheduler bool
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		notifications:  cfg.Notifications,
		scheduler:      cfg.Scheduler,
		startScheduler: cfg.StartScheduler,
		logger:         logger.With("component", "worker"),
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
		"scheduler", w.startScheduler,
	)

	if w.startScheduler && w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.startScheduler && w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Debug("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task and acks or nacks it.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type)
	if repoID := task.RepoID(); repoID != "" {
		logger = logger.With("repo_id", repoID)
	}
	logger.Debug("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeReconcileRepo:
		err = w.handleReconcileRepo(ctx, task, logger)
	case domain.TaskTypeReconcileAll:
		err = w.handleReconcileAll(ctx)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil && retryable(err) {
		logger.Error("task failed", "duration", duration, "error", err)

		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	switch {
	case errors.Is(err, domain.ErrReconcileInProgress):
		logger.Info("repository already being reconciled, dropping task")
	case err != nil:
		logger.Warn("task dropped", "duration", duration, "error", err)
	default:
		logger.Info("task completed", "duration", duration)
	}

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleReconcileRepo handles a reconcile_repo task.
func (w *Worker) handleReconcileRepo(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	repoID := task.RepoID()
	if repoID == "" {
		return fmt.Errorf("%w: repo_id not found in task payload", domain.ErrInvalidInput)
	}

	result, err := w.notifications.HandleRepo(ctx, repoID)
	if err != nil {
		return err
	}

	if !result.Skipped {
		logger.Info("repository handled",
			"added", len(result.Added),
			"removed", len(result.Removed),
			"notified", result.Notified,
			"failed", result.Failed,
		)
	}
	return nil
}

// handleReconcileAll handles a reconcile_all task.
func (w *Worker) handleReconcileAll(ctx context.Context) error {
	if w.scheduler == nil {
		return errors.New("no scheduler configured for reconcile_all")
	}
	_, err := w.scheduler.EnqueueTracked(ctx)
	return err
}

// retryable reports whether a failed task should go back to the queue.
// Upstream and store failures are transient. A held reconcile lock means
// another worker owns the repository, and a vanished or malformed
// repository will not heal on retry.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrReconcileInProgress),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidRepoURL),
		errors.Is(err, domain.ErrInvalidInput):
		return false
	}
	return true
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
)

var _ driving.Scheduler = (*Scheduler)(nil)

const schedulerLockName = "scheduler"

// Scheduler queues a reconcile_all task every poll interval. Workers turn
// that task into one reconcile_repo task per tracked repository.
//
// For multi-worker deployments, configure a DistributedLock to prevent
// duplicate cycles across instances. Duplicates are harmless anyway: the
// reconciler's throttle skips repositories reconciled moments ago.
type Scheduler struct {
	registry  driven.Registry
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	lockTTL      time.Duration
	lockRequired bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Registry     driven.Registry
	TaskQueue    driven.TaskQueue
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger       *slog.Logger
	PollInterval time.Duration // How often to queue a cycle (default: 10m)
	LockTTL      time.Duration // TTL for the distributed lock (default: 60s)
	LockRequired bool          // If true, skip the cycle when the lock backend errors
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = DefaultMinInterval
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 60 * time.Second
	}

	return &Scheduler{
		registry:     cfg.Registry,
		taskQueue:    cfg.TaskQueue,
		lock:         cfg.Lock,
		logger:       logger.With("component", "scheduler"),
		interval:     interval,
		lockTTL:      lockTTL,
		lockRequired: cfg.LockRequired,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "poll_interval", s.interval)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick enqueues one reconcile_all task under the scheduler lock.
func (s *Scheduler) tick(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, schedulerLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			if s.lockRequired {
				return
			}
		} else if !acquired {
			s.logger.Debug("scheduler lock held by another instance, skipping cycle")
			return
		} else {
			defer func() {
				if err := s.lock.Release(ctx, schedulerLockName); err != nil {
					s.logger.Warn("failed to release scheduler lock", "error", err)
				}
			}()
		}
	}

	task, err := s.TriggerNow(ctx)
	if err != nil {
		s.logger.Error("failed to enqueue reconcile cycle", "error", err)
		return
	}
	s.logger.Debug("enqueued reconcile cycle", "task_id", task.ID)
}

// TriggerNow enqueues a reconcile_all task immediately.
func (s *Scheduler) TriggerNow(ctx context.Context) (*domain.Task, error) {
	task := domain.NewReconcileAllTask()
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return task, nil
}

// EnqueueTracked queues one reconcile_repo task per tracked repository.
func (s *Scheduler) EnqueueTracked(ctx context.Context) (int, error) {
	repos, err := s.registry.ListTrackedRepos(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tracked repos: %w", err)
	}
	if len(repos) == 0 {
		return 0, nil
	}

	tasks := make([]*domain.Task, 0, len(repos))
	for _, repo := range repos {
		tasks = append(tasks, domain.NewReconcileRepoTask(repo.ID))
	}
	if err := s.taskQueue.EnqueueBatch(ctx, tasks); err != nil {
		return 0, fmt.Errorf("enqueue reconcile tasks: %w", err)
	}

	s.logger.Info("queued repositories for reconciliation", "count", len(tasks))
	return len(tasks), nil
}

// EnqueueRepo queues a reconcile_repo task for a known repository.
func (s *Scheduler) EnqueueRepo(ctx context.Context, repoID string) (*domain.Task, error) {
	if _, err := s.registry.GetRepo(ctx, repoID); err != nil {
		return nil, err
	}
	task := domain.NewReconcileRepoTask(repoID)
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return task, nil
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven/mocks"
)

func newTestScheduler(interval time.Duration) (*Scheduler, *mocks.MockRegistry, *mocks.MockTaskQueue, *mocks.MockDistributedLock) {
	registry := mocks.NewMockRegistry()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()

	s := NewScheduler(SchedulerConfig{
		Registry:     registry,
		TaskQueue:    queue,
		Lock:         lock,
		PollInterval: interval,
	})
	return s, registry, queue, lock
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	if s.interval != DefaultMinInterval {
		t.Errorf("expected default interval %v, got %v", DefaultMinInterval, s.interval)
	}
	if s.lockTTL != 60*time.Second {
		t.Errorf("expected default lock TTL 60s, got %v", s.lockTTL)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, _, queue, _ := newTestScheduler(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		t.Error("expected scheduler to be running")
	}

	// Start again should be no-op
	if err := s.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	s.Stop()

	s.mu.RLock()
	running = s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped")
	}

	// Stop again should be no-op
	s.Stop()

	// The first cycle runs immediately on start
	tasks := queue.Tasks()
	if len(tasks) != 1 || tasks[0].Type != domain.TaskTypeReconcileAll {
		t.Errorf("expected one reconcile_all task, got %v", tasks)
	}
}

func TestScheduler_Tick_LockHeldElsewhere(t *testing.T) {
	s, _, queue, lock := newTestScheduler(time.Hour)
	lock.SetLockHeld(schedulerLockName, time.Minute)

	s.tick(context.Background())

	if n := len(queue.Tasks()); n != 0 {
		t.Errorf("expected no tasks while another instance holds the lock, got %d", n)
	}
}

func TestScheduler_Tick_ReleasesLock(t *testing.T) {
	s, _, queue, lock := newTestScheduler(time.Hour)

	s.tick(context.Background())

	if len(queue.Tasks()) != 1 {
		t.Fatalf("expected 1 task, got %d", len(queue.Tasks()))
	}
	if lock.IsHeld(schedulerLockName) {
		t.Error("expected scheduler lock to be released")
	}
}

func TestScheduler_Tick_LockErrors(t *testing.T) {
	for _, required := range []bool{true, false} {
		s, _, queue, lock := newTestScheduler(time.Hour)
		s.lockRequired = required
		lock.AcquireFn = func(string, time.Duration) (bool, error) {
			return false, errors.New("redis down")
		}

		s.tick(context.Background())

		want := 1
		if required {
			want = 0
		}
		if got := len(queue.Tasks()); got != want {
			t.Errorf("lockRequired=%v: expected %d tasks, got %d", required, want, got)
		}
	}
}

func TestScheduler_EnqueueTracked(t *testing.T) {
	s, registry, queue, _ := newTestScheduler(time.Hour)
	registry.AddRepo("r1", "https://github.com/a/one")
	registry.AddRepo("r2", "https://github.com/a/two")
	registry.AddRepo("r3", "https://github.com/a/untracked")
	registry.Subscribe("tg:1", "r1")
	registry.Subscribe("tg:2", "r2")

	n, err := s.EnqueueTracked(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 tasks, got %d", n)
	}

	got := map[string]bool{}
	for _, task := range queue.Tasks() {
		if task.Type != domain.TaskTypeReconcileRepo {
			t.Errorf("unexpected task type %s", task.Type)
		}
		got[task.RepoID()] = true
	}
	if !got["r1"] || !got["r2"] || got["r3"] {
		t.Errorf("unexpected repos queued: %v", got)
	}
}

func TestScheduler_EnqueueTracked_QueueError(t *testing.T) {
	s, registry, queue, _ := newTestScheduler(time.Hour)
	registry.AddRepo("r1", "https://github.com/a/one")
	registry.Subscribe("tg:1", "r1")
	queue.EnqueueFn = func(*domain.Task) error { return errors.New("queue unavailable") }

	if _, err := s.EnqueueTracked(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestScheduler_EnqueueRepo(t *testing.T) {
	s, registry, queue, _ := newTestScheduler(time.Hour)
	registry.AddRepo("r1", "https://github.com/a/one")

	task, err := s.EnqueueRepo(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.RepoID() != "r1" {
		t.Errorf("expected repo r1, got %q", task.RepoID())
	}
	if len(queue.Tasks()) != 1 {
		t.Errorf("expected 1 queued task, got %d", len(queue.Tasks()))
	}

	if _, err := s.EnqueueRepo(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s, _, _, _ := newTestScheduler(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	time.Sleep(200 * time.Millisecond)

	s.Stop()

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped after context cancellation")
	}
}

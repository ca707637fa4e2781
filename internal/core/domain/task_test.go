package domain

import (
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" || id2 == "" {
		t.Fatal("expected non-empty IDs")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	// Canonical UUID string
	if len(id1) != 36 {
		t.Errorf("expected ID length 36, got %d", len(id1))
	}
}

func TestNewTask(t *testing.T) {
	payload := map[string]string{"key": "value"}

	task := NewTask(TaskTypeReconcileRepo, payload)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeReconcileRepo {
		t.Errorf("expected type %s, got %s", TaskTypeReconcileRepo, task.Type)
	}
	if task.Payload["key"] != "value" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", task.Attempts)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.CreatedAt.IsZero() || task.ScheduledFor.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestNewReconcileRepoTask(t *testing.T) {
	task := NewReconcileRepoTask("repo-1")

	if task.Type != TaskTypeReconcileRepo {
		t.Errorf("expected type %s, got %s", TaskTypeReconcileRepo, task.Type)
	}
	if task.RepoID() != "repo-1" {
		t.Errorf("expected repo_id repo-1, got %q", task.RepoID())
	}
}

func TestNewReconcileAllTask(t *testing.T) {
	task := NewReconcileAllTask()

	if task.Type != TaskTypeReconcileAll {
		t.Errorf("expected type %s, got %s", TaskTypeReconcileAll, task.Type)
	}
	if task.RepoID() != "" {
		t.Errorf("expected empty repo_id, got %q", task.RepoID())
	}
	if task.MaxAttempts != 1 {
		t.Errorf("expected max attempts 1, got %d", task.MaxAttempts)
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewReconcileRepoTask("repo-1")

	if !task.IsReady() {
		t.Error("new task should be ready")
	}

	task.MarkProcessing()
	if task.Status != TaskStatusProcessing {
		t.Errorf("expected processing, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", task.Attempts)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}
	if task.IsReady() {
		t.Error("processing task should not be ready")
	}

	task.MarkCompleted()
	if task.Status != TaskStatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestTask_Retry(t *testing.T) {
	task := NewReconcileRepoTask("repo-1")
	task.MarkProcessing()

	before := time.Now()
	task.Retry("upstream error")

	if task.Status != TaskStatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.Error != "upstream error" {
		t.Errorf("expected error message, got %q", task.Error)
	}
	if !task.ScheduledFor.After(before) {
		t.Error("expected retry to be delayed")
	}
	if !task.CanRetry() {
		t.Error("expected task to be retryable after one attempt")
	}
}

func TestTask_Retry_BackoffCap(t *testing.T) {
	task := NewReconcileRepoTask("repo-1")
	task.Attempts = 20

	task.Retry("boom")

	if wait := time.Until(task.ScheduledFor); wait > 5*time.Minute {
		t.Errorf("expected backoff capped at 5m, got %v", wait)
	}
}

func TestTask_MarkFailed(t *testing.T) {
	task := NewReconcileRepoTask("repo-1")
	task.Attempts = 3

	task.MarkFailed("gave up")

	if task.Status != TaskStatusFailed {
		t.Errorf("expected failed, got %s", task.Status)
	}
	if task.CanRetry() {
		t.Error("expected no retries left")
	}
}

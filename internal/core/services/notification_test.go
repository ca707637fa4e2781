package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven/mocks"
)

func newTestNotificationService(t *testing.T) (*NotificationService, *reconcilerFixture, *mocks.MockNotifier) {
	t.Helper()
	f := newReconcilerFixture(t, 2)
	notifier := mocks.NewMockNotifier()
	svc := NewNotificationService(NotificationServiceConfig{
		Reconciler: f.reconciler,
		Notifier:   notifier,
	})
	return svc, f, notifier
}

func TestNotificationService_HandleRepo_Notifies(t *testing.T) {
	svc, f, notifier := newTestNotificationService(t)
	f.registry.Subscribe("email:a@example.com", testRepoID)
	f.seed(stars(1, 2))
	f.source.SetItems(stars(2, 3))

	result, err := svc.HandleRepo(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Notified != 2 || result.Failed != 0 {
		t.Errorf("expected 2 notified, got %d notified %d failed", result.Notified, result.Failed)
	}

	msgs := notifier.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	want := "Repo: https://github.com/octo/stars\n\nNew subscribers: login3\nRemoved subscribers: login1"
	for _, msg := range msgs {
		if msg.Text != want {
			t.Errorf("unexpected message to %s: %q", msg.Handle, msg.Text)
		}
	}
}

func TestNotificationService_HandleRepo_FirstSyncSilent(t *testing.T) {
	svc, f, notifier := newTestNotificationService(t)
	f.source.SetItems(stars(1, 2, 3))

	result, err := svc.HandleRepo(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsFirstSync {
		t.Error("expected first sync")
	}
	if len(notifier.Messages()) != 0 {
		t.Error("first sync must not notify")
	}
}

func TestNotificationService_HandleRepo_DeliveryFailureDoesNotFail(t *testing.T) {
	svc, f, notifier := newTestNotificationService(t)
	f.registry.Subscribe("tg:2", testRepoID)
	f.seed(stars(1))
	f.source.SetItems(stars(1, 2))

	notifier.NotifyFn = func(handle, text string) error {
		if handle == "tg:1" {
			return errors.New("chat not found")
		}
		return nil
	}

	result, err := svc.HandleRepo(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Notified != 1 || result.Failed != 1 {
		t.Errorf("expected 1 notified 1 failed, got %d/%d", result.Notified, result.Failed)
	}
	if !strings.Contains(notifier.Messages()[0].Text, "login2") {
		t.Error("expected message to name the new stargazer")
	}
	if f.snapshots.ReplaceCalls != 1 {
		t.Error("snapshot should be persisted regardless of delivery")
	}
}

func TestNotificationService_HandleRepo_ReconcileError(t *testing.T) {
	svc, f, notifier := newTestNotificationService(t)
	f.seed(stars(1))
	f.source.TotalCountFn = func(domain.RepoRef) (int, error) {
		return 0, errors.New("timeout")
	}

	_, err := svc.HandleRepo(context.Background(), testRepoID)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if len(notifier.Messages()) != 0 {
		t.Error("expected no messages")
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"task-tracker/internal/model"
)

type stubDueLister struct {
	tasks    []model.Task
	from, to time.Time
}

func (s *stubDueLister) ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	s.from, s.to = from, to
	return s.tasks, nil
}

func TestSendDueSoonGroupsByRecipient(t *testing.T) {
	now := time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)
	lister := &stubDueLister{tasks: []model.Task{
		{Title: "later", NotificationEmail: "Alice@x.com", Status: model.StatusPending, EndDate: now.Add(30 * time.Hour)},
		{Title: "sooner", NotificationEmail: "alice@x.com", Status: model.StatusInProgress, EndDate: now.Add(2 * time.Hour)},
		{Title: "bob's", NotificationEmail: "bob@x.com", Status: model.StatusOnHold, EndDate: now.Add(time.Hour)},
		{Title: "done", NotificationEmail: "bob@x.com", Status: model.StatusCompleted, EndDate: now.Add(time.Hour)},
	}}
	notifier := &recordingNotifier{}
	logger, _ := test.NewNullLogger()
	svc := NewReminderService(lister, notifier, logger, 48*time.Hour)
	svc.now = func() time.Time { return now }

	sent, err := svc.SendDueSoon(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 digests, got %d", sent)
	}
	if !lister.from.Equal(now) || !lister.to.Equal(now.Add(48*time.Hour)) {
		t.Fatalf("unexpected window %v - %v", lister.from, lister.to)
	}
	alice := notifier.due["alice@x.com"]
	if len(alice) != 2 || alice[0].Title != "sooner" || alice[1].Title != "later" {
		t.Fatalf("unexpected alice digest %+v", alice)
	}
	if bob := notifier.due["bob@x.com"]; len(bob) != 1 || bob[0].Title != "bob's" {
		t.Fatalf("unexpected bob digest %+v", bob)
	}
}

func TestSendDueSoonReportsFailures(t *testing.T) {
	now := time.Now().UTC()
	lister := &stubDueLister{tasks: []model.Task{
		{Title: "a", NotificationEmail: "alice@x.com", Status: model.StatusPending, EndDate: now.Add(time.Hour)},
	}}
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	logger, hook := test.NewNullLogger()
	svc := NewReminderService(lister, notifier, logger, time.Hour*2)

	sent, err := svc.SendDueSoon(context.Background())
	if err == nil || sent != 0 {
		t.Fatalf("expected failure, got sent=%d err=%v", sent, err)
	}
	if hook.LastEntry() == nil {
		t.Fatal("expected log entries")
	}
}

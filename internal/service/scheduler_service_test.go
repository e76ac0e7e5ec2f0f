package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestBuildDailySpec(t *testing.T) {
	got, err := buildDailySpec("09:30")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got != "0 30 9 * * *" {
		t.Fatalf("unexpected spec %q", got)
	}
	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "1:2:3"} {
		if _, err := buildDailySpec(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestScheduledJobFailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewSchedulerService(time.UTC, logger, time.Second)

	if _, err := s.ScheduleDaily("07:00", "reminders", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected job context with deadline")
		}
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	entries := s.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entries[0].WrappedJob.Run()

	last := hook.LastEntry()
	if last == nil || last.Message != "job.failed" || last.Data["job"] != "reminders" {
		t.Fatalf("unexpected log entry %+v", last)
	}
}

func TestSchedulerStopReturns(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSchedulerService(time.UTC, logger, time.Second)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"task-tracker/internal/model"
	"task-tracker/internal/notify"
)

// DueLister finds unfinished tasks by end date.
type DueLister interface {
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Task, error)
}

// ReminderService sends digests of tasks that are about to run out.
type ReminderService struct {
	tasks    DueLister
	notifier notify.Notifier
	logger   *log.Logger
	window   time.Duration
	now      func() time.Time
}

func NewReminderService(tasks DueLister, notifier notify.Notifier, logger *log.Logger, window time.Duration) *ReminderService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if notifier == nil {
		notifier = notify.Discard{Logger: logger}
	}
	if window <= 0 {
		window = 48 * time.Hour
	}
	return &ReminderService{tasks: tasks, notifier: notifier, logger: logger, window: window, now: time.Now}
}

// SendDueSoon sends one digest per notification address covering every
// unfinished task that ends within the reminder window. It returns the
// number of digests delivered.
func (s *ReminderService) SendDueSoon(ctx context.Context) (int, error) {
	now := s.now().UTC()
	tasks, err := s.tasks.ListEndingBetween(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, err
	}

	groups := DueSoonDigests(tasks)
	recipients := make([]string, 0, len(groups))
	for r := range groups {
		recipients = append(recipients, r)
	}
	sort.Strings(recipients)

	var (
		sent int
		errs []error
	)
	for _, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.notifier.DueSoon(ctx, recipient, groups[recipient]); err != nil {
			s.logger.WithError(err).WithField("to", recipient).Warn("reminder.failed")
			errs = append(errs, fmt.Errorf("remind %s: %w", recipient, err))
			continue
		}
		sent++
	}
	s.logger.WithFields(log.Fields{"tasks": len(tasks), "digests": sent}).Info("reminder.sent")
	return sent, errors.Join(errs...)
}

// DueSoonDigests groups tasks by notification address, each group ordered
// by end date.
func DueSoonDigests(tasks []model.Task) map[string][]notify.DueTask {
	groups := make(map[string][]notify.DueTask)
	for _, t := range tasks {
		if t.Status == model.StatusCompleted {
			continue
		}
		to := strings.ToLower(strings.TrimSpace(t.NotificationEmail))
		if to == "" {
			continue
		}
		groups[to] = append(groups[to], notify.DueTask{
			Title:    strings.TrimSpace(t.Title),
			Priority: string(t.Priority),
			Status:   string(t.Status),
			EndDate:  t.EndDate,
		})
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].EndDate.Before(g[j].EndDate) })
	}
	return groups
}

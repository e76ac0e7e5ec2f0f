// Package notify renders and delivers task notifications. Delivery is best
// effort: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// TaskCreated is the content of a task creation notice.
type TaskCreated struct {
	Recipient       string
	Title           string
	Description     string
	Priority        string
	Type            string
	StartDate       time.Time
	EndDate         time.Time
	Assignees       []string
	Tags            []string
	AttachmentCount int
}

// DueTask is one line of a due-soon digest.
type DueTask struct {
	Title    string
	Priority string
	Status   string
	EndDate  time.Time
}

// Notifier delivers notifications through one channel.
type Notifier interface {
	TaskCreated(ctx context.Context, n TaskCreated) error
	DueSoon(ctx context.Context, recipient string, tasks []DueTask) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) TaskCreated(ctx context.Context, n TaskCreated) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.TaskCreated(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) DueSoon(ctx context.Context, recipient string, tasks []DueTask) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.DueSoon(ctx, recipient, tasks); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops notifications. It is used when no channel is configured.
type Discard struct {
	Logger *log.Logger
}

func (d Discard) TaskCreated(ctx context.Context, n TaskCreated) error {
	d.logger().WithFields(log.Fields{"to": n.Recipient, "title": n.Title}).Debug("notify.discard.task_created")
	return nil
}

func (d Discard) DueSoon(ctx context.Context, recipient string, tasks []DueTask) error {
	d.logger().WithFields(log.Fields{"to": recipient, "tasks": len(tasks)}).Debug("notify.discard.due_soon")
	return nil
}

func (d Discard) logger() *log.Logger {
	if d.Logger == nil {
		return log.StandardLogger()
	}
	return d.Logger
}

const dateLayout = "2006-01-02"

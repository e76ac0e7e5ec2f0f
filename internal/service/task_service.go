package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"task-tracker/internal/apperr"
	"task-tracker/internal/blob"
	"task-tracker/internal/model"
	"task-tracker/internal/notify"
	"task-tracker/internal/repository"
)

const tracerName = "task-tracker/service"

// TaskStore persists tasks.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Get(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error)
	Replace(ctx context.Context, task *model.Task) error
	Remove(ctx context.Context, id string) (*model.Task, error)
}

// TaskOptions tunes TaskService.
type TaskOptions struct {
	BaseURL       string
	NotifyTimeout time.Duration
}

// CreateResult is the outcome of a successful task creation.
type CreateResult struct {
	Task          *model.Task
	FilesUploaded int
}

// TaskService runs the task lifecycle: validation, attachment storage,
// persistence and creation notices.
type TaskService struct {
	tasks    TaskStore
	files    blob.Store
	notifier notify.Notifier
	logger   *log.Logger
	opts     TaskOptions
	now      func() time.Time

	inflight sync.WaitGroup
}

func NewTaskService(tasks TaskStore, files blob.Store, notifier notify.Notifier, logger *log.Logger, opts TaskOptions) *TaskService {
	if notifier == nil {
		notifier = notify.Discard{Logger: logger}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	return &TaskService{
		tasks:    tasks,
		files:    files,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// CreateTask validates in, stores its files, persists the task and sends a
// creation notice without waiting for it.
func (s *TaskService) CreateTask(ctx context.Context, in TaskInput) (res *CreateResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "task.create",
		trace.WithAttributes(attribute.Int("task.files", len(in.Files))))
	defer func() { endSpan(span, err) }()

	if missing(in.Title) || missing(in.Description) || missing(in.Type) || missing(in.Priority) ||
		missing(in.StartDate) || missing(in.EndDate) || missing(in.NotificationEmail) || missing(in.CreatedBy) {
		return nil, apperr.New(apperr.Validation,
			"required fields: title, description, type, priority, startDate, endDate, notificationEmail, createdBy")
	}

	task := &model.Task{
		Status:      model.StatusPending,
		Color:       model.DefaultColor,
		AssignedTo:  []model.Assignee{},
		Attachments: []model.Attachment{},
		Comments:    []model.Comment{},
		Tags:        []string{},
	}
	if err := applyInput(task, in); err != nil {
		return nil, err
	}
	span.AddEvent("validated")

	stored, err := s.storeFiles(ctx, in.Files)
	if err != nil {
		return nil, err
	}
	task.Attachments = BindAttachments(stored, s.opts.BaseURL, s.now().UTC())
	span.AddEvent("attachments.bound", trace.WithAttributes(attribute.Int("task.attachments", len(stored))))

	if err := s.tasks.Create(ctx, task); err != nil {
		s.logOrphans(stored, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("task.id", task.ID))
	span.AddEvent("persisted")

	s.logger.WithFields(log.Fields{"task_id": task.ID, "files": len(stored)}).Info("task.created")
	s.dispatchCreated(ctx, task)

	return &CreateResult{Task: task, FilesUploaded: len(stored)}, nil
}

// UpdateTask replaces the supplied fields of an existing task. New files are
// appended to its attachments. An invalid update leaves the task untouched.
func (s *TaskService) UpdateTask(ctx context.Context, id string, in TaskInput) (task *model.Task, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "task.update",
		trace.WithAttributes(attribute.String("task.id", id), attribute.Int("task.files", len(in.Files))))
	defer func() { endSpan(span, err) }()

	current, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.Creator = nil
	updated.AssignedTo = stripRefs(current.AssignedTo)
	if err := applyInput(&updated, in); err != nil {
		return nil, err
	}
	span.AddEvent("validated")

	stored, err := s.storeFiles(ctx, in.Files)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		attachments := make([]model.Attachment, 0, len(current.Attachments)+len(stored))
		attachments = append(attachments, current.Attachments...)
		updated.Attachments = append(attachments, BindAttachments(stored, s.opts.BaseURL, s.now().UTC())...)
	}

	if err := s.tasks.Replace(ctx, &updated); err != nil {
		s.logOrphans(stored, err)
		return nil, err
	}
	span.AddEvent("persisted")
	s.logger.WithFields(log.Fields{"task_id": updated.ID, "files": len(stored)}).Info("task.updated")
	return &updated, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.tasks.Get(ctx, id)
}

func (s *TaskService) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	if filter.Status != "" {
		if _, ok := model.ParseStatus(filter.Status); !ok {
			return nil, apperr.New(apperr.Validation, "unknown status %q", filter.Status)
		}
	}
	return s.tasks.List(ctx, filter)
}

// DeleteTask removes a task and returns it. Attachment blobs are kept.
func (s *TaskService) DeleteTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.tasks.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("task_id", id).Info("task.deleted")
	return task, nil
}

// AddComment appends a comment by author to the task.
func (s *TaskService) AddComment(ctx context.Context, id string, author *model.User, text string) (*model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.Validation, "text is required")
	}
	current, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *current
	updated.Creator = nil
	updated.AssignedTo = stripRefs(current.AssignedTo)
	updated.Comments = append(append([]model.Comment{}, current.Comments...), model.Comment{
		UserID: author.ID,
		Name:   author.Username,
		Text:   text,
		Date:   s.now().UTC(),
	})
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.tasks.Replace(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Wait blocks until every in-flight notification has finished.
func (s *TaskService) Wait() {
	s.inflight.Wait()
}

func (s *TaskService) storeFiles(ctx context.Context, uploads []Upload) ([]StoredFile, error) {
	stored := make([]StoredFile, 0, len(uploads))
	for _, u := range uploads {
		obj, err := s.putUpload(ctx, u)
		if err != nil {
			s.logOrphans(stored, err)
			return nil, err
		}
		stored = append(stored, StoredFile{Object: obj, Name: u.Name, MimeType: u.MimeType})
	}
	return stored, nil
}

func (s *TaskService) putUpload(ctx context.Context, u Upload) (blob.Object, error) {
	rc, err := u.Open()
	if err != nil {
		return blob.Object{}, apperr.Wrap(err, apperr.BadRequest, fmt.Sprintf("cannot read file %q", u.Name))
	}
	defer rc.Close()
	obj, err := s.files.Put(ctx, rc, u.Name, u.MimeType)
	if err != nil {
		return blob.Object{}, fmt.Errorf("store %q: %w", u.Name, err)
	}
	return obj, nil
}

// logOrphans records blobs left behind by a failed request. They are not reclaimed.
func (s *TaskService) logOrphans(stored []StoredFile, cause error) {
	if len(stored) == 0 {
		return
	}
	keys := make([]string, len(stored))
	for i, f := range stored {
		keys[i] = f.Object.Key
	}
	s.logger.WithError(cause).WithField("keys", keys).Warn("task.attachments.orphaned")
}

func (s *TaskService) dispatchCreated(ctx context.Context, task *model.Task) {
	n := notify.TaskCreated{
		Recipient:       task.NotificationEmail,
		Title:           task.Title,
		Description:     task.Description,
		Priority:        string(task.Priority),
		Type:            task.Type,
		StartDate:       task.StartDate,
		EndDate:         task.EndDate,
		Tags:            append([]string(nil), task.Tags...),
		AttachmentCount: len(task.Attachments),
	}
	for _, a := range task.AssignedTo {
		n.Assignees = append(n.Assignees, a.Name)
	}

	detached := context.WithoutCancel(ctx)
	fields := log.Fields{"task_id": task.ID, "to": n.Recipient}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields(fields).Errorf("task.notify.panic: %v", r)
			}
		}()
		notifyCtx, cancel := context.WithTimeout(detached, s.opts.NotifyTimeout)
		defer cancel()
		if err := s.notifier.TaskCreated(notifyCtx, n); err != nil {
			s.logger.WithFields(fields).WithError(err).Warn("task.notify.failed")
			return
		}
		s.logger.WithFields(fields).Info("task.notify.sent")
	}()
}

// applyInput copies supplied fields of in onto t and validates the result.
func applyInput(t *model.Task, in TaskInput) error {
	if len(in.Files) > MaxTaskFiles {
		return apperr.New(apperr.Validation, "too many files, maximum %d files allowed", MaxTaskFiles)
	}
	if in.Title != nil {
		t.Title = value(in.Title)
	}
	if in.Description != nil {
		t.Description = value(in.Description)
	}
	if in.Type != nil {
		t.Type = value(in.Type)
	}
	if in.Priority != nil {
		p, ok := model.ParsePriority(value(in.Priority))
		if !ok {
			return apperr.New(apperr.Validation, "priority must be one of High, Medium, Low")
		}
		t.Priority = p
	}
	if in.Status != nil {
		st, ok := model.ParseStatus(value(in.Status))
		if !ok {
			return apperr.New(apperr.Validation, "status must be one of Pending, In Progress, Completed, On Hold")
		}
		t.Status = st
	}
	if in.Color != nil {
		t.Color = value(in.Color)
		if t.Color == "" {
			t.Color = model.DefaultColor
		}
	}
	if in.StartDate != nil {
		d, ok := model.ParseDate(value(in.StartDate))
		if !ok {
			return apperr.New(apperr.Validation, "invalid date format")
		}
		t.StartDate = d
	}
	if in.EndDate != nil {
		d, ok := model.ParseDate(value(in.EndDate))
		if !ok {
			return apperr.New(apperr.Validation, "invalid date format")
		}
		t.EndDate = d
	}
	if in.NotificationEmail != nil {
		t.NotificationEmail = value(in.NotificationEmail)
	}
	if in.CreatedBy != nil {
		t.CreatedBy = value(in.CreatedBy)
	}
	if in.ProjectID != nil {
		if p := value(in.ProjectID); p != "" {
			t.ProjectID = &p
		} else {
			t.ProjectID = nil
		}
	}
	if in.Tags != nil {
		t.Tags = NormalizeTags(in.Tags)
	}
	if in.AssignedTo != nil {
		assignees, err := NormalizeAssignees(in.AssignedTo)
		if err != nil {
			return err
		}
		t.AssignedTo = assignees
	}
	return t.Validate()
}

func stripRefs(assignees []model.Assignee) []model.Assignee {
	out := make([]model.Assignee, len(assignees))
	for i, a := range assignees {
		a.User = nil
		out[i] = a
	}
	return out
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
	}
	span.End()
}

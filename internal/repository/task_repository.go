package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"task-tracker/internal/apperr"
	"task-tracker/internal/model"
)

// TaskFilter narrows List results. Empty fields are ignored.
type TaskFilter struct {
	ProjectID string
	Status    string
	Tag       string
	CreatedBy string
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

// Create inserts task and stamps its timestamps. The creator must exist.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = model.NewID()
	}
	now := r.now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.LastModified = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, task.CreatedBy); err != nil {
			return err
		}
		if err := tx.Create(task).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.Conflict, "task already exists")
			}
			return fmt.Errorf("create task: %w", err)
		}
		return replaceTags(tx, task.ID, task.Tags)
	})
	if err != nil {
		return err
	}
	return r.resolve(ctx, task)
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*model.Task, error) {
	if !model.ValidID(id) {
		return nil, apperr.New(apperr.BadRequest, "invalid task ID")
	}
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "task")
	}
	if err := r.resolve(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.ProjectID != "" {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.Tag != "" {
		q = q.Where("id IN (?)", r.db.Model(&model.TaskTag{}).Select("task_id").Where("tag = ?", filter.Tag))
	}

	var tasks []model.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	ptrs := make([]*model.Task, len(tasks))
	for i := range tasks {
		ptrs[i] = &tasks[i]
	}
	if err := r.resolve(ctx, ptrs...); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListEndingBetween returns unfinished tasks whose end date falls in [from, to].
func (r *TaskRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("status <> ? AND end_date >= ? AND end_date <= ?", model.StatusCompleted, from.UTC(), to.UTC()).
		Order("end_date ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks ending soon: %w", err)
	}
	return tasks, nil
}

// Replace overwrites every field of an existing task. lastModified is
// stamped server-side and never moves backwards.
func (r *TaskRepository) Replace(ctx context.Context, task *model.Task) error {
	if !model.ValidID(task.ID) {
		return apperr.New(apperr.BadRequest, "invalid task ID")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Task
		if err := tx.Select("id", "created_at", "last_modified").First(&current, "id = ?", task.ID).Error; err != nil {
			return notFound(err, "task")
		}
		if err := requireUser(tx, task.CreatedBy); err != nil {
			return err
		}

		stamp := r.now().UTC()
		if stamp.Before(current.LastModified) {
			stamp = current.LastModified
		}
		task.LastModified = stamp
		task.CreatedAt = current.CreatedAt

		res := tx.Model(&model.Task{}).Where("id = ?", task.ID).Select("*").Omit("id", "created_at").Updates(task)
		if res.Error != nil {
			return fmt.Errorf("replace task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return replaceTags(tx, task.ID, task.Tags)
	})
	if err != nil {
		return err
	}
	return r.resolve(ctx, task)
}

// Remove deletes a task and returns the deleted record.
func (r *TaskRepository) Remove(ctx context.Context, id string) (*model.Task, error) {
	if !model.ValidID(id) {
		return nil, apperr.New(apperr.BadRequest, "invalid task ID")
	}
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", id).Error; err != nil {
			return notFound(err, "task")
		}
		res := tx.Where("id = ?", id).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "task not found")
		}
		return tx.Where("task_id = ?", id).Delete(&model.TaskTag{}).Error
	})
	if err != nil {
		return nil, err
	}
	if err := r.resolve(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// resolve fills the creator and assignee projections and normalizes nil collections.
func (r *TaskRepository) resolve(ctx context.Context, tasks ...*model.Task) error {
	ids := make([]string, 0, len(tasks))
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, t := range tasks {
		add(t.CreatedBy)
		for _, a := range t.AssignedTo {
			add(a.UserID)
		}
	}

	users := make(map[string]model.User, len(ids))
	if len(ids) > 0 {
		var found []model.User
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
			return fmt.Errorf("resolve users: %w", err)
		}
		for _, u := range found {
			users[u.ID] = u
		}
	}

	for _, t := range tasks {
		normalizeCollections(t)
		if u, ok := users[t.CreatedBy]; ok {
			t.Creator = u.Ref()
		}
		for i := range t.AssignedTo {
			if u, ok := users[t.AssignedTo[i].UserID]; ok {
				t.AssignedTo[i].User = u.Ref()
			}
		}
	}
	return nil
}

func normalizeCollections(t *model.Task) {
	if t.AssignedTo == nil {
		t.AssignedTo = []model.Assignee{}
	}
	if t.Attachments == nil {
		t.Attachments = []model.Attachment{}
	}
	if t.Comments == nil {
		t.Comments = []model.Comment{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

func requireUser(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&model.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check creator: %w", err)
	}
	if count == 0 {
		return apperr.New(apperr.Validation, "createdBy does not reference an existing user")
	}
	return nil
}

func replaceTags(tx *gorm.DB, taskID string, tags []string) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&model.TaskTag{}).Error; err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	rows := make([]model.TaskTag, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		rows = append(rows, model.TaskTag{TaskID: taskID, Tag: tag})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("index tags: %w", err)
	}
	return nil
}

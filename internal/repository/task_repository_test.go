package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"task-tracker/internal/apperr"
	"task-tracker/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createUser(t *testing.T, repo *UserRepository, username, email string) *model.User {
	t.Helper()
	user := &model.User{Username: username, Email: email, PasswordHash: "hash"}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func newTask(createdBy string) *model.Task {
	return &model.Task{
		Title:             "Ship v1",
		Description:       "first release",
		Type:              "feature",
		Priority:          model.PriorityHigh,
		Color:             model.DefaultColor,
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Status:            model.StatusPending,
		NotificationEmail: "alice@x.com",
		CreatedBy:         createdBy,
		Tags:              []string{"release", "v1"},
	}
}

func TestTaskCreateThenGet(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice", "alice@x.com")
	bob := createUser(t, users, "bob", "bob@x.com")

	task := newTask(alice.ID)
	task.AssignedTo = []model.Assignee{{UserID: bob.ID, Name: "Bob", Email: "bob@x.com", Role: "dev"}}
	before := time.Now().UTC().Add(-time.Millisecond)

	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !model.ValidID(task.ID) {
		t.Fatalf("expected generated id, got %q", task.ID)
	}

	got, err := repo.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != task.Title || !got.StartDate.Equal(task.StartDate) || !got.EndDate.Equal(task.EndDate) {
		t.Fatalf("unexpected task %+v", got)
	}
	if got.LastModified.Before(before) {
		t.Fatalf("lastModified %v before create time %v", got.LastModified, before)
	}
	if got.Creator == nil || got.Creator.Username != "alice" {
		t.Fatalf("expected creator projection, got %+v", got.Creator)
	}
	if len(got.AssignedTo) != 1 || got.AssignedTo[0].User == nil || got.AssignedTo[0].User.Email != "bob@x.com" {
		t.Fatalf("expected assignee projection, got %+v", got.AssignedTo)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "release" {
		t.Fatalf("unexpected tags %v", got.Tags)
	}
	if got.Attachments == nil || got.Comments == nil {
		t.Fatal("expected empty collections to be non-nil")
	}
}

func TestTaskCreateRequiresExistingCreator(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)

	err := repo.Create(context.Background(), newTask(model.NewID()))
	if !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var count int64
	db.Model(&model.Task{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no task rows, got %d", count)
	}
}

func TestTaskGetMalformedAndMissingID(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "not-an-id"); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if _, err := repo.Get(ctx, model.NewID()); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTaskListFilters(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	alice := createUser(t, users, "alice", "alice@x.com")

	project := "proj-1"
	a := newTask(alice.ID)
	a.ProjectID = &project
	a.Tags = []string{"backend"}
	b := newTask(alice.ID)
	b.ProjectID = &project
	b.Status = model.StatusCompleted
	b.Tags = []string{"frontend"}
	c := newTask(alice.ID)
	c.Tags = []string{"backend", "urgent"}
	for _, task := range []*model.Task{a, b, c} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := repo.List(ctx, TaskFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d err=%v", len(all), err)
	}

	pending, err := repo.List(ctx, TaskFilter{ProjectID: project, Status: string(model.StatusPending)})
	if err != nil || len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("unexpected project/status result %v err=%v", pending, err)
	}

	backend, err := repo.List(ctx, TaskFilter{Tag: "backend"})
	if err != nil || len(backend) != 2 {
		t.Fatalf("expected 2 backend tasks, got %d err=%v", len(backend), err)
	}
}

func TestTaskReplaceStampsMonotonicLastModified(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	alice := createUser(t, users, "alice", "alice@x.com")

	task := newTask(alice.ID)
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	created := task.LastModified

	// A clock that runs backwards must not move lastModified backwards.
	repo.now = func() time.Time { return created.Add(-time.Hour) }
	task.Title = "Ship v1.1"
	task.Tags = []string{"hotfix"}
	if err := repo.Replace(ctx, task); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if task.LastModified.Before(created) {
		t.Fatalf("lastModified went backwards: %v < %v", task.LastModified, created)
	}

	got, err := repo.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Ship v1.1" || len(got.Tags) != 1 || got.Tags[0] != "hotfix" {
		t.Fatalf("unexpected replaced task %+v", got)
	}
	tagged, _ := repo.List(ctx, TaskFilter{Tag: "release"})
	if len(tagged) != 0 {
		t.Fatalf("expected old tag index to be cleared, got %d", len(tagged))
	}

	missing := newTask(alice.ID)
	missing.ID = model.NewID()
	if err := repo.Replace(ctx, missing); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTaskRemoveTwice(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	alice := createUser(t, users, "alice", "alice@x.com")

	task := newTask(alice.ID)
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := repo.Remove(ctx, task.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.ID != task.ID || removed.Title != task.Title {
		t.Fatalf("unexpected removed record %+v", removed)
	}
	if _, err := repo.Remove(ctx, task.ID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestTaskListEndingBetween(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	alice := createUser(t, users, "alice", "alice@x.com")

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	soon := newTask(alice.ID)
	soon.StartDate = now.Add(-24 * time.Hour)
	soon.EndDate = now.Add(24 * time.Hour)
	later := newTask(alice.ID)
	later.StartDate = now
	later.EndDate = now.Add(10 * 24 * time.Hour)
	done := newTask(alice.ID)
	done.StartDate = now.Add(-24 * time.Hour)
	done.EndDate = now.Add(12 * time.Hour)
	done.Status = model.StatusCompleted
	for _, task := range []*model.Task{soon, later, done} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tasks, err := repo.ListEndingBetween(ctx, now, now.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != soon.ID {
		t.Fatalf("expected only the unfinished task ending soon, got %+v", tasks)
	}
}

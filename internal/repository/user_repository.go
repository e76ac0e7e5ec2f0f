package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-tracker/internal/apperr"
	"task-tracker/internal/model"
)

// UserRepository handles CRUD for accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. Username and email clashes are reported as Conflict.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = model.NewID()
	}
	db := r.db.WithContext(ctx)
	if err := r.checkUnique(db, "", user.Username, user.Email); err != nil {
		return err
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.New(apperr.Conflict, "user already exists")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !model.ValidID(id) {
		return nil, apperr.New(apperr.BadRequest, "invalid user ID")
	}
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update replaces username, email and password hash of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	db := r.db.WithContext(ctx)
	if err := r.checkUnique(db, user.ID, user.Username, user.Email); err != nil {
		return err
	}
	res := db.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"username":      user.Username,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperr.New(apperr.Conflict, "user already exists")
		}
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "user not found")
	}
	return nil
}

// Delete removes a user. Tasks referencing the user are left untouched.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !model.ValidID(id) {
		return apperr.New(apperr.BadRequest, "invalid user ID")
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "user not found")
	}
	return nil
}

func (r *UserRepository) checkUnique(db *gorm.DB, excludeID, username, email string) error {
	var existing model.User
	q := db.Where("(email = ? OR username = ?)", email, username)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.First(&existing).Error
	switch {
	case err == nil:
		field := "username"
		if existing.Email == email {
			field = "email"
		}
		return apperr.New(apperr.Conflict, "user with this %s already exists", field)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("check user uniqueness: %w", err)
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.NotFound, "%s not found", what)
	}
	return fmt.Errorf("find %s: %w", what, err)
}

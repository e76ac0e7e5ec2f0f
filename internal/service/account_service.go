package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"task-tracker/internal/apperr"
	"task-tracker/internal/model"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
}

// Claims is the payload of an issued access token.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserUpdate carries the account fields to change. Nil fields are kept.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
}

// AccountService registers users and issues access tokens.
type AccountService struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

func NewAccountService(users UserStore, secret string, ttl time.Duration, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AccountService{users: users, secret: []byte(secret), ttl: ttl, logger: logger, now: time.Now}
}

func (s *AccountService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, apperr.New(apperr.Validation, "username, email and password are required")
	}
	if !model.IsEmail(email) {
		return nil, apperr.New(apperr.Validation, "email is not a valid email address")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"user_id": user.ID, "username": username}).Info("user.registered")
	return user, nil
}

// Login checks the credentials and returns a signed access token.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	if len(s.secret) == 0 {
		return "", nil, apperr.New(apperr.Unauthorized, "password login is disabled")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, apperr.New(apperr.Validation, "email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return "", nil, apperr.New(apperr.Unauthorized, "invalid email or password")
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs an HS256 token whose subject is the user id.
func (s *AccountService) IssueToken(user *model.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(err, apperr.Internal, "sign token")
	}
	return signed, nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListAll(ctx)
}

func (s *AccountService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *AccountService) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Username != nil {
		if user.Username = strings.TrimSpace(*upd.Username); user.Username == "" {
			return nil, apperr.New(apperr.Validation, "username cannot be empty")
		}
	}
	if upd.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*upd.Email))
		if !model.IsEmail(user.Email) {
			return nil, apperr.New(apperr.Validation, "email is not a valid email address")
		}
	}
	if upd.Password != nil {
		if err := ValidatePassword(*upd.Password); err != nil {
			return nil, err
		}
		if user.PasswordHash, err = hashPassword(*upd.Password); err != nil {
			return nil, err
		}
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, id)
}

// DeleteUser removes the account. Tasks created by it are kept.
func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("user_id", id).Info("user.deleted")
	return nil
}

// ValidatePassword enforces 8 to 16 letters and digits with at least one
// upper case letter, one lower case letter and one digit.
func ValidatePassword(password string) error {
	if n := len(password); n < 8 || n > 16 {
		return errWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case r > unicode.MaxASCII:
			return errWeakPassword
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			return errWeakPassword
		}
	}
	if !upper || !lower || !digit {
		return errWeakPassword
	}
	return nil
}

var errWeakPassword = apperr.New(apperr.Validation,
	"password must be 8-16 letters and digits with at least one upper case letter, one lower case letter and one digit")

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", errWeakPassword
		}
		return "", apperr.Wrap(err, apperr.Internal, "hash password")
	}
	return string(hash), nil
}

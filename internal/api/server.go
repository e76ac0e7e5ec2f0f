// Package api exposes the tracker over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"task-tracker/internal/apperr"
	"task-tracker/internal/blob"
	"task-tracker/internal/model"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
)

// Tasks is the task lifecycle used by the handlers.
type Tasks interface {
	CreateTask(ctx context.Context, in service.TaskInput) (*service.CreateResult, error)
	UpdateTask(ctx context.Context, id string, in service.TaskInput) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error)
	DeleteTask(ctx context.Context, id string) (*model.Task, error)
	AddComment(ctx context.Context, id string, author *model.User, text string) (*model.Task, error)
}

// Accounts is the account management used by the handlers.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, upd service.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Tasks     Tasks
	Accounts  Accounts
	Files     blob.Store
	Auth      *Auth
	Logger    *log.Logger
	UploadDir string
	BaseURL   string
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = errorHandler(d.Logger)

	e.GET("/healthz", healthz)
	if d.UploadDir != "" {
		e.Static("/uploads", d.UploadDir)
	}

	authGroup := e.Group("/api/auth")
	authGroup.POST("/register", register(d.Accounts))
	authGroup.POST("/login", login(d.Accounts))

	secured := d.Auth.Middleware()

	users := e.Group("/api/user", secured)
	users.POST("", register(d.Accounts))
	users.GET("", listUsers(d.Accounts))
	users.GET("/:id", getUser(d.Accounts))
	users.PUT("/:id", updateUser(d.Accounts))
	users.DELETE("/:id", deleteUser(d.Accounts))

	tasks := e.Group("/api/task", secured)
	tasks.POST("", createTask(d.Tasks))
	tasks.GET("", listTasks(d.Tasks))
	tasks.GET("/:id", getTask(d.Tasks))
	tasks.PUT("/:id", updateTask(d.Tasks))
	tasks.DELETE("/:id", deleteTask(d.Tasks))
	tasks.POST("/:id/comments", addComment(d.Tasks, d.Accounts))

	files := e.Group("/api/files", secured)
	files.POST("/upload", uploadFile(d.Files, d.BaseURL))
	files.GET("", listFiles(d.Files, d.BaseURL))
	files.GET("/download/:filename", downloadFile(d.Files))
	files.GET("/:filename", fileInfo(d.Files, d.BaseURL))
	files.DELETE("/:filename", deleteFile(d.Files))
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := errorResponse(err)
		entry := logger.WithFields(log.Fields{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.WithError(err).Error("request.failed")
		} else {
			entry.WithError(err).Debug("request.rejected")
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.WithError(err).Warn("write error response")
		}
	}
}

func errorResponse(err error) (int, map[string]string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusNotFound {
			return http.StatusNotFound, map[string]string{"message": "End Point Not Found"}
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, map[string]string{"error": msg}
	}
	return apperr.HTTPStatus(err), map[string]string{"error": apperr.Message(err)}
}

type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return apperr.Wrap(err, apperr.BadRequest, "invalid JSON body")
	}
	return nil
}

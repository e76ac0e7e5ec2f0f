package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"task-tracker/internal/apperr"
	"task-tracker/internal/model"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
)

const (
	taskFilesField = "files"
	maxJSONBody    = 1 << 20
)

type taskRequest struct {
	Title             *string         `json:"title"`
	Description       *string         `json:"description"`
	Type              *string         `json:"type"`
	Priority          *string         `json:"priority"`
	Status            *string         `json:"status"`
	Color             *string         `json:"color"`
	StartDate         *string         `json:"startDate"`
	EndDate           *string         `json:"endDate"`
	NotificationEmail *string         `json:"notificationEmail"`
	CreatedBy         *string         `json:"createdBy"`
	ProjectID         *string         `json:"projectId"`
	Tags              json.RawMessage `json:"tags"`
	AssignedTo        json.RawMessage `json:"assignedTo"`
}

type commentRequest struct {
	Text string `json:"text"`
}

func createTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) error {
		in, err := readTaskInput(c)
		if err != nil {
			return err
		}
		if in.CreatedBy == nil {
			id := callerID(c)
			in.CreatedBy = &id
		}
		res, err := tasks.CreateTask(c.Request().Context(), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, echo.Map{
			"message":       "Task created successfully",
			"data":          res.Task,
			"filesUploaded": res.FilesUploaded,
		})
	}
}

func listTasks(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter := repository.TaskFilter{
			ProjectID: strings.TrimSpace(c.QueryParam("projectId")),
			Status:    strings.TrimSpace(c.QueryParam("status")),
			Tag:       strings.TrimSpace(c.QueryParam("tag")),
			CreatedBy: strings.TrimSpace(c.QueryParam("createdBy")),
		}
		list, err := tasks.ListTasks(c.Request().Context(), filter)
		if err != nil {
			return err
		}
		if list == nil {
			list = []model.Task{}
		}
		return c.JSON(http.StatusOK, echo.Map{"data": list})
	}
}

func getTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := tasks.GetTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"data": task})
	}
}

func updateTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) error {
		in, err := readTaskInput(c)
		if err != nil {
			return err
		}
		task, err := tasks.UpdateTask(c.Request().Context(), c.Param("id"), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Task updated successfully",
			"data":    task,
		})
	}
}

func deleteTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := tasks.DeleteTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Task deleted successfully",
			"data":    task,
		})
	}
}

func addComment(tasks Tasks, accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req commentRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		ctx := c.Request().Context()
		author, err := accounts.GetUser(ctx, callerID(c))
		if err != nil {
			if apperr.Is(err, apperr.NotFound) || apperr.Is(err, apperr.BadRequest) {
				return apperr.New(apperr.Unauthorized, "unknown user")
			}
			return err
		}
		task, err := tasks.AddComment(ctx, c.Param("id"), author, req.Text)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, echo.Map{"data": task})
	}
}

// readTaskInput accepts either a multipart form with file parts or a JSON body.
func readTaskInput(c echo.Context) (service.TaskInput, error) {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEMultipartForm) || strings.HasPrefix(ctype, echo.MIMEApplicationForm) {
		return readTaskForm(c)
	}
	return readTaskJSON(c)
}

func readTaskForm(c echo.Context) (service.TaskInput, error) {
	var (
		values map[string][]string
		files  []*multipart.FileHeader
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return service.TaskInput{}, apperr.Wrap(err, apperr.BadRequest, "invalid multipart body")
		}
		values, files = form.Value, form.File[taskFilesField]
	} else {
		form, err := c.FormParams()
		if err != nil {
			return service.TaskInput{}, apperr.Wrap(err, apperr.BadRequest, "invalid form body")
		}
		values = form
	}

	field := func(name string) *string {
		if v, ok := values[name]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	in := service.TaskInput{
		Title:             field("title"),
		Description:       field("description"),
		Type:              field("type"),
		Priority:          field("priority"),
		Status:            field("status"),
		Color:             field("color"),
		StartDate:         field("startDate"),
		EndDate:           field("endDate"),
		NotificationEmail: field("notificationEmail"),
		CreatedBy:         field("createdBy"),
		ProjectID:         field("projectId"),
	}
	if tags, ok := values["tags"]; ok {
		if len(tags) > 1 {
			in.Tags = &service.TagsInput{Items: tags, IsList: true}
		} else {
			in.Tags = &service.TagsInput{Text: tags[0]}
		}
	}
	if v := field("assignedTo"); v != nil {
		in.AssignedTo = &service.AssigneesInput{Text: *v}
	}
	for _, fh := range files {
		in.Files = append(in.Files, uploadFromHeader(fh))
	}
	return in, nil
}

func readTaskJSON(c echo.Context) (service.TaskInput, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxJSONBody+1))
	if err != nil {
		return service.TaskInput{}, apperr.Wrap(err, apperr.BadRequest, "cannot read body")
	}
	if len(body) > maxJSONBody {
		return service.TaskInput{}, apperr.New(apperr.PayloadTooLarge, "request body too large")
	}
	var req taskRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return service.TaskInput{}, apperr.Wrap(err, apperr.BadRequest, "invalid JSON body")
		}
	}
	in := service.TaskInput{
		Title:             req.Title,
		Description:       req.Description,
		Type:              req.Type,
		Priority:          req.Priority,
		Status:            req.Status,
		Color:             req.Color,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		NotificationEmail: req.NotificationEmail,
		CreatedBy:         req.CreatedBy,
		ProjectID:         req.ProjectID,
	}
	if in.Tags, err = tagsFromJSON(req.Tags); err != nil {
		return service.TaskInput{}, err
	}
	if in.AssignedTo, err = assigneesFromJSON(req.AssignedTo); err != nil {
		return service.TaskInput{}, err
	}
	return in, nil
}

func tagsFromJSON(raw json.RawMessage) (*service.TagsInput, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil, nil
	case raw[0] == '"':
		var text string
		if err := sonic.ConfigStd.Unmarshal(raw, &text); err != nil {
			return nil, apperr.New(apperr.Validation, "tags must be a string or a list of strings")
		}
		return &service.TagsInput{Text: text}, nil
	default:
		var items []string
		if err := sonic.ConfigStd.Unmarshal(raw, &items); err != nil {
			return nil, apperr.New(apperr.Validation, "tags must be a string or a list of strings")
		}
		return &service.TagsInput{Items: items, IsList: true}, nil
	}
}

func assigneesFromJSON(raw json.RawMessage) (*service.AssigneesInput, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil, nil
	case raw[0] == '"':
		var text string
		if err := sonic.ConfigStd.Unmarshal(raw, &text); err != nil {
			return nil, apperr.New(apperr.Validation, "assignedTo must be a JSON array of assignees")
		}
		return &service.AssigneesInput{Text: text}, nil
	default:
		var items []model.Assignee
		if err := sonic.ConfigStd.Unmarshal(raw, &items); err != nil {
			return nil, apperr.New(apperr.Validation, "assignedTo must be a JSON array of assignees")
		}
		return &service.AssigneesInput{Items: items, IsList: true}, nil
	}
}

func uploadFromHeader(fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		Name:     fh.Filename,
		MimeType: fh.Header.Get(echo.HeaderContentType),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

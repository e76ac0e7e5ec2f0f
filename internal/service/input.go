package service

import (
	"io"
	"strings"

	"github.com/bytedance/sonic"

	"task-tracker/internal/apperr"
	"task-tracker/internal/model"
)

// MaxTaskFiles caps the number of files in one create or update request.
const MaxTaskFiles = 5

// Upload is one file part of a request.
type Upload struct {
	Name     string
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// TagsInput is a tag collection that arrived either as comma separated text
// or as a list.
type TagsInput struct {
	Text   string
	Items  []string
	IsList bool
}

// AssigneesInput is an assignee collection that arrived either as JSON text
// or as a list.
type AssigneesInput struct {
	Text   string
	Items  []model.Assignee
	IsList bool
}

// TaskInput carries the fields of a create or update request. A nil field
// was not supplied.
type TaskInput struct {
	Title             *string
	Description       *string
	Type              *string
	Priority          *string
	Status            *string
	Color             *string
	StartDate         *string
	EndDate           *string
	NotificationEmail *string
	CreatedBy         *string
	ProjectID         *string
	Tags              *TagsInput
	AssignedTo        *AssigneesInput
	Files             []Upload
}

// NormalizeTags returns the ordered, trimmed, non-empty tags of in.
func NormalizeTags(in *TagsInput) []string {
	tags := []string{}
	if in == nil {
		return tags
	}
	items := in.Items
	if !in.IsList {
		items = strings.Split(in.Text, ",")
	}
	for _, tag := range items {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// NormalizeAssignees parses and validates the assignees of in.
func NormalizeAssignees(in *AssigneesInput) ([]model.Assignee, error) {
	if in == nil {
		return []model.Assignee{}, nil
	}
	items := in.Items
	if !in.IsList {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return []model.Assignee{}, nil
		}
		if err := sonic.UnmarshalString(text, &items); err != nil {
			return nil, apperr.New(apperr.Validation, "assignedTo must be a JSON array of assignees")
		}
	}
	out := make([]model.Assignee, 0, len(items))
	for i, a := range items {
		a.User = nil
		if err := a.Validate(); err != nil {
			return nil, apperr.New(apperr.Validation, "assignedTo[%d]: %s", i, apperr.Message(err))
		}
		out = append(out, a)
	}
	return out, nil
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func missing(p *string) bool {
	return value(p) == ""
}

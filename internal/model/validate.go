package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-tracker/internal/apperr"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)
)

// IsEmail reports whether s looks like an e-mail address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsColor reports whether s is a #rgb or #rrggbb hex color.
func IsColor(s string) bool {
	return colorPattern.MatchString(s)
}

// ValidID reports whether id is a well-formed record identifier.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewID returns a fresh time-ordered identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParsePriority checks raw against the closed priority set.
func ParsePriority(raw string) (Priority, bool) {
	switch p := Priority(raw); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return "", false
}

// ParseStatus checks raw against the closed status set.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusOnHold:
		return s, true
	}
	return "", false
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC).
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Validate checks the task invariants that hold for every persisted record.
func (t *Task) Validate() error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return apperr.New(apperr.Validation, "title is required")
	case strings.TrimSpace(t.Description) == "":
		return apperr.New(apperr.Validation, "description is required")
	case strings.TrimSpace(t.Type) == "":
		return apperr.New(apperr.Validation, "type is required")
	case t.StartDate.IsZero() || t.EndDate.IsZero():
		return apperr.New(apperr.Validation, "startDate and endDate are required")
	case !t.StartDate.Before(t.EndDate):
		return apperr.New(apperr.Validation, "start date must be before end date")
	case !IsEmail(t.NotificationEmail):
		return apperr.New(apperr.Validation, "notificationEmail is not a valid email address")
	case !ValidID(t.CreatedBy):
		return apperr.New(apperr.Validation, "createdBy is not a valid id")
	}
	if _, ok := ParsePriority(string(t.Priority)); !ok {
		return apperr.New(apperr.Validation, "priority must be one of High, Medium, Low")
	}
	if _, ok := ParseStatus(string(t.Status)); !ok {
		return apperr.New(apperr.Validation, "status must be one of Pending, In Progress, Completed, On Hold")
	}
	if t.Color != "" && !IsColor(t.Color) {
		return apperr.New(apperr.Validation, "color must be a hex color like #fff or #d300ff")
	}
	if t.Tags == nil {
		return apperr.New(apperr.Validation, "tags are required")
	}
	for i, a := range t.AssignedTo {
		if err := a.Validate(); err != nil {
			return apperr.New(apperr.Validation, "assignedTo[%d]: %s", i, apperr.Message(err))
		}
	}
	for i, c := range t.Comments {
		if c.UserID == "" || c.Name == "" || c.Text == "" {
			return apperr.New(apperr.Validation, "comments[%d]: userId, name and text are required", i)
		}
	}
	return nil
}

// Validate checks that every assignee field is present.
func (a Assignee) Validate() error {
	switch {
	case a.UserID == "" || a.Name == "" || a.Email == "" || a.Role == "":
		return apperr.New(apperr.Validation, "userId, name, email and role are required")
	case !ValidID(a.UserID):
		return apperr.New(apperr.Validation, "userId is not a valid id")
	}
	return nil
}

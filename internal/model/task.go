package model

import "time"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusOnHold     Status = "On Hold"
)

// AttachmentType is the media category of an uploaded file.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
	AttachmentVideo    AttachmentType = "video"
	AttachmentOther    AttachmentType = "other"
)

// DefaultColor is used when a task is created without a color.
const DefaultColor = "#d300ff"

// Task is the central work item. Assignees, attachments, comments and tags
// are owned by the task and stored alongside it.
type Task struct {
	ID                string       `gorm:"primaryKey;size:36" json:"id"`
	Title             string       `gorm:"not null" json:"title"`
	Description       string       `gorm:"not null" json:"description"`
	Type              string       `gorm:"not null" json:"type"`
	Priority          Priority     `gorm:"size:16;not null" json:"priority"`
	Color             string       `gorm:"size:9" json:"color"`
	StartDate         time.Time    `gorm:"not null" json:"startDate"`
	EndDate           time.Time    `gorm:"not null;index" json:"endDate"`
	Status            Status       `gorm:"size:16;not null;index:idx_task_project_status,priority:2" json:"status"`
	NotificationEmail string       `gorm:"not null" json:"notificationEmail"`
	AssignedTo        []Assignee   `gorm:"serializer:json" json:"assignedTo"`
	Attachments       []Attachment `gorm:"serializer:json" json:"attachments"`
	Comments          []Comment    `gorm:"serializer:json" json:"comments"`
	Tags              []string     `gorm:"serializer:json" json:"tags"`
	ProjectID         *string      `gorm:"size:64;index:idx_task_project_status,priority:1" json:"projectId"`
	CreatedBy         string       `gorm:"size:36;not null;index" json:"createdBy"`
	CreatedAt         time.Time    `json:"createdAt"`
	LastModified      time.Time    `json:"lastModified"`

	Creator *UserRef `gorm:"-" json:"creator,omitempty"`
}

// Assignee is a user the task is assigned to, with denormalized contact data.
type Assignee struct {
	UserID string   `json:"userId"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	User   *UserRef `json:"user,omitempty"`
}

// Attachment references a stored file bound to a task.
type Attachment struct {
	Name         string         `json:"name"`
	Key          string         `json:"key"`
	URL          string         `json:"url"`
	Type         AttachmentType `json:"type"`
	Size         int64          `json:"size"`
	UploadedDate time.Time      `json:"uploadedDate"`
}

// Comment is a note left on a task.
type Comment struct {
	UserID string    `json:"userId"`
	Name   string    `json:"name"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

// TaskTag indexes tasks by tag.
type TaskTag struct {
	TaskID string `gorm:"primaryKey;size:36"`
	Tag    string `gorm:"primaryKey;index"`
}

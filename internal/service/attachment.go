package service

import (
	"strings"
	"time"

	"task-tracker/internal/blob"
	"task-tracker/internal/model"
)

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain": true,
}

// ClassifyMIME maps a MIME type to an attachment category. Unknown types are "other".
func ClassifyMIME(mimeType string) model.AttachmentType {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return model.AttachmentImage
	case strings.HasPrefix(mt, "video/"):
		return model.AttachmentVideo
	case documentTypes[mt]:
		return model.AttachmentDocument
	default:
		return model.AttachmentOther
	}
}

// StoredFile is a blob written for one uploaded part.
type StoredFile struct {
	Object   blob.Object
	Name     string
	MimeType string
}

// BindAttachments builds one attachment record per stored file.
func BindAttachments(files []StoredFile, baseURL string, now time.Time) []model.Attachment {
	out := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		out = append(out, model.Attachment{
			Name:         f.Name,
			Key:          f.Object.Key,
			URL:          AttachmentURL(baseURL, f.Object.Key),
			Type:         ClassifyMIME(f.MimeType),
			Size:         f.Object.Size,
			UploadedDate: now,
		})
	}
	return out
}

// AttachmentURL is where a task attachment is served from.
func AttachmentURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/uploads/tasks/" + key
}

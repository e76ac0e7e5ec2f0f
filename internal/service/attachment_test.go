package service

import (
	"testing"
	"time"

	"task-tracker/internal/blob"
	"task-tracker/internal/model"
)

func TestClassifyMIME(t *testing.T) {
	tests := map[string]model.AttachmentType{
		"image/png":          model.AttachmentImage,
		"IMAGE/JPEG":         model.AttachmentImage,
		"video/mp4":          model.AttachmentVideo,
		"application/pdf":    model.AttachmentDocument,
		"application/msword": model.AttachmentDocument,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": model.AttachmentDocument,
		"text/plain; charset=utf-8": model.AttachmentDocument,
		"application/zip":           model.AttachmentOther,
		"":                          model.AttachmentOther,
	}
	for in, want := range tests {
		if got := ClassifyMIME(in); got != want {
			t.Fatalf("ClassifyMIME(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBindAttachments(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	files := []StoredFile{
		{Object: blob.Object{Key: "1-2-spec.pdf", Size: 10}, Name: "Spec.pdf", MimeType: "application/pdf"},
		{Object: blob.Object{Key: "1-3-pic.png", Size: 20}, Name: "pic.png", MimeType: "image/png"},
	}

	got := BindAttachments(files, "http://localhost:3000/", now)
	if len(got) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(got))
	}
	if got[0].Type != model.AttachmentDocument || got[0].Name != "Spec.pdf" || got[0].Size != 10 {
		t.Fatalf("unexpected first attachment %+v", got[0])
	}
	if got[0].URL != "http://localhost:3000/uploads/tasks/1-2-spec.pdf" {
		t.Fatalf("unexpected url %q", got[0].URL)
	}
	if got[1].Type != model.AttachmentImage || !got[1].UploadedDate.Equal(now) {
		t.Fatalf("unexpected second attachment %+v", got[1])
	}
}

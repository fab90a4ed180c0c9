package h5pcontent

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Request DTOs

// CreateContentRequest contains parameters for creating new content
type CreateContentRequest struct {
	OrgID       uuid.UUID
	UserID      uuid.UUID
	LibraryName string
	Title       string
	Description string
	Params      json.RawMessage
	Tags        []string
	FolderPath  string
}

// UpdateContentRequest replaces every mutable field of a content
type UpdateContentRequest struct {
	ContentID   uuid.UUID
	OrgID       uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description string
	Params      json.RawMessage
	Tags        []string
	Status      ContentStatus
}

// ListContentRequest contains parameters for listing an organisation's content
type ListContentRequest struct {
	OrgID  uuid.UUID
	Limit  int
	Offset int
}

// SaveFromEditorRequest is a create-or-update issued by the embedded editor.
//
// ContentID is client supplied; uuid.Nil creates a new content. Library is a
// machine name or a "MachineName major.minor" library string; the latest
// registered version of that machine name is used.
type SaveFromEditorRequest struct {
	OrgID      uuid.UUID
	UserID     uuid.UUID
	ContentID  uuid.UUID
	Library    string
	Title      string
	Params     json.RawMessage
	Tags       []string
	FolderPath string
}

// UploadTempFileRequest stores an authoring upload in temporary storage
type UploadTempFileRequest struct {
	UserID   uuid.UUID
	FileName string
	Data     []byte
}

// TempFile describes a stored temporary upload
type TempFile struct {
	// Path is the reference to embed in a content payload ("{userId}/{tempId}/{filename}#tmp")
	Path        string `json:"path"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

package h5pcontent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LibraryOrigin records where a library package came from.
type LibraryOrigin string

const (
	LibraryOriginOfficial LibraryOrigin = "official"
	LibraryOriginCustom   LibraryOrigin = "custom"
)

// DependencyType is the kind of a dependency edge between two libraries.
type DependencyType string

const (
	DependencyPreloaded DependencyType = "preloaded"
	DependencyDynamic   DependencyType = "dynamic"
	DependencyEditor    DependencyType = "editor"
)

// IsValid reports whether t is a known dependency type.
func (t DependencyType) IsValid() bool {
	switch t {
	case DependencyPreloaded, DependencyDynamic, DependencyEditor:
		return true
	}
	return false
}

// ContentStatus is the domain type for content lifecycle states.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusArchived  ContentStatus = "archived"
)

// IsValid reports whether s is a known content status.
func (s ContentStatus) IsValid() bool {
	switch s {
	case ContentStatusDraft, ContentStatusPublished, ContentStatusArchived:
		return true
	}
	return false
}

// Library is a versioned, installable content type package.
//
// The tuple (MachineName, MajorVersion, MinorVersion, PatchVersion) is globally
// unique and is the conflict key for upserts.
type Library struct {
	ID            uuid.UUID              `json:"id"`
	MachineName   string                 `json:"machine_name"`
	MajorVersion  int                    `json:"major_version"`
	MinorVersion  int                    `json:"minor_version"`
	PatchVersion  int                    `json:"patch_version"`
	Title         string                 `json:"title"`
	Origin        LibraryOrigin          `json:"origin"`
	Runnable      bool                   `json:"runnable"`
	Restricted    bool                   `json:"restricted"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	PackagePath   string                 `json:"package_path,omitempty"`
	ExtractedPath string                 `json:"extracted_path,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// VersionString returns "major.minor.patch".
func (l *Library) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", l.MajorVersion, l.MinorVersion, l.PatchVersion)
}

// LibraryString returns the "MachineName major.minor" form used by embedding players.
func (l *Library) LibraryString() string {
	return fmt.Sprintf("%s %d.%d", l.MachineName, l.MajorVersion, l.MinorVersion)
}

// LibraryDependency is a directed edge: LibraryID requires DependsOnID.
type LibraryDependency struct {
	LibraryID      uuid.UUID      `json:"library_id"`
	DependsOnID    uuid.UUID      `json:"depends_on_id"`
	DependencyType DependencyType `json:"dependency_type"`
}

// OrgLibrary is an organisation-level availability flag over a library.
// It has no effect on dependency resolution.
type OrgLibrary struct {
	OrgID      uuid.UUID `json:"org_id"`
	LibraryID  uuid.UUID `json:"library_id"`
	Enabled    bool      `json:"enabled"`
	Restricted bool      `json:"restricted"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Content is an organisation-owned instance of a library.
type Content struct {
	ID          uuid.UUID       `json:"id"`
	OrgID       uuid.UUID       `json:"org_id"`
	LibraryID   uuid.UUID       `json:"library_id"`
	CreatedBy   uuid.UUID       `json:"created_by"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	ContentJSON json.RawMessage `json:"content_json"`
	Tags        []string        `json:"tags"`
	Status      ContentStatus   `json:"status"`
	StoragePath string          `json:"storage_path"`
	FolderPath  string          `json:"folder_path,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// ContentDetails is a content record joined with the display fields of its library.
type ContentDetails struct {
	Content
	LibraryName    string `json:"library_name"`
	LibraryTitle   string `json:"library_title"`
	LibraryVersion string `json:"library_version"`
}

// ContentList is one page of an organisation's content.
type ContentList struct {
	Items  []*ContentDetails `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// DependencyRef identifies a library the way an embedding player expects it.
type DependencyRef struct {
	MachineName  string `json:"machineName"`
	MajorVersion int    `json:"majorVersion"`
	MinorVersion int    `json:"minorVersion"`
}

// H5PMetadata is the synthesized package metadata handed to the player.
type H5PMetadata struct {
	Title                 string          `json:"title"`
	MainLibrary           string          `json:"mainLibrary"`
	PreloadedDependencies []DependencyRef `json:"preloadedDependencies,omitempty"`
}

// EditorParams is everything an embedding editor or player needs to boot a content.
type EditorParams struct {
	H5P     json.RawMessage `json:"h5p"`
	Library string          `json:"library"`
	Params  json.RawMessage `json:"params"`
}

// File is an object read back from storage.
type File struct {
	Key         string
	ContentType string
	Data        []byte
}

// SaveResult is returned by SaveFromEditor.
type SaveResult struct {
	Content *ContentDetails `json:"content"`
	// CleanupKeys are the temporary objects queued for background removal.
	CleanupKeys []string `json:"cleanup_keys,omitempty"`
}

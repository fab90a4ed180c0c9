package h5pcontent

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the h5p-content library
type Service interface {
	// Library registry
	GetLibraryByMachineName(ctx context.Context, machineName string) (*Library, error)
	GetLibraryByVersion(ctx context.Context, machineName string, major, minor, patch int) (*Library, error)
	ListLibraries(ctx context.Context) ([]*Library, error)
	UpsertLibrary(ctx context.Context, library *Library) (*Library, error)
	DeleteLibrary(ctx context.Context, id uuid.UUID) error
	DeleteLibraryByMachineName(ctx context.Context, machineName string) error

	// Dependency graph
	AddLibraryDependency(ctx context.Context, dep LibraryDependency) error
	ListLibraryDependencies(ctx context.Context, libraryID uuid.UUID) ([]*LibraryDependency, error)
	DeleteLibraryDependencies(ctx context.Context, libraryID uuid.UUID) error
	FullDependencyTree(ctx context.Context, libraryID uuid.UUID) ([]*Library, error)

	// Organisation library flags
	SetOrgLibrary(ctx context.Context, orgLibrary *OrgLibrary) error
	ListOrgLibraries(ctx context.Context, orgID uuid.UUID) ([]*OrgLibrary, error)

	// Content operations
	CreateContent(ctx context.Context, req CreateContentRequest) (*ContentDetails, error)
	GetContent(ctx context.Context, contentID, orgID uuid.UUID) (*ContentDetails, error)
	UpdateContent(ctx context.Context, req UpdateContentRequest) (*ContentDetails, error)
	DeleteContent(ctx context.Context, contentID, orgID uuid.UUID) error
	ListContent(ctx context.Context, req ListContentRequest) (*ContentList, error)
	GetEditorParams(ctx context.Context, contentID, orgID uuid.UUID) (*EditorParams, error)
	SaveFromEditor(ctx context.Context, req SaveFromEditorRequest) (*SaveResult, error)

	// File operations
	GetContentFile(ctx context.Context, contentID, orgID uuid.UUID, path string) (*File, error)
	GetTempFile(ctx context.Context, path string) (*File, error)
	UploadTempFile(ctx context.Context, req UploadTempFileRequest) (*TempFile, error)
}

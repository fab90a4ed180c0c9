package h5pcontent

import (
	"context"

	"github.com/google/uuid"
)

// ObjectStore is the key/bytes provider that holds temporary uploads and
// permanent content assets.
type ObjectStore interface {
	// Download returns the bytes stored under key, or ErrObjectNotFound
	Download(ctx context.Context, key string) ([]byte, error)

	// Upload stores bytes under key, replacing any existing object
	Upload(ctx context.Context, params UploadParams) error

	// Remove deletes the object stored under key
	Remove(ctx context.Context, key string) error
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	Key         string
	ContentType string
	Data        []byte
}

// Repository defines the interface for library and content persistence
type Repository interface {
	// Library operations
	GetLibrary(ctx context.Context, id uuid.UUID) (*Library, error)
	GetLibraryByMachineName(ctx context.Context, machineName string) (*Library, error)
	GetLibraryByVersion(ctx context.Context, machineName string, major, minor, patch int) (*Library, error)
	ListLibraries(ctx context.Context) ([]*Library, error)
	UpsertLibrary(ctx context.Context, library *Library) (*Library, error)
	DeleteLibrary(ctx context.Context, id uuid.UUID) error
	DeleteLibraryByMachineName(ctx context.Context, machineName string) error

	// Dependency edge operations
	AddLibraryDependency(ctx context.Context, dep LibraryDependency) error
	ListLibraryDependencies(ctx context.Context, libraryID uuid.UUID) ([]*LibraryDependency, error)
	// ListDependencyLibraries returns the libraries the given library depends on directly
	ListDependencyLibraries(ctx context.Context, libraryID uuid.UUID) ([]*Library, error)
	DeleteLibraryDependencies(ctx context.Context, libraryID uuid.UUID) error

	// Organisation library flags
	SetOrgLibrary(ctx context.Context, orgLibrary *OrgLibrary) error
	ListOrgLibraries(ctx context.Context, orgID uuid.UUID) ([]*OrgLibrary, error)

	// Content operations, always scoped by organisation
	CreateContent(ctx context.Context, content *Content) error
	UpsertContent(ctx context.Context, content *Content) (*Content, error)
	GetContent(ctx context.Context, id, orgID uuid.UUID) (*Content, error)
	UpdateContent(ctx context.Context, content *Content) error
	DeleteContent(ctx context.Context, id, orgID uuid.UUID) error
	ListContent(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Content, error)
	CountContent(ctx context.Context, orgID uuid.UUID) (int64, error)
	ContentSlugExists(ctx context.Context, orgID uuid.UUID, slug string) (bool, error)
	// ContentIDExists reports whether any row, in any organisation and
	// including soft-deleted ones, uses the ID.
	ContentIDExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// DependencyTreeQuerier is implemented by repositories that can compute the
// full dependency closure in a single query. The result must exclude the root,
// be de-duplicated and stop at MaxDependencyDepth hops.
type DependencyTreeQuerier interface {
	FullDependencyTree(ctx context.Context, libraryID uuid.UUID) ([]*Library, error)
}

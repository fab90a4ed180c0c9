package h5pcontent

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound is the root of every not-found condition. It is safe to
	// surface to callers verbatim.
	ErrNotFound = errors.New("not found")

	// ErrLibraryNotFound indicates a library is not registered
	ErrLibraryNotFound = fmt.Errorf("library %w", ErrNotFound)

	// ErrContentNotFound indicates a content does not exist for the organisation
	ErrContentNotFound = fmt.Errorf("content %w", ErrNotFound)

	// ErrFileNotFound indicates a requested content or temp file is missing
	ErrFileNotFound = fmt.Errorf("file %w", ErrNotFound)

	// ErrObjectNotFound is returned by object stores for missing keys
	ErrObjectNotFound = fmt.Errorf("object %w", ErrNotFound)

	// ErrInvalidStatus indicates an unknown content status
	ErrInvalidStatus = errors.New("invalid content status")

	// ErrInvalidDependencyType indicates an unknown dependency edge type
	ErrInvalidDependencyType = errors.New("invalid dependency type")

	// ErrInvalidLibrary indicates a library record is missing identity fields
	ErrInvalidLibrary = errors.New("invalid library")

	// ErrLibraryInUse indicates a library still referenced by content cannot be deleted
	ErrLibraryInUse = errors.New("library is in use by content")

	// ErrInvalidFileName indicates an upload name or file path that cannot be stored
	ErrInvalidFileName = errors.New("invalid file name")
)

// IsNotFound reports whether err is any not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// LibraryNotFoundError names the library that could not be resolved.
type LibraryNotFoundError struct {
	MachineName string
}

func (e *LibraryNotFoundError) Error() string {
	return fmt.Sprintf("Library %s not found", e.MachineName)
}

func (e *LibraryNotFoundError) Unwrap() error {
	return ErrLibraryNotFound
}

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID uuid.UUID
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// LibraryError represents an error related to library registry operations
type LibraryError struct {
	Name string
	Op   string
	Err  error
}

func (e *LibraryError) Error() string {
	return fmt.Sprintf("library operation %s failed for %s: %v", e.Op, e.Name, e.Err)
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to object storage operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

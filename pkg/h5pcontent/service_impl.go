package h5pcontent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxSlugAttempts  = 50
)

// service implements the Service interface
type service struct {
	repository Repository
	store      ObjectStore
	resolver   *Resolver
	migrator   *Migrator
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithObjectStore sets the object storage provider for the service
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithLogger sets the structured logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.resolver = NewResolver(s.repository)
	s.migrator = NewMigrator(s.store, s.logger)

	return s, nil
}

// Library registry

func (s *service) GetLibraryByMachineName(ctx context.Context, machineName string) (*Library, error) {
	lib, err := s.repository.GetLibraryByMachineName(ctx, machineName)
	if err != nil {
		if IsNotFound(err) {
			return nil, &LibraryNotFoundError{MachineName: machineName}
		}
		return nil, &LibraryError{Name: machineName, Op: "get", Err: err}
	}
	return lib, nil
}

func (s *service) GetLibraryByVersion(ctx context.Context, machineName string, major, minor, patch int) (*Library, error) {
	lib, err := s.repository.GetLibraryByVersion(ctx, machineName, major, minor, patch)
	if err != nil {
		name := fmt.Sprintf("%s %d.%d.%d", machineName, major, minor, patch)
		if IsNotFound(err) {
			return nil, &LibraryNotFoundError{MachineName: name}
		}
		return nil, &LibraryError{Name: name, Op: "get_version", Err: err}
	}
	return lib, nil
}

func (s *service) ListLibraries(ctx context.Context) ([]*Library, error) {
	return s.repository.ListLibraries(ctx)
}

func (s *service) UpsertLibrary(ctx context.Context, library *Library) (*Library, error) {
	if err := validateLibrary(library); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if library.CreatedAt.IsZero() {
		library.CreatedAt = now
	}
	library.UpdatedAt = now

	saved, err := s.repository.UpsertLibrary(ctx, library)
	if err != nil {
		return nil, &LibraryError{Name: library.MachineName, Op: "upsert", Err: err}
	}

	s.logger.Info("library upserted",
		"library_id", saved.ID, "machine_name", saved.MachineName, "version", saved.VersionString())
	return saved, nil
}

func (s *service) DeleteLibrary(ctx context.Context, id uuid.UUID) error {
	if err := s.repository.DeleteLibrary(ctx, id); err != nil {
		return &LibraryError{Name: id.String(), Op: "delete", Err: err}
	}
	return nil
}

func (s *service) DeleteLibraryByMachineName(ctx context.Context, machineName string) error {
	if err := s.repository.DeleteLibraryByMachineName(ctx, machineName); err != nil {
		if IsNotFound(err) {
			return &LibraryNotFoundError{MachineName: machineName}
		}
		return &LibraryError{Name: machineName, Op: "delete", Err: err}
	}
	return nil
}

// Dependency graph

func (s *service) AddLibraryDependency(ctx context.Context, dep LibraryDependency) error {
	if !dep.DependencyType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDependencyType, dep.DependencyType)
	}
	for _, id := range []uuid.UUID{dep.LibraryID, dep.DependsOnID} {
		if _, err := s.repository.GetLibrary(ctx, id); err != nil {
			return &LibraryError{Name: id.String(), Op: "add_dependency", Err: err}
		}
	}
	if err := s.repository.AddLibraryDependency(ctx, dep); err != nil {
		return &LibraryError{Name: dep.LibraryID.String(), Op: "add_dependency", Err: err}
	}
	return nil
}

func (s *service) ListLibraryDependencies(ctx context.Context, libraryID uuid.UUID) ([]*LibraryDependency, error) {
	return s.repository.ListLibraryDependencies(ctx, libraryID)
}

// DeleteLibraryDependencies removes every outgoing edge of a library.
func (s *service) DeleteLibraryDependencies(ctx context.Context, libraryID uuid.UUID) error {
	if err := s.repository.DeleteLibraryDependencies(ctx, libraryID); err != nil {
		return &LibraryError{Name: libraryID.String(), Op: "delete_dependencies", Err: err}
	}
	return nil
}

func (s *service) FullDependencyTree(ctx context.Context, libraryID uuid.UUID) ([]*Library, error) {
	if _, err := s.repository.GetLibrary(ctx, libraryID); err != nil {
		return nil, &LibraryError{Name: libraryID.String(), Op: "dependency_tree", Err: err}
	}
	return s.resolver.FullDependencyTree(ctx, libraryID)
}

// Organisation library flags

func (s *service) SetOrgLibrary(ctx context.Context, orgLibrary *OrgLibrary) error {
	if _, err := s.repository.GetLibrary(ctx, orgLibrary.LibraryID); err != nil {
		return &LibraryError{Name: orgLibrary.LibraryID.String(), Op: "set_org_library", Err: err}
	}
	orgLibrary.UpdatedAt = time.Now().UTC()
	return s.repository.SetOrgLibrary(ctx, orgLibrary)
}

func (s *service) ListOrgLibraries(ctx context.Context, orgID uuid.UUID) ([]*OrgLibrary, error) {
	return s.repository.ListOrgLibraries(ctx, orgID)
}

// Content operations

func (s *service) CreateContent(ctx context.Context, req CreateContentRequest) (*ContentDetails, error) {
	lib, err := s.GetLibraryByMachineName(ctx, req.LibraryName)
	if err != nil {
		return nil, err
	}

	contentID := uuid.New()
	slug, err := s.uniqueSlug(ctx, req.OrgID, req.Title)
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "create", Err: err}
	}

	now := time.Now().UTC()
	content := &Content{
		ID:          contentID,
		OrgID:       req.OrgID,
		LibraryID:   lib.ID,
		CreatedBy:   req.UserID,
		Slug:        slug,
		Title:       req.Title,
		Description: req.Description,
		ContentJSON: normalizePayload(req.Params),
		Tags:        normalizeTags(req.Tags),
		Status:      ContentStatusDraft,
		StoragePath: ContentStoragePath(req.OrgID, contentID),
		FolderPath:  req.FolderPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repository.CreateContent(ctx, content); err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "create", Err: err}
	}

	s.logger.Info("content created",
		"content_id", contentID, "org_id", req.OrgID, "library", lib.MachineName)
	return newContentDetails(content, lib), nil
}

func (s *service) GetContent(ctx context.Context, contentID, orgID uuid.UUID) (*ContentDetails, error) {
	content, err := s.repository.GetContent(ctx, contentID, orgID)
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "get", Err: err}
	}
	return s.enrich(ctx, content, nil)
}

func (s *service) UpdateContent(ctx context.Context, req UpdateContentRequest) (*ContentDetails, error) {
	status := req.Status
	if status == "" {
		status = ContentStatusDraft
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	content, err := s.repository.GetContent(ctx, req.ContentID, req.OrgID)
	if err != nil {
		return nil, &ContentError{ContentID: req.ContentID, Op: "update", Err: err}
	}

	content.Title = req.Title
	content.Description = req.Description
	content.ContentJSON = normalizePayload(req.Params)
	content.Tags = normalizeTags(req.Tags)
	content.Status = status
	content.UpdatedAt = time.Now().UTC()

	if err := s.repository.UpdateContent(ctx, content); err != nil {
		return nil, &ContentError{ContentID: req.ContentID, Op: "update", Err: err}
	}
	return s.enrich(ctx, content, nil)
}

func (s *service) DeleteContent(ctx context.Context, contentID, orgID uuid.UUID) error {
	if err := s.repository.DeleteContent(ctx, contentID, orgID); err != nil {
		return &ContentError{ContentID: contentID, Op: "delete", Err: err}
	}
	s.logger.Info("content deleted", "content_id", contentID, "org_id", orgID)
	return nil
}

func (s *service) ListContent(ctx context.Context, req ListContentRequest) (*ContentList, error) {
	limit, offset := req.Limit, req.Offset
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	contents, err := s.repository.ListContent(ctx, req.OrgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	total, err := s.repository.CountContent(ctx, req.OrgID)
	if err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}

	libs := make(map[uuid.UUID]*Library)
	items := make([]*ContentDetails, 0, len(contents))
	for _, c := range contents {
		details, err := s.enrich(ctx, c, libs)
		if err != nil {
			return nil, err
		}
		items = append(items, details)
	}

	return &ContentList{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Helper methods

// enrich joins the content's library. cache may be nil.
func (s *service) enrich(ctx context.Context, content *Content, cache map[uuid.UUID]*Library) (*ContentDetails, error) {
	lib, ok := cache[content.LibraryID]
	if !ok {
		var err error
		lib, err = s.repository.GetLibrary(ctx, content.LibraryID)
		if err != nil {
			return nil, &ContentError{ContentID: content.ID, Op: "resolve_library", Err: err}
		}
		if cache != nil {
			cache[content.LibraryID] = lib
		}
	}
	return newContentDetails(content, lib), nil
}

func (s *service) uniqueSlug(ctx context.Context, orgID uuid.UUID, title string) (string, error) {
	base := GenerateSlug(title)
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := slugCandidate(base, n)
		taken, err := s.repository.ContentSlugExists(ctx, orgID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errors.New("no free slug for " + base)
}

func newContentDetails(content *Content, lib *Library) *ContentDetails {
	return &ContentDetails{
		Content:        *content,
		LibraryName:    lib.MachineName,
		LibraryTitle:   lib.Title,
		LibraryVersion: lib.VersionString(),
	}
}

// normalizePayload stores an absent or JSON null payload as an empty object.
func normalizePayload(p json.RawMessage) json.RawMessage {
	if trimmed := bytes.TrimSpace(p); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return p
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

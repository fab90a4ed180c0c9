package h5pcontent

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GetEditorParams assembles what an embedding editor or player needs to boot
// the content. A failed dependency lookup degrades to metadata without
// preloadedDependencies.
func (s *service) GetEditorParams(ctx context.Context, contentID, orgID uuid.UUID) (*EditorParams, error) {
	content, err := s.repository.GetContent(ctx, contentID, orgID)
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "editor_params", Err: err}
	}
	lib, err := s.repository.GetLibrary(ctx, content.LibraryID)
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "editor_params", Err: err}
	}

	meta := H5PMetadata{
		Title:       content.Title,
		MainLibrary: lib.MachineName,
	}
	deps, err := s.resolver.FullDependencyTree(ctx, lib.ID)
	if err != nil {
		s.logger.Warn("dependency lookup failed, omitting preloaded dependencies",
			"content_id", contentID, "library", lib.MachineName, "error", err)
	} else {
		meta.PreloadedDependencies = dependencyRefs(deps)
	}

	h5p, err := json.Marshal(meta)
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "editor_params", Err: err}
	}

	return &EditorParams{
		H5P:     h5p,
		Library: lib.LibraryString(),
		Params:  normalizePayload(content.ContentJSON),
	}, nil
}

// SaveFromEditor creates or updates a content from the editor. Temp file
// references are promoted before the single upsert; the promoted temp objects
// are removed in the background only after the upsert succeeds.
func (s *service) SaveFromEditor(ctx context.Context, req SaveFromEditorRequest) (*SaveResult, error) {
	machineName, _, _, _, err := ParseLibraryString(req.Library)
	if err != nil {
		return nil, err
	}
	lib, err := s.GetLibraryByMachineName(ctx, machineName)
	if err != nil {
		return nil, err
	}

	contentID := req.ContentID
	if contentID == uuid.Nil {
		contentID = uuid.New()
	}

	now := time.Now().UTC()
	content := &Content{
		ID:          contentID,
		OrgID:       req.OrgID,
		LibraryID:   lib.ID,
		CreatedBy:   req.UserID,
		Title:       req.Title,
		Tags:        normalizeTags(req.Tags),
		Status:      ContentStatusDraft,
		StoragePath: ContentStoragePath(req.OrgID, contentID),
		FolderPath:  req.FolderPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	existing, err := s.repository.GetContent(ctx, contentID, req.OrgID)
	switch {
	case err == nil:
		content.Slug = existing.Slug
	case IsNotFound(err):
		// an ID held by another organisation, or soft-deleted, can never be
		// written; reject it before any file is copied under it
		taken, err := s.repository.ContentIDExists(ctx, contentID)
		if err != nil {
			return nil, &ContentError{ContentID: contentID, Op: "save", Err: err}
		}
		if taken {
			return nil, &ContentError{ContentID: contentID, Op: "save", Err: ErrContentNotFound}
		}
		if content.Slug, err = s.uniqueSlug(ctx, req.OrgID, req.Title); err != nil {
			return nil, &ContentError{ContentID: contentID, Op: "save", Err: err}
		}
	default:
		return nil, &ContentError{ContentID: contentID, Op: "save", Err: err}
	}

	payload, cleanupKeys, err := s.migrator.Migrate(ctx, req.OrgID, contentID, normalizePayload(req.Params))
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "migrate", Err: err}
	}
	content.ContentJSON = payload

	saved, err := s.repository.UpsertContent(ctx, content)
	if err != nil {
		return nil, &ContentError{ContentID: contentID, Op: "save", Err: err}
	}

	s.scheduleCleanup(contentID, cleanupKeys)

	s.logger.Info("content saved from editor",
		"content_id", contentID, "org_id", req.OrgID, "library", lib.MachineName,
		"migrated_files", len(cleanupKeys))

	return &SaveResult{
		Content:     newContentDetails(saved, lib),
		CleanupKeys: cleanupKeys,
	}, nil
}

// scheduleCleanup removes promoted temp objects on a detached context. Failures
// are logged and never retried.
func (s *service) scheduleCleanup(contentID uuid.UUID, keys []string) {
	if len(keys) == 0 {
		return
	}
	go func() {
		ctx := context.Background()
		for _, key := range keys {
			if err := s.store.Remove(ctx, key); err != nil {
				s.logger.Warn("temp file cleanup failed",
					"content_id", contentID, "key", key, "error", err)
			}
		}
	}()
}

func (s *service) GetContentFile(ctx context.Context, contentID, orgID uuid.UUID, filePath string) (*File, error) {
	rel, err := cleanFilePath(filePath)
	if err != nil {
		return nil, err
	}
	return s.readFile(ctx, ContentKey(orgID, contentID, rel))
}

func (s *service) GetTempFile(ctx context.Context, filePath string) (*File, error) {
	rel, err := cleanFilePath(filePath)
	if err != nil {
		return nil, err
	}
	return s.readFile(ctx, TempKey(rel))
}

func (s *service) readFile(ctx context.Context, key string) (*File, error) {
	data, err := s.store.Download(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		return nil, &StorageError{Key: key, Op: "download", Err: err}
	}
	return &File{
		Key:         key,
		ContentType: ContentTypeFromExtension(key),
		Data:        data,
	}, nil
}

func (s *service) UploadTempFile(ctx context.Context, req UploadTempFileRequest) (*TempFile, error) {
	name := path.Base(strings.ReplaceAll(req.FileName, `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." || strings.Contains(name, TempSuffix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileName, req.FileName)
	}
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}

	tempID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate temp id: %w", err)
	}

	rel := req.UserID.String() + "/" + tempID + "/" + name
	key := TempKey(rel)
	contentType := ContentTypeFromExtension(name)
	err = s.store.Upload(ctx, UploadParams{Key: key, ContentType: contentType, Data: req.Data})
	if err != nil {
		return nil, &StorageError{Key: key, Op: "upload_temp_file", Err: err}
	}

	return &TempFile{
		Path:        rel + TempSuffix,
		Key:         key,
		ContentType: contentType,
		Size:        len(req.Data),
	}, nil
}

// cleanFilePath rejects traversal out of the addressed prefix. A path that
// tries to escape is reported as missing.
func cleanFilePath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", ErrFileNotFound
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, p)
		}
	}
	return p, nil
}

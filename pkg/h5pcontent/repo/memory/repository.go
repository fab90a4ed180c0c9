package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

type libraryVersion struct {
	machineName         string
	major, minor, patch int
}

type orgLibraryKey struct {
	orgID, libraryID uuid.UUID
}

// Repository implements h5pcontent.Repository using in-memory storage
type Repository struct {
	mu        sync.RWMutex
	libraries map[uuid.UUID]*h5pcontent.Library
	byVersion map[libraryVersion]uuid.UUID
	deps      []h5pcontent.LibraryDependency
	orgLibs   map[orgLibraryKey]*h5pcontent.OrgLibrary
	contents  map[uuid.UUID]*h5pcontent.Content
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		libraries: make(map[uuid.UUID]*h5pcontent.Library),
		byVersion: make(map[libraryVersion]uuid.UUID),
		orgLibs:   make(map[orgLibraryKey]*h5pcontent.OrgLibrary),
		contents:  make(map[uuid.UUID]*h5pcontent.Content),
	}
}

var _ h5pcontent.Repository = (*Repository)(nil)

// Library operations

func (r *Repository) GetLibrary(ctx context.Context, id uuid.UUID) (*h5pcontent.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lib, exists := r.libraries[id]
	if !exists {
		return nil, h5pcontent.ErrLibraryNotFound
	}
	return copyLibrary(lib), nil
}

func (r *Repository) GetLibraryByMachineName(ctx context.Context, machineName string) (*h5pcontent.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *h5pcontent.Library
	for _, lib := range r.libraries {
		if lib.MachineName != machineName {
			continue
		}
		if latest == nil || newerThan(lib, latest) {
			latest = lib
		}
	}
	if latest == nil {
		return nil, h5pcontent.ErrLibraryNotFound
	}
	return copyLibrary(latest), nil
}

func (r *Repository) GetLibraryByVersion(ctx context.Context, machineName string, major, minor, patch int) (*h5pcontent.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byVersion[libraryVersion{machineName, major, minor, patch}]
	if !exists {
		return nil, h5pcontent.ErrLibraryNotFound
	}
	return copyLibrary(r.libraries[id]), nil
}

func (r *Repository) ListLibraries(ctx context.Context) ([]*h5pcontent.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*h5pcontent.Library, 0, len(r.libraries))
	for _, lib := range r.libraries {
		result = append(result, copyLibrary(lib))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MachineName != result[j].MachineName {
			return result[i].MachineName < result[j].MachineName
		}
		return newerThan(result[i], result[j])
	})
	return result, nil
}

// UpsertLibrary inserts the library or, when its version tuple is already
// registered, refreshes the stored record in place keeping its ID and
// creation time.
func (r *Repository) UpsertLibrary(ctx context.Context, library *h5pcontent.Library) (*h5pcontent.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := libraryVersion{library.MachineName, library.MajorVersion, library.MinorVersion, library.PatchVersion}
	stored := copyLibrary(library)
	if id, exists := r.byVersion[key]; exists {
		stored.ID = id
		stored.CreatedAt = r.libraries[id].CreatedAt
	} else if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}

	r.libraries[stored.ID] = stored
	r.byVersion[key] = stored.ID
	return copyLibrary(stored), nil
}

func (r *Repository) DeleteLibrary(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lib, exists := r.libraries[id]
	if !exists {
		return h5pcontent.ErrLibraryNotFound
	}
	if r.libraryInUseLocked(id) {
		return h5pcontent.ErrLibraryInUse
	}
	r.deleteLibraryLocked(lib)
	return nil
}

func (r *Repository) DeleteLibraryByMachineName(ctx context.Context, machineName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*h5pcontent.Library
	for _, lib := range r.libraries {
		if lib.MachineName == machineName {
			if r.libraryInUseLocked(lib.ID) {
				return h5pcontent.ErrLibraryInUse
			}
			matched = append(matched, lib)
		}
	}
	if len(matched) == 0 {
		return h5pcontent.ErrLibraryNotFound
	}
	for _, lib := range matched {
		r.deleteLibraryLocked(lib)
	}
	return nil
}

// libraryInUseLocked reports whether any content row, soft-deleted ones
// included, still references the library.
func (r *Repository) libraryInUseLocked(id uuid.UUID) bool {
	for _, c := range r.contents {
		if c.LibraryID == id {
			return true
		}
	}
	return false
}

// deleteLibraryLocked removes the library and cascades to every edge and org flag touching it.
func (r *Repository) deleteLibraryLocked(lib *h5pcontent.Library) {
	delete(r.libraries, lib.ID)
	delete(r.byVersion, libraryVersion{lib.MachineName, lib.MajorVersion, lib.MinorVersion, lib.PatchVersion})

	kept := r.deps[:0]
	for _, d := range r.deps {
		if d.LibraryID != lib.ID && d.DependsOnID != lib.ID {
			kept = append(kept, d)
		}
	}
	r.deps = kept

	for k := range r.orgLibs {
		if k.libraryID == lib.ID {
			delete(r.orgLibs, k)
		}
	}
}

// Dependency edge operations

func (r *Repository) AddLibraryDependency(ctx context.Context, dep h5pcontent.LibraryDependency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.libraries[dep.LibraryID]; !exists {
		return fmt.Errorf("library %s: %w", dep.LibraryID, h5pcontent.ErrLibraryNotFound)
	}
	if _, exists := r.libraries[dep.DependsOnID]; !exists {
		return fmt.Errorf("library %s: %w", dep.DependsOnID, h5pcontent.ErrLibraryNotFound)
	}
	for _, d := range r.deps {
		if d == dep {
			return nil
		}
	}
	r.deps = append(r.deps, dep)
	return nil
}

func (r *Repository) ListLibraryDependencies(ctx context.Context, libraryID uuid.UUID) ([]*h5pcontent.LibraryDependency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*h5pcontent.LibraryDependency{}
	for _, d := range r.deps {
		if d.LibraryID == libraryID {
			dep := d
			result = append(result, &dep)
		}
	}
	return result, nil
}

func (r *Repository) ListDependencyLibraries(ctx context.Context, libraryID uuid.UUID) ([]*h5pcontent.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	result := []*h5pcontent.Library{}
	for _, d := range r.deps {
		if d.LibraryID != libraryID || seen[d.DependsOnID] {
			continue
		}
		seen[d.DependsOnID] = true
		if lib, exists := r.libraries[d.DependsOnID]; exists {
			result = append(result, copyLibrary(lib))
		}
	}
	return result, nil
}

func (r *Repository) DeleteLibraryDependencies(ctx context.Context, libraryID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.deps[:0]
	for _, d := range r.deps {
		if d.LibraryID != libraryID {
			kept = append(kept, d)
		}
	}
	r.deps = kept
	return nil
}

// Organisation library flags

func (r *Repository) SetOrgLibrary(ctx context.Context, orgLibrary *h5pcontent.OrgLibrary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.libraries[orgLibrary.LibraryID]; !exists {
		return h5pcontent.ErrLibraryNotFound
	}
	c := *orgLibrary
	r.orgLibs[orgLibraryKey{orgLibrary.OrgID, orgLibrary.LibraryID}] = &c
	return nil
}

func (r *Repository) ListOrgLibraries(ctx context.Context, orgID uuid.UUID) ([]*h5pcontent.OrgLibrary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*h5pcontent.OrgLibrary{}
	for k, ol := range r.orgLibs {
		if k.orgID == orgID {
			c := *ol
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LibraryID.String() < result[j].LibraryID.String()
	})
	return result, nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *h5pcontent.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[content.ID]; exists {
		return fmt.Errorf("content %s already exists", content.ID)
	}
	r.contents[content.ID] = copyContent(content)
	return nil
}

// UpsertContent mirrors the scoped upsert of the SQL repository: a row owned
// by another organisation, or a soft-deleted row, is never overwritten and
// reports ErrContentNotFound.
func (r *Repository) UpsertContent(ctx context.Context, content *h5pcontent.Content) (*h5pcontent.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.contents[content.ID]
	if !exists {
		stored := copyContent(content)
		r.contents[content.ID] = stored
		return copyContent(stored), nil
	}
	if existing.OrgID != content.OrgID || existing.DeletedAt != nil {
		return nil, h5pcontent.ErrContentNotFound
	}

	existing.LibraryID = content.LibraryID
	existing.Title = content.Title
	existing.ContentJSON = append([]byte(nil), content.ContentJSON...)
	existing.Tags = append([]string{}, content.Tags...)
	existing.FolderPath = content.FolderPath
	existing.UpdatedAt = content.UpdatedAt
	return copyContent(existing), nil
}

func (r *Repository) GetContent(ctx context.Context, id, orgID uuid.UUID) (*h5pcontent.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	content, exists := r.contents[id]
	if !exists || content.OrgID != orgID || content.DeletedAt != nil {
		return nil, h5pcontent.ErrContentNotFound
	}
	return copyContent(content), nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *h5pcontent.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.contents[content.ID]
	if !exists || existing.OrgID != content.OrgID || existing.DeletedAt != nil {
		return h5pcontent.ErrContentNotFound
	}
	r.contents[content.ID] = copyContent(content)
	return nil
}

func (r *Repository) DeleteContent(ctx context.Context, id, orgID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.contents[id]
	if !exists || c.OrgID != orgID || c.DeletedAt != nil {
		return h5pcontent.ErrContentNotFound
	}

	now := time.Now().UTC()
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}

func (r *Repository) ListContent(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*h5pcontent.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live []*h5pcontent.Content
	for _, c := range r.contents {
		if c.OrgID == orgID && c.DeletedAt == nil {
			live = append(live, c)
		}
	}

	// Sort by created_at descending, id as tie-breaker for stable pages
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].ID.String() > live[j].ID.String()
	})

	result := []*h5pcontent.Content{}
	if offset >= len(live) {
		return result, nil
	}
	end := offset + limit
	if end > len(live) {
		end = len(live)
	}
	for _, c := range live[offset:end] {
		result = append(result, copyContent(c))
	}
	return result, nil
}

func (r *Repository) CountContent(ctx context.Context, orgID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, c := range r.contents {
		if c.OrgID == orgID && c.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *Repository) ContentSlugExists(ctx context.Context, orgID uuid.UUID, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.contents {
		if c.OrgID == orgID && c.DeletedAt == nil && c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) ContentIDExists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.contents[id]
	return exists, nil
}

// Helper functions

func newerThan(a, b *h5pcontent.Library) bool {
	if a.MajorVersion != b.MajorVersion {
		return a.MajorVersion > b.MajorVersion
	}
	if a.MinorVersion != b.MinorVersion {
		return a.MinorVersion > b.MinorVersion
	}
	return a.PatchVersion > b.PatchVersion
}

func copyLibrary(l *h5pcontent.Library) *h5pcontent.Library {
	c := *l
	if l.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(l.Metadata))
		for k, v := range l.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func copyContent(content *h5pcontent.Content) *h5pcontent.Content {
	c := *content
	c.ContentJSON = append([]byte(nil), content.ContentJSON...)
	if content.Tags != nil {
		c.Tags = append([]string{}, content.Tags...)
	}
	if content.DeletedAt != nil {
		t := *content.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

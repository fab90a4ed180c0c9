package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements h5pcontent.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var (
	_ h5pcontent.Repository            = (*Repository)(nil)
	_ h5pcontent.DependencyTreeQuerier = (*Repository)(nil)
)

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "slug") {
				return fmt.Errorf("content slug already exists")
			}
			if strings.Contains(pgErr.ConstraintName, "content") {
				return fmt.Errorf("content already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			if strings.HasPrefix(operation, "delete library") {
				return fmt.Errorf("%s: %w", operation, h5pcontent.ErrLibraryInUse)
			}
			return fmt.Errorf("%s: referenced library: %w", operation, h5pcontent.ErrLibraryNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%s: value rejected by constraint %s", operation, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Library operations

const libraryColumns = `l.id, l.machine_name, l.major_version, l.minor_version, l.patch_version,
	l.title, l.origin, l.runnable, l.restricted, l.metadata, l.package_path, l.extracted_path,
	l.created_at, l.updated_at`

func scanLibrary(row pgx.Row) (*h5pcontent.Library, error) {
	var lib h5pcontent.Library
	var origin string
	var metadata []byte
	err := row.Scan(
		&lib.ID, &lib.MachineName, &lib.MajorVersion, &lib.MinorVersion, &lib.PatchVersion,
		&lib.Title, &origin, &lib.Runnable, &lib.Restricted, &metadata,
		&lib.PackagePath, &lib.ExtractedPath, &lib.CreatedAt, &lib.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lib.Origin = h5pcontent.LibraryOrigin(origin)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &lib.Metadata); err != nil {
			return nil, fmt.Errorf("decode library metadata: %w", err)
		}
	}
	return &lib, nil
}

func (r *Repository) getLibrary(ctx context.Context, op, query string, args ...interface{}) (*h5pcontent.Library, error) {
	lib, err := scanLibrary(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, h5pcontent.ErrLibraryNotFound
		}
		return nil, r.handlePostgresError(op, err)
	}
	return lib, nil
}

func (r *Repository) GetLibrary(ctx context.Context, id uuid.UUID) (*h5pcontent.Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM library l WHERE l.id = $1`
	return r.getLibrary(ctx, "get library", query, id)
}

func (r *Repository) GetLibraryByMachineName(ctx context.Context, machineName string) (*h5pcontent.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM library l
		WHERE l.machine_name = $1
		ORDER BY l.major_version DESC, l.minor_version DESC, l.patch_version DESC
		LIMIT 1`
	return r.getLibrary(ctx, "get library by machine name", query, machineName)
}

func (r *Repository) GetLibraryByVersion(ctx context.Context, machineName string, major, minor, patch int) (*h5pcontent.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM library l
		WHERE l.machine_name = $1 AND l.major_version = $2 AND l.minor_version = $3 AND l.patch_version = $4`
	return r.getLibrary(ctx, "get library by version", query, machineName, major, minor, patch)
}

func (r *Repository) ListLibraries(ctx context.Context) ([]*h5pcontent.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM library l
		ORDER BY l.machine_name, l.major_version DESC, l.minor_version DESC, l.patch_version DESC`
	return r.queryLibraries(ctx, "list libraries", query)
}

func (r *Repository) queryLibraries(ctx context.Context, op, query string, args ...interface{}) ([]*h5pcontent.Library, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(op, err)
	}
	defer rows.Close()

	libs := []*h5pcontent.Library{}
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, r.handlePostgresError(op, err)
		}
		libs = append(libs, lib)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(op, err)
	}
	return libs, nil
}

// UpsertLibrary inserts or refreshes a library keyed by its version tuple.
// The stored ID survives re-registration.
func (r *Repository) UpsertLibrary(ctx context.Context, library *h5pcontent.Library) (*h5pcontent.Library, error) {
	id := library.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	metadata := library.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode library metadata: %w", err)
	}

	query := `
		INSERT INTO library AS l (
			id, machine_name, major_version, minor_version, patch_version,
			title, origin, runnable, restricted, metadata, package_path, extracted_path,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14)
		ON CONFLICT (machine_name, major_version, minor_version, patch_version) DO UPDATE SET
			title = EXCLUDED.title,
			origin = EXCLUDED.origin,
			runnable = EXCLUDED.runnable,
			restricted = EXCLUDED.restricted,
			metadata = EXCLUDED.metadata,
			package_path = EXCLUDED.package_path,
			extracted_path = EXCLUDED.extracted_path,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + libraryColumns

	saved, err := scanLibrary(r.db.QueryRow(ctx, query,
		id, library.MachineName, library.MajorVersion, library.MinorVersion, library.PatchVersion,
		library.Title, string(library.Origin), library.Runnable, library.Restricted, string(metadataJSON),
		library.PackagePath, library.ExtractedPath, library.CreatedAt, library.UpdatedAt))
	if err != nil {
		return nil, r.handlePostgresError("upsert library", err)
	}
	return saved, nil
}

// DeleteLibrary removes a library. Dependency edges and org flags cascade;
// content rows referencing it make the delete fail with ErrLibraryInUse.
func (r *Repository) DeleteLibrary(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM library WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete library", err)
	}
	if tag.RowsAffected() == 0 {
		return h5pcontent.ErrLibraryNotFound
	}
	return nil
}

func (r *Repository) DeleteLibraryByMachineName(ctx context.Context, machineName string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM library WHERE machine_name = $1`, machineName)
	if err != nil {
		return r.handlePostgresError("delete library by machine name", err)
	}
	if tag.RowsAffected() == 0 {
		return h5pcontent.ErrLibraryNotFound
	}
	return nil
}

// Dependency edge operations

func (r *Repository) AddLibraryDependency(ctx context.Context, dep h5pcontent.LibraryDependency) error {
	query := `
		INSERT INTO library_dependency (library_id, depends_on_id, dependency_type)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	_, err := r.db.Exec(ctx, query, dep.LibraryID, dep.DependsOnID, string(dep.DependencyType))
	if err != nil {
		return r.handlePostgresError("add library dependency", err)
	}
	return nil
}

func (r *Repository) ListLibraryDependencies(ctx context.Context, libraryID uuid.UUID) ([]*h5pcontent.LibraryDependency, error) {
	query := `
		SELECT library_id, depends_on_id, dependency_type
		FROM library_dependency
		WHERE library_id = $1
		ORDER BY dependency_type, depends_on_id`

	rows, err := r.db.Query(ctx, query, libraryID)
	if err != nil {
		return nil, r.handlePostgresError("list library dependencies", err)
	}
	defer rows.Close()

	deps := []*h5pcontent.LibraryDependency{}
	for rows.Next() {
		var dep h5pcontent.LibraryDependency
		var depType string
		if err := rows.Scan(&dep.LibraryID, &dep.DependsOnID, &depType); err != nil {
			return nil, r.handlePostgresError("scan library dependency", err)
		}
		dep.DependencyType = h5pcontent.DependencyType(depType)
		deps = append(deps, &dep)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate library dependencies", err)
	}
	return deps, nil
}

func (r *Repository) ListDependencyLibraries(ctx context.Context, libraryID uuid.UUID) ([]*h5pcontent.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM library l
		WHERE l.id IN (SELECT depends_on_id FROM library_dependency WHERE library_id = $1)
		ORDER BY l.machine_name, l.major_version, l.minor_version, l.patch_version`
	return r.queryLibraries(ctx, "list dependency libraries", query, libraryID)
}

func (r *Repository) DeleteLibraryDependencies(ctx context.Context, libraryID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM library_dependency WHERE library_id = $1`, libraryID)
	if err != nil {
		return r.handlePostgresError("delete library dependencies", err)
	}
	return nil
}

// FullDependencyTree computes the dependency closure in one recursive query.
// UNION drops repeated (id, depth) pairs and the depth bound stops cycles.
func (r *Repository) FullDependencyTree(ctx context.Context, libraryID uuid.UUID) ([]*h5pcontent.Library, error) {
	query := `
		WITH RECURSIVE tree (id, depth) AS (
			SELECT d.depends_on_id, 1
			FROM library_dependency d
			WHERE d.library_id = $1
			UNION
			SELECT d.depends_on_id, t.depth + 1
			FROM library_dependency d
			JOIN tree t ON d.library_id = t.id
			WHERE t.depth < $2
		)
		SELECT ` + libraryColumns + `
		FROM library l
		WHERE l.id IN (SELECT id FROM tree) AND l.id <> $1
		ORDER BY l.machine_name, l.major_version, l.minor_version, l.patch_version`
	return r.queryLibraries(ctx, "full dependency tree", query, libraryID, h5pcontent.MaxDependencyDepth)
}

// Organisation library flags

func (r *Repository) SetOrgLibrary(ctx context.Context, orgLibrary *h5pcontent.OrgLibrary) error {
	query := `
		INSERT INTO org_library (org_id, library_id, enabled, restricted, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (org_id, library_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			restricted = EXCLUDED.restricted,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		orgLibrary.OrgID, orgLibrary.LibraryID, orgLibrary.Enabled, orgLibrary.Restricted, orgLibrary.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("set org library", err)
	}
	return nil
}

func (r *Repository) ListOrgLibraries(ctx context.Context, orgID uuid.UUID) ([]*h5pcontent.OrgLibrary, error) {
	query := `
		SELECT org_id, library_id, enabled, restricted, updated_at
		FROM org_library
		WHERE org_id = $1
		ORDER BY library_id`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, r.handlePostgresError("list org libraries", err)
	}
	defer rows.Close()

	result := []*h5pcontent.OrgLibrary{}
	for rows.Next() {
		var ol h5pcontent.OrgLibrary
		if err := rows.Scan(&ol.OrgID, &ol.LibraryID, &ol.Enabled, &ol.Restricted, &ol.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("scan org library", err)
		}
		result = append(result, &ol)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate org libraries", err)
	}
	return result, nil
}

// Content operations

const contentColumns = `id, org_id, library_id, created_by, slug, title, description,
	content_json, tags, status, storage_path, folder_path, created_at, updated_at, deleted_at`

func scanContent(row pgx.Row) (*h5pcontent.Content, error) {
	var c h5pcontent.Content
	var payload, status string
	err := row.Scan(
		&c.ID, &c.OrgID, &c.LibraryID, &c.CreatedBy, &c.Slug, &c.Title, &c.Description,
		&payload, &c.Tags, &status, &c.StoragePath, &c.FolderPath,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		return nil, err
	}
	c.ContentJSON = json.RawMessage(payload)
	c.Status = h5pcontent.ContentStatus(status)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c, nil
}

func contentTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (r *Repository) CreateContent(ctx context.Context, content *h5pcontent.Content) error {
	query := `
		INSERT INTO content (
			id, org_id, library_id, created_by, slug, title, description,
			content_json, tags, status, storage_path, folder_path, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		content.ID, content.OrgID, content.LibraryID, content.CreatedBy, content.Slug,
		content.Title, content.Description, string(content.ContentJSON), contentTags(content.Tags),
		string(content.Status), content.StoragePath, content.FolderPath,
		content.CreatedAt, content.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create content", err)
	}
	return nil
}

// UpsertContent is the single-statement save used by the editor. An existing
// row is only overwritten when it belongs to the same organisation and is
// live; otherwise no row comes back and the content is reported missing.
// Slug, description, status and creation fields of an existing row are kept.
func (r *Repository) UpsertContent(ctx context.Context, content *h5pcontent.Content) (*h5pcontent.Content, error) {
	query := `
		INSERT INTO content AS c (
			id, org_id, library_id, created_by, slug, title, description,
			content_json, tags, status, storage_path, folder_path, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			library_id = EXCLUDED.library_id,
			title = EXCLUDED.title,
			content_json = EXCLUDED.content_json,
			tags = EXCLUDED.tags,
			folder_path = EXCLUDED.folder_path,
			updated_at = EXCLUDED.updated_at
		WHERE c.org_id = EXCLUDED.org_id AND c.deleted_at IS NULL
		RETURNING ` + contentColumns

	saved, err := scanContent(r.db.QueryRow(ctx, query,
		content.ID, content.OrgID, content.LibraryID, content.CreatedBy, content.Slug,
		content.Title, content.Description, string(content.ContentJSON), contentTags(content.Tags),
		string(content.Status), content.StoragePath, content.FolderPath,
		content.CreatedAt, content.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, h5pcontent.ErrContentNotFound
		}
		return nil, r.handlePostgresError("upsert content", err)
	}
	return saved, nil
}

func (r *Repository) GetContent(ctx context.Context, id, orgID uuid.UUID) (*h5pcontent.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`

	content, err := scanContent(r.db.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, h5pcontent.ErrContentNotFound
		}
		return nil, r.handlePostgresError("get content", err)
	}
	return content, nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *h5pcontent.Content) error {
	query := `
		UPDATE content SET
			title = $3, description = $4, content_json = $5, tags = $6,
			status = $7, updated_at = $8
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query,
		content.ID, content.OrgID, content.Title, content.Description,
		string(content.ContentJSON), contentTags(content.Tags), string(content.Status), content.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update content", err)
	}
	if tag.RowsAffected() == 0 {
		return h5pcontent.ErrContentNotFound
	}
	return nil
}

func (r *Repository) DeleteContent(ctx context.Context, id, orgID uuid.UUID) error {
	// Soft delete: storage objects are left in place
	query := `UPDATE content SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id, orgID)
	if err != nil {
		return r.handlePostgresError("delete content", err)
	}
	if tag.RowsAffected() == 0 {
		return h5pcontent.ErrContentNotFound
	}
	return nil
}

func (r *Repository) ListContent(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*h5pcontent.Content, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM content
		WHERE org_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	defer rows.Close()

	contents := []*h5pcontent.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan content", err)
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate content rows", err)
	}
	return contents, nil
}

func (r *Repository) CountContent(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM content WHERE org_id = $1 AND deleted_at IS NULL`, orgID).Scan(&n)
	if err != nil {
		return 0, r.handlePostgresError("count content", err)
	}
	return n, nil
}

func (r *Repository) ContentSlugExists(ctx context.Context, orgID uuid.UUID, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM content WHERE org_id = $1 AND slug = $2 AND deleted_at IS NULL)`
	if err := r.db.QueryRow(ctx, query, orgID, slug).Scan(&exists); err != nil {
		return false, r.handlePostgresError("check content slug", err)
	}
	return exists, nil
}

func (r *Repository) ContentIDExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM content WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, r.handlePostgresError("check content id", err)
	}
	return exists, nil
}

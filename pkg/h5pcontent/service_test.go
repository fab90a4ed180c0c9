package h5pcontent_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
	memoryrepo "github.com/tendant/h5p-content/pkg/h5pcontent/repo/memory"
	memorystorage "github.com/tendant/h5p-content/pkg/h5pcontent/storage/memory"
)

func newTestService(t *testing.T) (h5pcontent.Service, *memorystorage.Backend) {
	t.Helper()
	store := memorystorage.New()
	svc, err := h5pcontent.New(
		h5pcontent.WithRepository(memoryrepo.New()),
		h5pcontent.WithObjectStore(store),
	)
	require.NoError(t, err)
	return svc, store
}

func upsertLibrary(t *testing.T, svc h5pcontent.Service, name string, major, minor, patch int) *h5pcontent.Library {
	t.Helper()
	lib, err := svc.UpsertLibrary(context.Background(), &h5pcontent.Library{
		MachineName:  name,
		MajorVersion: major,
		MinorVersion: minor,
		PatchVersion: patch,
		Title:        name,
		Runnable:     true,
	})
	require.NoError(t, err)
	return lib
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := h5pcontent.New(h5pcontent.WithObjectStore(memorystorage.New()))
	assert.EqualError(t, err, "repository is required")

	_, err = h5pcontent.New(h5pcontent.WithRepository(memoryrepo.New()))
	assert.EqualError(t, err, "object store is required")
}

func TestLibraryRegistry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	v1 := upsertLibrary(t, svc, "H5P.Blanks", 1, 14, 0)
	upsertLibrary(t, svc, "H5P.Blanks", 1, 9, 3)

	lib, err := svc.UpsertLibrary(ctx, &h5pcontent.Library{
		MachineName: "H5P.Blanks", MajorVersion: 1, MinorVersion: 14, Title: "Fill in the Blanks",
	})
	require.NoError(t, err)
	assert.Equal(t, v1.ID, lib.ID)
	assert.Equal(t, "Fill in the Blanks", lib.Title)

	latest, err := svc.GetLibraryByMachineName(ctx, "H5P.Blanks")
	require.NoError(t, err)
	assert.Equal(t, "1.14.0", latest.VersionString())
	assert.Equal(t, "Fill in the Blanks", latest.Title)

	exact, err := svc.GetLibraryByVersion(ctx, "H5P.Blanks", 1, 9, 3)
	require.NoError(t, err)
	assert.Equal(t, "1.9.3", exact.VersionString())

	_, err = svc.GetLibraryByVersion(ctx, "H5P.Blanks", 2, 0, 0)
	assert.True(t, h5pcontent.IsNotFound(err))

	_, err = svc.UpsertLibrary(ctx, &h5pcontent.Library{MachineName: "bad name"})
	assert.ErrorIs(t, err, h5pcontent.ErrInvalidLibrary)

	require.NoError(t, svc.DeleteLibraryByMachineName(ctx, "H5P.Blanks"))
	_, err = svc.GetLibraryByMachineName(ctx, "H5P.Blanks")
	assert.True(t, h5pcontent.IsNotFound(err))
}

func TestAddLibraryDependency(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	col := upsertLibrary(t, svc, "H5P.Column", 1, 13, 0)
	text := upsertLibrary(t, svc, "H5P.Text", 1, 1, 0)

	dep := h5pcontent.LibraryDependency{LibraryID: col.ID, DependsOnID: text.ID, DependencyType: h5pcontent.DependencyPreloaded}
	require.NoError(t, svc.AddLibraryDependency(ctx, dep))
	require.NoError(t, svc.AddLibraryDependency(ctx, dep))

	edges, err := svc.ListLibraryDependencies(ctx, col.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	dep.DependencyType = "optional"
	assert.ErrorIs(t, svc.AddLibraryDependency(ctx, dep), h5pcontent.ErrInvalidDependencyType)

	missing := h5pcontent.LibraryDependency{LibraryID: col.ID, DependsOnID: uuid.New(), DependencyType: h5pcontent.DependencyEditor}
	assert.True(t, h5pcontent.IsNotFound(svc.AddLibraryDependency(ctx, missing)))

	require.NoError(t, svc.DeleteLibraryDependencies(ctx, col.ID))
	edges, err = svc.ListLibraryDependencies(ctx, col.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	_, err = svc.FullDependencyTree(ctx, uuid.New())
	assert.True(t, h5pcontent.IsNotFound(err))
}

func TestOrgLibraries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org := uuid.New()
	lib := upsertLibrary(t, svc, "H5P.Text", 1, 0, 0)

	require.NoError(t, svc.SetOrgLibrary(ctx, &h5pcontent.OrgLibrary{OrgID: org, LibraryID: lib.ID, Enabled: true}))
	require.NoError(t, svc.SetOrgLibrary(ctx, &h5pcontent.OrgLibrary{OrgID: org, LibraryID: lib.ID, Restricted: true}))

	flags, err := svc.ListOrgLibraries(ctx, org)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.False(t, flags[0].Enabled)
	assert.True(t, flags[0].Restricted)

	err = svc.SetOrgLibrary(ctx, &h5pcontent.OrgLibrary{OrgID: org, LibraryID: uuid.New()})
	assert.True(t, h5pcontent.IsNotFound(err))
}

func TestCreateContent_UnknownLibrary(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateContent(context.Background(), h5pcontent.CreateContentRequest{
		OrgID:       uuid.New(),
		UserID:      uuid.New(),
		LibraryName: "H5P.Test",
		Title:       "Anything",
	})
	require.Error(t, err)
	assert.True(t, h5pcontent.IsNotFound(err))
	assert.Contains(t, err.Error(), "H5P.Test")

	var notFound *h5pcontent.LibraryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "H5P.Test", notFound.MachineName)
}

func TestCreateContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org, user := uuid.New(), uuid.New()
	upsertLibrary(t, svc, "H5P.Test", 1, 2, 3)

	details, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{
		OrgID:       org,
		UserID:      user,
		LibraryName: "H5P.Test",
		Title:       "Hello, World!",
	})
	require.NoError(t, err)

	assert.Equal(t, "hello-world", details.Slug)
	assert.Equal(t, h5pcontent.ContentStatusDraft, details.Status)
	assert.Equal(t, user, details.CreatedBy)
	assert.JSONEq(t, `{}`, string(details.ContentJSON))
	assert.NotNil(t, details.Tags)
	assert.Equal(t, "h5p-content/"+org.String()+"/"+details.ID.String()+"/", details.StoragePath)
	assert.Equal(t, "H5P.Test", details.LibraryName)
	assert.Equal(t, "1.2.3", details.LibraryVersion)

	second, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: org, LibraryName: "H5P.Test", Title: "Hello World"})
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2", second.Slug)

	other, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: uuid.New(), LibraryName: "H5P.Test", Title: "Hello World"})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", other.Slug)

	untitled, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: org, LibraryName: "H5P.Test", Title: "日本語"})
	require.NoError(t, err)
	assert.Equal(t, "untitled", untitled.Slug)
}

func TestNullPayloadStoredAsEmptyObject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org, user := uuid.New(), uuid.New()
	upsertLibrary(t, svc, "H5P.Test", 1, 0, 0)

	created, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{
		OrgID: org, UserID: user, LibraryName: "H5P.Test", Title: "Null", Params: json.RawMessage(`null`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(created.ContentJSON))

	updated, err := svc.UpdateContent(ctx, h5pcontent.UpdateContentRequest{
		ContentID: created.ID, OrgID: org, UserID: user, Title: "Null", Params: json.RawMessage(" null "),
	})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(updated.ContentJSON))

	saved, err := svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{
		OrgID: org, UserID: user, ContentID: created.ID, Library: "H5P.Test", Title: "Null", Params: json.RawMessage(`null`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(saved.Content.ContentJSON))

	params, err := svc.GetEditorParams(ctx, created.ID, org)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(params.Params))
}

func TestContentTenantScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org, intruder := uuid.New(), uuid.New()
	upsertLibrary(t, svc, "H5P.Text", 1, 0, 0)

	c, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: org, LibraryName: "H5P.Text", Title: "Private"})
	require.NoError(t, err)

	_, err = svc.GetContent(ctx, c.ID, intruder)
	assert.True(t, h5pcontent.IsNotFound(err))

	_, err = svc.UpdateContent(ctx, h5pcontent.UpdateContentRequest{ContentID: c.ID, OrgID: intruder, Title: "Mine now"})
	assert.True(t, h5pcontent.IsNotFound(err))

	_, err = svc.GetEditorParams(ctx, c.ID, intruder)
	assert.True(t, h5pcontent.IsNotFound(err))

	_, err = svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{
		OrgID: intruder, ContentID: c.ID, Library: "H5P.Text", Title: "Mine now",
	})
	assert.True(t, h5pcontent.IsNotFound(err))

	assert.True(t, h5pcontent.IsNotFound(svc.DeleteContent(ctx, c.ID, intruder)))

	got, err := svc.GetContent(ctx, c.ID, org)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)
}

func TestUpdateContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org := uuid.New()
	upsertLibrary(t, svc, "H5P.Text", 1, 0, 0)

	c, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{
		OrgID: org, LibraryName: "H5P.Text", Title: "Original", Tags: []string{"a"},
		Params: json.RawMessage(`{"text":"v1"}`),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateContent(ctx, h5pcontent.UpdateContentRequest{
		ContentID: c.ID, OrgID: org, Title: "Changed", Status: h5pcontent.ContentStatusArchived,
	})
	require.NoError(t, err)
	assert.Equal(t, "Changed", updated.Title)
	assert.Equal(t, "original", updated.Slug)
	assert.Equal(t, h5pcontent.ContentStatusArchived, updated.Status)
	assert.JSONEq(t, `{}`, string(updated.ContentJSON))
	assert.Empty(t, updated.Tags)

	updated, err = svc.UpdateContent(ctx, h5pcontent.UpdateContentRequest{ContentID: c.ID, OrgID: org, Title: "Again"})
	require.NoError(t, err)
	assert.Equal(t, h5pcontent.ContentStatusDraft, updated.Status)

	_, err = svc.UpdateContent(ctx, h5pcontent.UpdateContentRequest{ContentID: c.ID, OrgID: org, Status: "deleted"})
	assert.ErrorIs(t, err, h5pcontent.ErrInvalidStatus)
}

func TestDeleteContent_Soft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org := uuid.New()
	upsertLibrary(t, svc, "H5P.Text", 1, 0, 0)

	c, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: org, LibraryName: "H5P.Text", Title: "Gone"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteContent(ctx, c.ID, org))

	_, err = svc.GetContent(ctx, c.ID, org)
	assert.True(t, h5pcontent.IsNotFound(err))
	assert.True(t, h5pcontent.IsNotFound(svc.DeleteContent(ctx, c.ID, org)))

	// a deleted content cannot be brought back through the editor
	_, err = svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{OrgID: org, ContentID: c.ID, Library: "H5P.Text", Title: "Back"})
	assert.True(t, h5pcontent.IsNotFound(err))

	// the slug is free again
	again, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: org, LibraryName: "H5P.Text", Title: "Gone"})
	require.NoError(t, err)
	assert.Equal(t, "gone", again.Slug)

	list, err := svc.ListContent(ctx, h5pcontent.ListContentRequest{OrgID: org})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestListContent_Pagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org := uuid.New()
	upsertLibrary(t, svc, "H5P.Text", 1, 0, 0)

	for i := 0; i < 5; i++ {
		_, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: org, LibraryName: "H5P.Text", Title: "Item"})
		require.NoError(t, err)
	}
	_, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: uuid.New(), LibraryName: "H5P.Text", Title: "Other"})
	require.NoError(t, err)

	seen := map[uuid.UUID]bool{}
	for offset := 0; offset < 6; offset += 2 {
		page, err := svc.ListContent(ctx, h5pcontent.ListContentRequest{OrgID: org, Limit: 2, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
		for _, item := range page.Items {
			assert.False(t, seen[item.ID])
			seen[item.ID] = true
			assert.Equal(t, "H5P.Text", item.LibraryName)
		}
	}
	assert.Len(t, seen, 5)

	page, err := svc.ListContent(ctx, h5pcontent.ListContentRequest{OrgID: org, Limit: 0, Offset: -4})
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Len(t, page.Items, 5)

	page, err = svc.ListContent(ctx, h5pcontent.ListContentRequest{OrgID: org, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)

	empty, err := svc.ListContent(ctx, h5pcontent.ListContentRequest{OrgID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestGetEditorParams(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org := uuid.New()

	col := upsertLibrary(t, svc, "H5P.Column", 1, 13, 2)
	text := upsertLibrary(t, svc, "H5P.Text", 1, 1, 7)
	require.NoError(t, svc.AddLibraryDependency(ctx, h5pcontent.LibraryDependency{
		LibraryID: col.ID, DependsOnID: text.ID, DependencyType: h5pcontent.DependencyPreloaded,
	}))

	c, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{
		OrgID: org, LibraryName: "H5P.Column", Title: "Lesson", Params: json.RawMessage(`{"content":[]}`),
	})
	require.NoError(t, err)

	params, err := svc.GetEditorParams(ctx, c.ID, org)
	require.NoError(t, err)
	assert.Equal(t, "H5P.Column 1.13", params.Library)
	assert.JSONEq(t, `{"content":[]}`, string(params.Params))
	assert.JSONEq(t, `{
		"title": "Lesson",
		"mainLibrary": "H5P.Column",
		"preloadedDependencies": [{"machineName": "H5P.Text", "majorVersion": 1, "minorVersion": 1}]
	}`, string(params.H5P))
}

// brokenDependencyRepo fails every dependency lookup and delegates the rest.
type brokenDependencyRepo struct {
	*memoryrepo.Repository
}

func (r brokenDependencyRepo) ListDependencyLibraries(ctx context.Context, libraryID uuid.UUID) ([]*h5pcontent.Library, error) {
	return nil, errors.New("connection reset")
}

func TestGetEditorParams_DependencyLookupFails(t *testing.T) {
	var logs bytes.Buffer
	repo := brokenDependencyRepo{Repository: memoryrepo.New()}
	svc, err := h5pcontent.New(
		h5pcontent.WithRepository(repo),
		h5pcontent.WithObjectStore(memorystorage.New()),
		h5pcontent.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	require.NoError(t, err)

	ctx := context.Background()
	org := uuid.New()
	upsertLibrary(t, svc, "H5P.Column", 1, 13, 2)

	c, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{
		OrgID: org, LibraryName: "H5P.Column", Title: "Lesson", Params: json.RawMessage(`{"content":[]}`),
	})
	require.NoError(t, err)

	params, err := svc.GetEditorParams(ctx, c.ID, org)
	require.NoError(t, err)
	assert.Equal(t, "H5P.Column 1.13", params.Library)
	assert.JSONEq(t, `{"content":[]}`, string(params.Params))

	var meta map[string]any
	require.NoError(t, json.Unmarshal(params.H5P, &meta))
	assert.NotContains(t, meta, "preloadedDependencies")
	assert.Equal(t, "Lesson", meta["title"])
	assert.Equal(t, "H5P.Column", meta["mainLibrary"])

	assert.Contains(t, logs.String(), "dependency lookup failed")
}

func TestSaveFromEditor_MigratesTempFiles(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	org, user := uuid.New(), uuid.New()
	upsertLibrary(t, svc, "H5P.Image", 1, 1, 0)

	require.NoError(t, store.Upload(ctx, h5pcontent.UploadParams{
		Key: h5pcontent.TempKey("u1/t1/photo.jpg"), Data: []byte("jpeg"),
	}))

	result, err := svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{
		OrgID:   org,
		UserID:  user,
		Library: "H5P.Image 1.1",
		Title:   "Photo",
		Params:  json.RawMessage(`{"path":"u1/t1/photo.jpg#tmp"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"path":"t1_photo.jpg"}`, string(result.Content.ContentJSON))
	assert.Equal(t, []string{"h5p-temp/u1/t1/photo.jpg"}, result.CleanupKeys)
	assert.Equal(t, "photo", result.Content.Slug)
	assert.NotEqual(t, uuid.Nil, result.Content.ID)

	file, err := svc.GetContentFile(ctx, result.Content.ID, org, "t1_photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(file.Data))
	assert.Equal(t, "image/jpeg", file.ContentType)

	assert.Eventually(t, func() bool {
		return len(store.Keys(h5pcontent.TempPrefix)) == 0
	}, time.Second, 10*time.Millisecond)

	stored, err := svc.GetContent(ctx, result.Content.ID, org)
	require.NoError(t, err)
	assert.Equal(t, `{"path":"t1_photo.jpg"}`, string(stored.ContentJSON))
}

func TestSaveFromEditor_ClientSuppliedID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	org := uuid.New()
	upsertLibrary(t, svc, "H5P.Text", 1, 0, 0)
	id := uuid.New()

	first, err := svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{OrgID: org, ContentID: id, Library: "H5P.Text", Title: "Draft"})
	require.NoError(t, err)
	assert.Equal(t, id, first.Content.ID)
	assert.Empty(t, first.CleanupKeys)

	second, err := svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{
		OrgID: org, ContentID: id, Library: "H5P.Text", Title: "Final", Params: json.RawMessage(`{"v":2}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", second.Content.Slug)
	assert.Equal(t, "Final", second.Content.Title)

	list, err := svc.ListContent(ctx, h5pcontent.ListContentRequest{OrgID: org})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)

	_, err = svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{OrgID: org, Library: "H5P.Missing 1.0"})
	assert.True(t, h5pcontent.IsNotFound(err))

	_, err = svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{OrgID: org, Library: "H5P.Text x.y"})
	assert.ErrorIs(t, err, h5pcontent.ErrInvalidLibrary)
}

func TestSaveFromEditor_ForeignIDCopiesNothing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner, intruder, user := uuid.New(), uuid.New(), uuid.New()
	upsertLibrary(t, svc, "H5P.Image", 1, 0, 0)

	owned, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: owner, LibraryName: "H5P.Image", Title: "Owned"})
	require.NoError(t, err)
	deleted, err := svc.CreateContent(ctx, h5pcontent.CreateContentRequest{OrgID: intruder, LibraryName: "H5P.Image", Title: "Gone"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteContent(ctx, deleted.ID, intruder))

	putTemp(t, store, user.String()+"/t1/photo.jpg", "jpeg")
	params := json.RawMessage(`{"path":"` + user.String() + `/t1/photo.jpg#tmp"}`)

	for _, id := range []uuid.UUID{owned.ID, deleted.ID} {
		_, err = svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{
			OrgID: intruder, UserID: user, ContentID: id, Library: "H5P.Image", Title: "Stolen", Params: params,
		})
		assert.ErrorIs(t, err, h5pcontent.ErrContentNotFound)
		assert.Empty(t, store.Keys(h5pcontent.ContentStoragePath(intruder, id)))
	}

	assert.Len(t, store.Keys(h5pcontent.TempPrefix), 1)

	got, err := svc.GetContent(ctx, owned.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Owned", got.Title)
}

func TestSaveFromEditor_UploadFailurePersistsNothing(t *testing.T) {
	repo := memoryrepo.New()
	store := &mockStore{}
	store.On("Download", mock.Anything, "h5p-temp/u1/t1/photo.jpg").Return([]byte("jpeg"), nil)
	store.On("Upload", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	svc, err := h5pcontent.New(h5pcontent.WithRepository(repo), h5pcontent.WithObjectStore(store))
	require.NoError(t, err)
	ctx := context.Background()
	org := uuid.New()
	upsertLibrary(t, svc, "H5P.Image", 1, 0, 0)

	id := uuid.New()
	_, err = svc.SaveFromEditor(ctx, h5pcontent.SaveFromEditorRequest{
		OrgID: org, ContentID: id, Library: "H5P.Image", Title: "Photo",
		Params: json.RawMessage(`{"path":"u1/t1/photo.jpg#tmp"}`),
	})
	require.Error(t, err)
	assert.False(t, h5pcontent.IsNotFound(err))

	_, err = svc.GetContent(ctx, id, org)
	assert.True(t, h5pcontent.IsNotFound(err))
	store.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestFiles(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	user := uuid.New()

	tmp, err := svc.UploadTempFile(ctx, h5pcontent.UploadTempFileRequest{
		UserID: user, FileName: `C:\Users\me\clip.MP4`, Data: []byte("video"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tmp.Path, user.String()+"/"))
	assert.True(t, strings.HasSuffix(tmp.Path, "/clip.MP4#tmp"))
	assert.Equal(t, "video/mp4", tmp.ContentType)
	assert.Equal(t, 5, tmp.Size)
	assert.Equal(t, h5pcontent.TempKey(strings.TrimSuffix(tmp.Path, "#tmp")), tmp.Key)

	ct, ok := store.ContentType(tmp.Key)
	require.True(t, ok)
	assert.Equal(t, "video/mp4", ct)

	file, err := svc.GetTempFile(ctx, strings.TrimSuffix(tmp.Path, "#tmp"))
	require.NoError(t, err)
	assert.Equal(t, "video", string(file.Data))

	for _, name := range []string{"", "..", "/", "evil#tmp"} {
		_, err := svc.UploadTempFile(ctx, h5pcontent.UploadTempFileRequest{UserID: user, FileName: name})
		assert.ErrorIs(t, err, h5pcontent.ErrInvalidFileName, name)
	}

	_, err = svc.UploadTempFile(ctx, h5pcontent.UploadTempFileRequest{FileName: "ok.png"})
	assert.Error(t, err)

	_, err = svc.GetTempFile(ctx, "u1/../../secrets")
	assert.ErrorIs(t, err, h5pcontent.ErrFileNotFound)

	_, err = svc.GetContentFile(ctx, uuid.New(), uuid.New(), "missing.png")
	assert.ErrorIs(t, err, h5pcontent.ErrFileNotFound)
}

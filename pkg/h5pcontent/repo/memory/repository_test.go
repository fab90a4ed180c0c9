package memory_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
	"github.com/tendant/h5p-content/pkg/h5pcontent/repo/memory"
)

func TestRepository_LibraryVersions(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	for _, v := range [][3]int{{1, 2, 0}, {1, 10, 0}, {1, 9, 9}, {0, 99, 99}} {
		_, err := repo.UpsertLibrary(ctx, &h5pcontent.Library{
			MachineName: "H5P.Video", MajorVersion: v[0], MinorVersion: v[1], PatchVersion: v[2],
		})
		require.NoError(t, err)
	}

	latest, err := repo.GetLibraryByMachineName(ctx, "H5P.Video")
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", latest.VersionString())

	_, err = repo.GetLibraryByMachineName(ctx, "H5P.Audio")
	assert.ErrorIs(t, err, h5pcontent.ErrLibraryNotFound)

	libs, err := repo.ListLibraries(ctx)
	require.NoError(t, err)
	assert.Len(t, libs, 4)
}

func TestRepository_UpsertLibraryKeepsIdentity(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := repo.UpsertLibrary(ctx, &h5pcontent.Library{MachineName: "H5P.Text", MajorVersion: 1, Title: "Old", CreatedAt: created})
	require.NoError(t, err)

	second, err := repo.UpsertLibrary(ctx, &h5pcontent.Library{
		MachineName: "H5P.Text", MajorVersion: 1, Title: "New",
		Metadata: map[string]interface{}{"author": "someone"},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, created, second.CreatedAt)
	assert.Equal(t, "New", second.Title)

	// returned copies are detached from storage
	second.Metadata["author"] = "mutated"
	stored, err := repo.GetLibrary(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "someone", stored.Metadata["author"])
}

func TestRepository_DeleteCascades(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	org := uuid.New()

	a, err := repo.UpsertLibrary(ctx, &h5pcontent.Library{MachineName: "A", MajorVersion: 1})
	require.NoError(t, err)
	b, err := repo.UpsertLibrary(ctx, &h5pcontent.Library{MachineName: "B", MajorVersion: 1})
	require.NoError(t, err)

	require.NoError(t, repo.AddLibraryDependency(ctx, h5pcontent.LibraryDependency{LibraryID: a.ID, DependsOnID: b.ID, DependencyType: h5pcontent.DependencyPreloaded}))
	require.NoError(t, repo.SetOrgLibrary(ctx, &h5pcontent.OrgLibrary{OrgID: org, LibraryID: b.ID, Enabled: true}))

	deps, err := repo.ListDependencyLibraries(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "B", deps[0].MachineName)

	require.NoError(t, repo.DeleteLibraryByMachineName(ctx, "B"))

	edges, err := repo.ListLibraryDependencies(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	flags, err := repo.ListOrgLibraries(ctx, org)
	require.NoError(t, err)
	assert.Empty(t, flags)

	assert.ErrorIs(t, repo.DeleteLibrary(ctx, b.ID), h5pcontent.ErrLibraryNotFound)
	assert.ErrorIs(t, repo.AddLibraryDependency(ctx, h5pcontent.LibraryDependency{LibraryID: a.ID, DependsOnID: b.ID, DependencyType: h5pcontent.DependencyPreloaded}), h5pcontent.ErrLibraryNotFound)
}

func TestRepository_DeleteLibraryInUse(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	org := uuid.New()

	v1, err := repo.UpsertLibrary(ctx, &h5pcontent.Library{MachineName: "H5P.Quiz", MajorVersion: 1})
	require.NoError(t, err)
	v2, err := repo.UpsertLibrary(ctx, &h5pcontent.Library{MachineName: "H5P.Quiz", MajorVersion: 2})
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, repo.CreateContent(ctx, &h5pcontent.Content{ID: id, OrgID: org, LibraryID: v1.ID, Slug: "quiz"}))

	assert.ErrorIs(t, repo.DeleteLibrary(ctx, v1.ID), h5pcontent.ErrLibraryInUse)
	assert.ErrorIs(t, repo.DeleteLibraryByMachineName(ctx, "H5P.Quiz"), h5pcontent.ErrLibraryInUse)

	// nothing was removed, not even the unreferenced version
	_, err = repo.GetLibrary(ctx, v2.ID)
	require.NoError(t, err)
	got, err := repo.GetContent(ctx, id, org)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, got.LibraryID)

	// soft-deleted rows still hold the reference
	require.NoError(t, repo.DeleteContent(ctx, id, org))
	assert.ErrorIs(t, repo.DeleteLibrary(ctx, v1.ID), h5pcontent.ErrLibraryInUse)

	require.NoError(t, repo.DeleteLibrary(ctx, v2.ID))
}

func TestRepository_UpsertContentScoping(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	org := uuid.New()
	id := uuid.New()

	content := &h5pcontent.Content{
		ID: id, OrgID: org, Slug: "quiz", Title: "Quiz",
		ContentJSON: json.RawMessage(`{"a":  1}`), Tags: []string{"x"},
		Status: h5pcontent.ContentStatusDraft,
	}
	saved, err := repo.UpsertContent(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, `{"a":  1}`, string(saved.ContentJSON))

	// update keeps slug and status, replaces the payload
	_, err = repo.UpsertContent(ctx, &h5pcontent.Content{
		ID: id, OrgID: org, Slug: "ignored", Title: "Quiz 2",
		ContentJSON: json.RawMessage(`{"b":2}`), Status: h5pcontent.ContentStatusPublished,
	})
	require.NoError(t, err)

	got, err := repo.GetContent(ctx, id, org)
	require.NoError(t, err)
	assert.Equal(t, "quiz", got.Slug)
	assert.Equal(t, "Quiz 2", got.Title)
	assert.Equal(t, h5pcontent.ContentStatusDraft, got.Status)
	assert.Equal(t, `{"b":2}`, string(got.ContentJSON))

	// another organisation cannot overwrite the row
	_, err = repo.UpsertContent(ctx, &h5pcontent.Content{ID: id, OrgID: uuid.New(), Title: "Stolen"})
	assert.ErrorIs(t, err, h5pcontent.ErrContentNotFound)

	// soft-deleted rows stay deleted
	require.NoError(t, repo.DeleteContent(ctx, id, org))
	_, err = repo.UpsertContent(ctx, &h5pcontent.Content{ID: id, OrgID: org, Title: "Back"})
	assert.ErrorIs(t, err, h5pcontent.ErrContentNotFound)

	exists, err := repo.ContentSlugExists(ctx, org, "quiz")
	require.NoError(t, err)
	assert.False(t, exists)

	// the ID stays taken
	exists, err = repo.ContentIDExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ContentIDExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_ListContentOrder(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	org := uuid.New()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, repo.CreateContent(ctx, &h5pcontent.Content{
			ID: id, OrgID: org, Slug: id.String(), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := repo.ListContent(ctx, org, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	page, err = repo.ListContent(ctx, org, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[0], page[1].ID)

	page, err = repo.ListContent(ctx, org, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	n, err := repo.CountContent(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rossigee/irp-integration/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close() // Ignore error in test
	})
	return store
}

func TestNewStore_InMemory(t *testing.T) {
	store := newTestStore(t)
	assert.NotNil(t, store.db)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(Migrations), version)
}

func TestNewStore_FilePathReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveSubmission(context.Background(), &SubmissionRecord{
		ID: "persisted", Kind: KindWorkflow, RemoteID: 1, Status: StatusSubmitted, RequestJSON: `{}`,
	}))
	require.NoError(t, store.Close())

	// migrations are not re-applied on reopen
	store, err = NewStore(path)
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	_, err = os.Stat(path)
	require.NoError(t, err)
	record, err := store.GetSubmission(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Equal(t, KindWorkflow, record.Kind)
}

func TestSaveSubmission_Insert(t *testing.T) {
	store := newTestStore(t)

	record := &SubmissionRecord{
		Kind:        KindPortfolio,
		RemoteID:    101,
		Name:        "USFL_Other",
		Status:      StatusSubmitted,
		RequestJSON: `{"portfolioName":"USFL_Other"}`,
	}
	require.NoError(t, store.SaveSubmission(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	retrieved, err := store.GetSubmission(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Kind, retrieved.Kind)
	assert.Equal(t, record.RemoteID, retrieved.RemoteID)
	assert.Equal(t, record.Name, retrieved.Name)
	assert.Equal(t, record.RequestJSON, retrieved.RequestJSON)
	assert.Nil(t, retrieved.CompletedAt)
}

func TestSaveSubmission_Update(t *testing.T) {
	store := newTestStore(t)

	record := &SubmissionRecord{
		ID:          "sub-1",
		Kind:        KindImport,
		RemoteID:    42,
		Status:      StatusSubmitted,
		RequestJSON: `{}`,
	}
	require.NoError(t, store.SaveSubmission(context.Background(), record))

	completed := time.Now()
	record.Status = types.StatusFinished
	record.ResultJSON = `{"status":"FINISHED"}`
	record.UpdatedAt = time.Now().Add(time.Second)
	record.CompletedAt = &completed
	require.NoError(t, store.SaveSubmission(context.Background(), record))

	retrieved, err := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinished, retrieved.Status)
	assert.Equal(t, `{"status":"FINISHED"}`, retrieved.ResultJSON)
	require.NotNil(t, retrieved.CompletedAt)
	assert.Equal(t, completed.Unix(), retrieved.CompletedAt.Unix())
}

func TestGetSubmission_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSubmission(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	older := &SubmissionRecord{ID: "old", Kind: KindGeohaz, RemoteID: 901, Status: StatusSubmitted, RequestJSON: `{}`, CreatedAt: base, UpdatedAt: base}
	newer := &SubmissionRecord{ID: "new", Kind: KindGeohaz, RemoteID: 901, Status: StatusSubmitted, RequestJSON: `{}`, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}
	require.NoError(t, store.SaveSubmission(ctx, older))
	require.NoError(t, store.SaveSubmission(ctx, newer))

	// running is not a completion
	require.NoError(t, store.UpdateStatus(ctx, KindGeohaz, 901, StatusUpdate{Status: types.StatusRunning}))
	got, err := store.GetSubmission(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.UpdateStatus(ctx, KindGeohaz, 901, StatusUpdate{
		Status:     types.StatusFinished,
		Strategy:   "batch-each",
		ResultJSON: `{"id":901,"status":"FINISHED"}`,
	}))
	got, err = store.GetSubmission(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinished, got.Status)
	assert.Equal(t, "batch-each", got.Strategy)
	assert.NotNil(t, got.CompletedAt)

	got, err = store.GetSubmission(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status)

	err = store.UpdateStatus(ctx, KindGeohaz, 999, StatusUpdate{Status: types.StatusFinished})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListSubmissions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		kind := KindWorkflow
		if i%2 == 0 {
			kind = KindImport
		}
		require.NoError(t, store.SaveSubmission(ctx, &SubmissionRecord{
			Kind:        kind,
			RemoteID:    int64(i + 1),
			Status:      types.StatusFinished,
			RequestJSON: `{}`,
		}))
	}

	records, err := store.ListSubmissions(ctx, ListSubmissionsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, len(records))

	records, err = store.ListSubmissions(ctx, ListSubmissionsFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, len(records))

	records, err = store.ListSubmissions(ctx, ListSubmissionsFilter{Kind: KindImport})
	require.NoError(t, err)
	assert.Equal(t, 3, len(records))

	records, err = store.ListSubmissions(ctx, ListSubmissionsFilter{Kind: KindWorkflow, Status: types.StatusFinished})
	require.NoError(t, err)
	assert.Equal(t, 2, len(records))

	records, err = store.ListSubmissions(ctx, ListSubmissionsFilter{Status: StatusSubmitted})
	require.NoError(t, err)
	assert.Equal(t, 0, len(records))
}

func TestCountByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveSubmission(ctx, &SubmissionRecord{Kind: KindWorkflow, RemoteID: int64(i), Status: StatusSubmitted, RequestJSON: `{}`}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, store.SaveSubmission(ctx, &SubmissionRecord{Kind: KindWorkflow, RemoteID: int64(10 + i), Status: types.StatusFailed, RequestJSON: `{}`}))
	}

	count, err := store.CountByStatus(ctx, StatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = store.CountByStatus(ctx, types.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountByStatus(ctx, types.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDeleteOldSubmissions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	require.NoError(t, store.SaveSubmission(ctx, &SubmissionRecord{
		ID: "old-done", Kind: KindWorkflow, RemoteID: 1, Status: types.StatusFinished, RequestJSON: `{}`,
		CreatedAt: old, UpdatedAt: old, CompletedAt: &old,
	}))
	require.NoError(t, store.SaveSubmission(ctx, &SubmissionRecord{
		ID: "recent-done", Kind: KindWorkflow, RemoteID: 2, Status: types.StatusFinished, RequestJSON: `{}`,
		CreatedAt: now, UpdatedAt: now, CompletedAt: &now,
	}))
	require.NoError(t, store.SaveSubmission(ctx, &SubmissionRecord{
		ID: "old-open", Kind: KindWorkflow, RemoteID: 3, Status: StatusSubmitted, RequestJSON: `{}`,
		CreatedAt: old, UpdatedAt: old,
	}))

	deleted, err := store.DeleteOldSubmissions(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetSubmission(ctx, "old-done")
	assert.Error(t, err)

	_, err = store.GetSubmission(ctx, "recent-done")
	require.NoError(t, err)

	// unsettled submissions are kept regardless of age
	_, err = store.GetSubmission(ctx, "old-open")
	require.NoError(t, err)
}

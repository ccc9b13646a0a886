package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wharflab/deltareview/internal/pipelineerrors"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestCreateAndGetRoundTrips(t *testing.T) {
	store := newStore(t)
	created := store.Create("sess-1", "/repo")
	require.Equal(t, reviewmodel.SessionActive, created.Metadata.Status)

	got, err := store.Get("sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", got.SessionID)
}

func TestGetLoadsFromDiskWhenNotCached(t *testing.T) {
	store := newStore(t)
	store.Create("sess-2", "/repo")

	reloaded, err := New(store.Dir, nil)
	require.NoError(t, err)

	got, err := reloaded.Get("sess-2")
	require.NoError(t, err)
	require.Equal(t, "sess-2", got.SessionID)
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.Get("does-not-exist")
	require.Error(t, err)
	var notFound *pipelineerrors.SessionNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestAppendEventCoalescesConsecutiveThoughts(t *testing.T) {
	store := newStore(t)
	store.Create("sess-3", "/repo")

	require.NoError(t, store.AppendEvent("sess-3", reviewmodel.WorkflowEvent{Type: reviewmodel.EventThought, Stage: "plan", Content: "thinking"}))
	require.NoError(t, store.AppendEvent("sess-3", reviewmodel.WorkflowEvent{Type: reviewmodel.EventThought, Stage: "plan", Content: " more"}))

	got, err := store.Get("sess-3")
	require.NoError(t, err)
	require.Len(t, got.WorkflowEvents, 1)
	require.Equal(t, "thinking more", got.WorkflowEvents[0].Content)
}

func TestAppendEventDoesNotCoalesceAcrossStages(t *testing.T) {
	store := newStore(t)
	store.Create("sess-4", "/repo")

	require.NoError(t, store.AppendEvent("sess-4", reviewmodel.WorkflowEvent{Type: reviewmodel.EventThought, Stage: "plan", Content: "a"}))
	require.NoError(t, store.AppendEvent("sess-4", reviewmodel.WorkflowEvent{Type: reviewmodel.EventThought, Stage: "scan", Content: "b"}))

	got, err := store.Get("sess-4")
	require.NoError(t, err)
	require.Len(t, got.WorkflowEvents, 2)
}

func TestDeleteRemovesFromMemoryAndDisk(t *testing.T) {
	store := newStore(t)
	store.Create("sess-5", "/repo")

	require.NoError(t, store.Delete("sess-5"))

	_, err := store.Get("sess-5")
	require.Error(t, err)
}

func TestListSortsByUpdatedAtDescending(t *testing.T) {
	store := newStore(t)
	store.Create("older", "/repo")
	store.Create("newer", "/repo")

	_, err := store.Rename("newer", "Newer Session")
	require.NoError(t, err)

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "newer", summaries[0].SessionID)
}

func TestArchiveUpdatesStatus(t *testing.T) {
	store := newStore(t)
	store.Create("sess-6", "/repo")

	sess, err := store.Archive("sess-6")
	require.NoError(t, err)
	require.Equal(t, reviewmodel.SessionArchived, sess.Metadata.Status)
}

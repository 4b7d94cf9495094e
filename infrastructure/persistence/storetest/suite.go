// Package storetest holds the behaviour every ports.Store and
// ports.PointGraph backend must share. Backends run it from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"path-backend/application/ports"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

// StoreFactory returns an empty store
type StoreFactory func(t *testing.T) ports.Store

// GraphFactory returns a graph that knows pointIDs
type GraphFactory func(t *testing.T, pointIDs ...string) ports.PointGraph

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// RunStore runs the store behaviour suite against newStore
func RunStore(t *testing.T, newStore StoreFactory) {
	t.Run("memo round trip", func(t *testing.T) { testMemoRoundTrip(t, newStore(t)) })
	t.Run("memo constraints", func(t *testing.T) { testMemoConstraints(t, newStore(t)) })
	t.Run("update memo", func(t *testing.T) { testUpdateMemo(t, newStore(t)) })
	t.Run("drafts", func(t *testing.T) { testDrafts(t, newStore(t)) })
	t.Run("reservations", func(t *testing.T) { testReservations(t, newStore(t)) })
	t.Run("commit freeze", func(t *testing.T) { testCommitFreeze(t, newStore(t)) })
	t.Run("commit freeze conflicts", func(t *testing.T) { testCommitFreezeConflicts(t, newStore(t)) })
	t.Run("revision listing", func(t *testing.T) { testRevisionListing(t, newStore(t)) })
}

// RunGraph runs the point graph behaviour suite against newGraph
func RunGraph(t *testing.T, newGraph GraphFactory) {
	ctx := context.Background()
	graph := newGraph(t, "point-a", "point-b")
	memoID := valueobjects.NewMemoID()

	exists, err := graph.PointExists(ctx, "point-a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = graph.PointExists(ctx, "nowhere")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, graph.AddMemo(ctx, "point-a", memoID))
	require.NoError(t, graph.AddMemo(ctx, "point-a", valueobjects.NewMemoID()))
	count, err := graph.CountMemos(ctx, "point-a")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = graph.AddMemo(ctx, "nowhere", memoID)
	assert.True(t, pkgerrors.HasCode(pkgerrors.Translate("add memo", err), pkgerrors.CodePointNotFound))

	require.NoError(t, graph.RemoveMemo(ctx, "point-a", memoID))
	require.NoError(t, graph.RemoveMemo(ctx, "point-a", memoID))
	count, err = graph.CountMemos(ctx, "point-a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = graph.CountMemos(ctx, "point-b")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func newMemo(t *testing.T, pointID, title string, at time.Time) *entities.Memo {
	t.Helper()
	memo, err := entities.NewMemo(pointID, title, "user-1", "", at)
	require.NoError(t, err)
	return memo
}

func seed(t *testing.T, store ports.Store, pointID, title string, at time.Time) (*entities.Memo, *entities.Draft) {
	t.Helper()
	memo := newMemo(t, pointID, title, at)
	draft := entities.NewDraft(memo.ID(), "user-1", valueobjects.NewBody("first body"), at)
	require.NoError(t, store.CreateMemo(context.Background(), memo, draft))
	return memo, draft
}

func code(err error) string {
	if appErr := pkgerrors.GetAppError(pkgerrors.Translate("test", err)); appErr != nil {
		return appErr.Code
	}
	return ""
}

func testMemoRoundTrip(t *testing.T, store ports.Store) {
	ctx := context.Background()
	memo, _ := seed(t, store, "point-a", "Plan", base)
	seed(t, store, "point-a", "Later", base.Add(time.Second))
	seed(t, store, "point-b", "Elsewhere", base)

	external, err := entities.NewMemo("point-a", "Doc", "user-2", "doc://x", base.Add(2*time.Second))
	require.NoError(t, err)
	require.NoError(t, store.CreateMemo(ctx, external, nil))

	got, err := store.GetMemo(ctx, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, memo.ID(), got.ID())
	assert.Equal(t, "point-a", got.PointID())
	assert.Equal(t, "Plan", got.Title())
	assert.Equal(t, "user-1", got.CreatedBy())
	assert.True(t, got.CreatedAt().Equal(base))
	assert.False(t, got.HasRevision())

	draft, err := store.GetDraft(ctx, memo.ID())
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "first body", draft.Body().String())
	assert.True(t, draft.UpdatedAt().Equal(base))

	noDraft, err := store.GetDraft(ctx, external.ID())
	require.NoError(t, err)
	assert.Nil(t, noDraft)

	gotExternal, err := store.GetMemo(ctx, external.ID())
	require.NoError(t, err)
	assert.Equal(t, "doc://x", gotExternal.ExternalMarker())

	contributors, err := store.ListContributors(ctx, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, contributors)

	memos, err := store.ListMemosByPoint(ctx, "point-a")
	require.NoError(t, err)
	require.Len(t, memos, 3)
	assert.Equal(t, "Plan", memos[0].Title())
	assert.Equal(t, "Later", memos[1].Title())
	assert.Equal(t, "Doc", memos[2].Title())

	_, err = store.GetMemo(ctx, valueobjects.NewMemoID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func testMemoConstraints(t *testing.T, store ports.Store) {
	ctx := context.Background()
	seed(t, store, "point-a", "Plan", base)

	dup := newMemo(t, "point-a", "Plan", base)
	err := store.CreateMemo(ctx, dup, nil)
	assert.Equal(t, pkgerrors.CodeDuplicateTitle, code(err))

	_, err = store.GetMemo(ctx, dup.ID())
	assert.True(t, pkgerrors.IsNotFound(err), "rejected memo must not be stored")

	other := newMemo(t, "point-b", "Plan", base)
	assert.NoError(t, store.CreateMemo(ctx, other, nil), "titles are unique per point only")
}

func testUpdateMemo(t *testing.T, store ports.Store) {
	ctx := context.Background()
	memo, _ := seed(t, store, "point-a", "Plan", base)
	seed(t, store, "point-a", "Taken", base)

	require.NoError(t, memo.Rename("Roadmap", base.Add(time.Minute)))
	require.NoError(t, store.UpdateMemo(ctx, memo))

	got, err := store.GetMemo(ctx, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", got.Title())
	assert.True(t, got.UpdatedAt().Equal(base.Add(time.Minute)))

	// the old title is free again
	seed(t, store, "point-a", "Plan", base)

	require.NoError(t, memo.Rename("Taken", base.Add(2*time.Minute)))
	assert.Equal(t, pkgerrors.CodeDuplicateTitle, code(store.UpdateMemo(ctx, memo)))

	require.NoError(t, memo.Rename("Roadmap", base.Add(2*time.Minute)))
	require.NoError(t, memo.MoveTo("point-b", base.Add(3*time.Minute)))
	require.NoError(t, store.UpdateMemo(ctx, memo))
	moved, err := store.ListMemosByPoint(ctx, "point-b")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, memo.ID(), moved[0].ID())

	ghost := newMemo(t, "point-a", "Ghost", base)
	assert.Equal(t, pkgerrors.CodeMemoNotFound, code(store.UpdateMemo(ctx, ghost)))
}

func testDrafts(t *testing.T, store ports.Store) {
	ctx := context.Background()
	memo, draft := seed(t, store, "point-a", "Plan", base)

	again := entities.NewDraft(memo.ID(), "user-2", valueobjects.NewBody("other"), base)
	assert.Equal(t, pkgerrors.CodeDraftModified, code(store.CreateDraft(ctx, again)))

	previous := draft.UpdatedAt()
	draft.Rewrite(valueobjects.NewBody("second body"), base.Add(time.Minute))
	require.NoError(t, store.UpdateDraft(ctx, draft, previous))

	stale := entities.ReconstructDraft(memo.ID(), "user-1", base, base.Add(2*time.Minute), valueobjects.NewBody("stale"))
	assert.Equal(t, pkgerrors.CodeDraftModified, code(store.UpdateDraft(ctx, stale, previous)))

	got, err := store.GetDraft(ctx, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, "second body", got.Body().String())
	assert.Equal(t, "user-1", got.EditorID())
	assert.True(t, got.CreatedAt().Equal(base))

	orphan := entities.NewDraft(valueobjects.NewMemoID(), "user-1", valueobjects.NewBody("x"), base)
	assert.Equal(t, pkgerrors.CodeMemoNotFound, code(store.CreateDraft(ctx, orphan)))
}

func testReservations(t *testing.T, store ports.Store) {
	ctx := context.Background()
	memo, _ := seed(t, store, "point-a", "Plan", base)

	none, err := store.GetReservation(ctx, memo.ID())
	require.NoError(t, err)
	assert.Nil(t, none)

	first := entities.NewReservation(memo.ID(), "user-1", base, 15*time.Minute)
	require.NoError(t, store.UpsertReservation(ctx, first, ""))

	racing := entities.NewReservation(memo.ID(), "user-2", base, 15*time.Minute)
	assert.Equal(t, pkgerrors.CodeMemoReserved, code(store.UpsertReservation(ctx, racing, "")))

	renewed := entities.NewReservation(memo.ID(), "user-1", base.Add(time.Minute), 15*time.Minute)
	require.NoError(t, store.UpsertReservation(ctx, renewed, first.Code()))

	got, err := store.GetReservation(ctx, memo.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, renewed.Code(), got.Code())
	assert.Equal(t, "user-1", got.EditorID())
	assert.True(t, got.ExpiresAt().Equal(base.Add(16*time.Minute)))

	assert.Equal(t, pkgerrors.CodeMemoReserved, code(store.DeleteReservation(ctx, memo.ID(), first.Code())))
	require.NoError(t, store.DeleteReservation(ctx, memo.ID(), renewed.Code()))
	require.NoError(t, store.DeleteReservation(ctx, memo.ID(), renewed.Code()))

	got, err = store.GetReservation(ctx, memo.ID())
	require.NoError(t, err)
	assert.Nil(t, got)

	orphan := entities.NewReservation(valueobjects.NewMemoID(), "user-1", base, time.Minute)
	assert.Equal(t, pkgerrors.CodeMemoNotFound, code(store.UpsertReservation(ctx, orphan, "")))
}

func freezePlan(memo *entities.Memo, previous, next *entities.Draft, parent *entities.Revision, body string, at time.Time) (ports.FreezePlan, *entities.Revision) {
	content := entities.NewInlineContent(valueobjects.NewBody(body))
	rev := entities.NewRevision(memo.ID(), previous.EditorID(), parent, content.ID(), previous.CreatedAt(), previous.UpdatedAt(), at)
	return ports.FreezePlan{
		MemoID:         memo.ID(),
		ExpectedLatest: rev.ParentID(),
		Contents:       []*entities.RevisionContent{content},
		Revisions:      []*entities.Revision{rev},
		Contributors:   []string{previous.EditorID()},
		PreviousDraft:  previous,
		NextDraft:      next,
		UpdatedAt:      at,
	}, rev
}

func testCommitFreeze(t *testing.T, store ports.Store) {
	ctx := context.Background()
	memo, draft := seed(t, store, "point-a", "Plan", base)

	at := base.Add(time.Hour)
	next := entities.NewDraft(memo.ID(), "user-2", valueobjects.NewBody("next body"), at)
	plan, rev := freezePlan(memo, draft, next, nil, "first body", at)
	require.NoError(t, store.CommitFreeze(ctx, plan))

	got, err := store.GetMemo(ctx, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, rev.ID(), got.LatestRevisionID())
	assert.True(t, got.UpdatedAt().Equal(at))

	stored, err := store.GetRevision(ctx, rev.ID())
	require.NoError(t, err)
	assert.Equal(t, memo.ID(), stored.MemoID())
	assert.Equal(t, "user-1", stored.ActorID())
	assert.True(t, stored.IsFirst())
	assert.Equal(t, int64(1), stored.Sequence())
	assert.True(t, stored.Timestamp().Equal(at))
	assert.True(t, stored.StartTimestamp().Equal(base))

	content, err := store.GetContent(ctx, stored.ContentID())
	require.NoError(t, err)
	assert.Equal(t, "first body", content.Address())
	assert.False(t, content.Compressed())
	assert.Equal(t, len("first body"), content.Size())

	current, err := store.GetDraft(ctx, memo.ID())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "user-2", current.EditorID())
	assert.Equal(t, "next body", current.Body().String())

	// a rollback reuses existing content and leaves no draft
	later := at.Add(time.Hour)
	rollback := entities.NewRollbackRevision(memo.ID(), "user-3", rev, rev, later)
	require.NoError(t, store.CommitFreeze(ctx, ports.FreezePlan{
		MemoID:         memo.ID(),
		ExpectedLatest: rev.ID(),
		Revisions:      []*entities.Revision{rollback},
		Contributors:   []string{"user-3", "user-1"},
		PreviousDraft:  current,
		UpdatedAt:      later,
	}))

	current, err = store.GetDraft(ctx, memo.ID())
	require.NoError(t, err)
	assert.Nil(t, current)

	stored, err = store.GetRevision(ctx, rollback.ID())
	require.NoError(t, err)
	assert.Equal(t, rev.ContentID(), stored.ContentID())
	assert.Equal(t, rev.ID(), stored.ParentID())
	assert.Equal(t, int64(2), stored.Sequence())
	assert.True(t, stored.MinorEdit())
	assert.Equal(t, entities.SummaryReverted, stored.Summary())

	contributors, err := store.ListContributors(ctx, memo.ID())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-1", "user-3"}, contributors)
}

func testCommitFreezeConflicts(t *testing.T, store ports.Store) {
	ctx := context.Background()
	memo, draft := seed(t, store, "point-a", "Plan", base)
	at := base.Add(time.Hour)

	t.Run("stale latest pointer", func(t *testing.T) {
		phantom := entities.NewRevision(memo.ID(), "user-9", nil, valueobjects.NewContentID(), base, base, base)
		plan, rev := freezePlan(memo, draft, nil, phantom, "first body", at)
		assert.Equal(t, pkgerrors.CodeDraftModified, code(store.CommitFreeze(ctx, plan)))

		_, err := store.GetRevision(ctx, rev.ID())
		assert.True(t, pkgerrors.IsNotFound(err))
		_, err = store.GetContent(ctx, rev.ContentID())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("stale draft", func(t *testing.T) {
		stale := entities.ReconstructDraft(memo.ID(), "user-1", base, base.Add(time.Second), draft.Body())
		plan, rev := freezePlan(memo, stale, nil, nil, "first body", at)
		assert.Equal(t, pkgerrors.CodeDraftModified, code(store.CommitFreeze(ctx, plan)))

		_, err := store.GetRevision(ctx, rev.ID())
		assert.True(t, pkgerrors.IsNotFound(err))
		current, err := store.GetDraft(ctx, memo.ID())
		require.NoError(t, err)
		assert.NotNil(t, current)
	})

	t.Run("unknown content", func(t *testing.T) {
		plan, _ := freezePlan(memo, draft, nil, nil, "first body", at)
		plan.Contents = nil
		assert.Equal(t, pkgerrors.CodeContentNotFound, code(store.CommitFreeze(ctx, plan)))
	})

	t.Run("unknown memo", func(t *testing.T) {
		ghost := newMemo(t, "point-a", "Ghost", base)
		plan := ports.FreezePlan{MemoID: ghost.ID(), UpdatedAt: at}
		assert.Equal(t, pkgerrors.CodeMemoNotFound, code(store.CommitFreeze(ctx, plan)))
	})

	got, err := store.GetMemo(ctx, memo.ID())
	require.NoError(t, err)
	assert.False(t, got.HasRevision())
	contributors, err := store.ListContributors(ctx, memo.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, contributors)
}

func testRevisionListing(t *testing.T, store ports.Store) {
	ctx := context.Background()
	memo, draft := seed(t, store, "point-a", "Plan", base)

	// the last three revisions share a timestamp
	stamps := []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute, 3 * time.Minute, 3 * time.Minute}
	var revs []*entities.Revision
	var parent *entities.Revision
	previous := draft
	for _, offset := range stamps {
		at := base.Add(offset)
		next := entities.NewDraft(memo.ID(), "user-1", valueobjects.NewBody("body"), at)
		plan, rev := freezePlan(memo, previous, next, parent, "body", at)
		require.NoError(t, store.CommitFreeze(ctx, plan))
		revs = append(revs, rev)
		parent, previous = rev, next
	}

	all, err := store.ListRevisions(ctx, memo.ID(), ports.RevisionCursor{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, rev := range all {
		assert.Equal(t, revs[len(revs)-1-i].ID(), rev.ID())
		assert.Equal(t, int64(len(revs)-i), rev.Sequence())
	}

	limited, err := store.ListRevisions(ctx, memo.ID(), ports.RevisionCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, revs[4].ID(), limited[0].ID())
	assert.Equal(t, revs[3].ID(), limited[1].ID())

	t.Run("sequence cursor resumes inside a timestamp tie", func(t *testing.T) {
		page, err := store.ListRevisions(ctx, memo.ID(), ports.RevisionCursor{BelowSequence: limited[1].Sequence()}, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, revs[2].ID(), page[0].ID())
		assert.Equal(t, revs[1].ID(), page[1].ID())
	})

	t.Run("timestamp bound", func(t *testing.T) {
		before := base.Add(3 * time.Minute)
		older, err := store.ListRevisions(ctx, memo.ID(), ports.RevisionCursor{Before: &before}, 10)
		require.NoError(t, err)
		require.Len(t, older, 2)
		assert.Equal(t, revs[1].ID(), older[0].ID())
		assert.Equal(t, revs[0].ID(), older[1].ID())

		both, err := store.ListRevisions(ctx, memo.ID(), ports.RevisionCursor{Before: &before, BelowSequence: 2}, 10)
		require.NoError(t, err)
		require.Len(t, both, 1)
		assert.Equal(t, revs[0].ID(), both[0].ID())
	})

	other, err := store.ListRevisions(ctx, valueobjects.NewMemoID(), ports.RevisionCursor{}, 10)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = store.GetRevision(ctx, valueobjects.NewRevisionID())
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = store.GetContent(ctx, valueobjects.NewContentID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

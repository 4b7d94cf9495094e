package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	"path-backend/infrastructure/persistence/sqlite"
	"path-backend/infrastructure/persistence/storetest"
	pkgerrors "path-backend/pkg/errors"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewStore(db, zap.NewNop())
}

func TestStore(t *testing.T) {
	storetest.RunStore(t, func(t *testing.T) ports.Store {
		return newStore(t)
	})
}

func TestPointGraph(t *testing.T) {
	storetest.RunGraph(t, func(t *testing.T, pointIDs ...string) ports.PointGraph {
		db, err := sqlite.Open(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		graph := sqlite.NewPointGraph(db)
		for _, id := range pointIDs {
			require.NoError(t, graph.AddPoint(context.Background(), id))
		}
		return graph
	})
}

func TestBlobs(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	blobs := sqlite.NewBlobs(db)
	_, err = blobs.Get(ctx, "content/missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, blobs.Put(ctx, "content/a", []byte("payload")))
	require.NoError(t, blobs.Put(ctx, "content/a", []byte("replaced")))

	data, err := blobs.Get(ctx, "content/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), data)
}

func TestOpen_PersistsAcrossConnections(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/memo.db"

	db, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	graph := sqlite.NewPointGraph(db)
	require.NoError(t, graph.AddPoint(ctx, "point-a"))
	require.NoError(t, db.Close())

	db, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	exists, err := sqlite.NewPointGraph(db).PointExists(ctx, "point-a")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_NamedConstraints(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	memo, err := entities.NewMemo("point-a", "Plan", "user-1", "", at)
	require.NoError(t, err)
	draft := entities.NewDraft(memo.ID(), "user-1", valueobjects.NewBody("first body"), at)
	require.NoError(t, store.CreateMemo(ctx, memo, draft))

	violation := func(err error) *pkgerrors.ConstraintViolation {
		t.Helper()
		var v *pkgerrors.ConstraintViolation
		require.True(t, errors.As(err, &v), "expected a constraint violation, got %v", err)
		return v
	}

	t.Run("duplicate title", func(t *testing.T) {
		dup, err := entities.NewMemo("point-a", "Plan", "user-2", "", at)
		require.NoError(t, err)
		v := violation(store.CreateMemo(ctx, dup, nil))
		assert.Equal(t, pkgerrors.ConstraintMemoTitleUnique, v.Constraint)
		assert.Equal(t, "Plan", v.Key)
	})

	t.Run("duplicate memo id", func(t *testing.T) {
		clone := entities.ReconstructMemo(memo.ID(), "point-b", "Other", "", nil, valueobjects.RevisionID{}, at, "user-1", at, "")
		v := violation(store.CreateMemo(ctx, clone, nil))
		assert.Equal(t, pkgerrors.ConstraintMemoPK, v.Constraint)
	})

	t.Run("second draft", func(t *testing.T) {
		again := entities.NewDraft(memo.ID(), "user-2", valueobjects.NewBody("other body"), at)
		v := violation(store.CreateDraft(ctx, again))
		assert.Equal(t, pkgerrors.ConstraintDraftPK, v.Constraint)
		assert.Equal(t, memo.ID().String(), v.Key)
	})

	t.Run("renaming onto a taken title", func(t *testing.T) {
		other, err := entities.NewMemo("point-a", "Notes", "user-1", "", at)
		require.NoError(t, err)
		require.NoError(t, store.CreateMemo(ctx, other, nil))

		renamed := entities.ReconstructMemo(other.ID(), "point-a", "Plan", "", nil, valueobjects.RevisionID{}, at, "user-1", at, "")
		v := violation(store.UpdateMemo(ctx, renamed))
		assert.Equal(t, pkgerrors.ConstraintMemoTitleUnique, v.Constraint)

		// keeping its own title is not a conflict
		same := entities.ReconstructMemo(other.ID(), "point-a", "Notes", "summary", nil, valueobjects.RevisionID{}, at, "user-1", at.Add(time.Minute), "")
		assert.NoError(t, store.UpdateMemo(ctx, same))
	})
}

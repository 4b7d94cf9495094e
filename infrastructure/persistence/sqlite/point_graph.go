package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"path-backend/application/ports"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

// PointGraph keeps point membership in the point and point_memo tables
type PointGraph struct {
	db *sql.DB
}

var _ ports.PointGraph = (*PointGraph)(nil)

// NewPointGraph creates a point graph on an opened and migrated database
func NewPointGraph(db *sql.DB) *PointGraph {
	return &PointGraph{db: db}
}

// AddPoint registers a point; registering it twice is not an error
func (g *PointGraph) AddPoint(ctx context.Context, pointID string) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO point (id, created_ts) VALUES (?, ?)`, pointID, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("insert point: %w", err)
	}
	return nil
}

func (g *PointGraph) PointExists(ctx context.Context, pointID string) (bool, error) {
	var exists int
	err := g.db.QueryRowContext(ctx, `SELECT 1 FROM point WHERE id = ?`, pointID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query point: %w", err)
	}
	return true, nil
}

func (g *PointGraph) AddMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error {
	return withTx(ctx, g.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM point WHERE id = ?`, pointID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoPointFK, pointID, nil)
		}
		if err != nil {
			return fmt.Errorf("query point: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO point_memo (point_id, memo_id) VALUES (?, ?)`, pointID, memoID.String())
		if err != nil {
			return fmt.Errorf("attach memo: %w", err)
		}
		return nil
	})
}

func (g *PointGraph) RemoveMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error {
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM point_memo WHERE point_id = ? AND memo_id = ?`, pointID, memoID.String())
	if err != nil {
		return fmt.Errorf("detach memo: %w", err)
	}
	return nil
}

func (g *PointGraph) CountMemos(ctx context.Context, pointID string) (int, error) {
	var count int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM point_memo WHERE point_id = ?`, pointID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memos: %w", err)
	}
	return count, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

// Store implements ports.Store on SQLite. Every write runs in an immediate
// transaction, so the checks below are not racy.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a store on an opened and migrated database
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const memoColumns = `id, point_id, title, summary, summary_ts, latest_revision_id, created_ts, created_by, updated_ts, external_marker`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) CreateMemo(ctx context.Context, memo *entities.Memo, draft *entities.Draft) error {
	key := memo.ID().String()
	if memo.PointID() == "" {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoPointNotNull, key, nil)
	}
	if memo.Title() == "" {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoTitleNotNull, key, nil)
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := guardAbsent(ctx, tx, pkgerrors.ConstraintMemoPK, key,
			`SELECT 1 FROM memo WHERE id = ?`, key); err != nil {
			return err
		}
		if err := guardTitle(ctx, tx, memo); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO memo (`+memoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, memo.PointID(), memo.Title(), memo.Summary(), nullableNanos(memo.SummaryAt()),
			memo.LatestRevisionID().String(), toNanos(memo.CreatedAt()), memo.CreatedBy(),
			toNanos(memo.UpdatedAt()), memo.ExternalMarker(),
		)
		if err != nil {
			return fmt.Errorf("insert memo: %w", err)
		}

		if draft != nil {
			if err := insertDraft(ctx, tx, draft); err != nil {
				return err
			}
		}
		return addContributor(ctx, tx, key, memo.CreatedBy(), memo.CreatedAt())
	})
}

func (s *Store) GetMemo(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoColumns+` FROM memo WHERE id = ?`, id.String())
	memo, err := scanMemo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.MemoNotFound(id.String())
	}
	return memo, err
}

func (s *Store) ListMemosByPoint(ctx context.Context, pointID string) ([]*entities.Memo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoColumns+` FROM memo WHERE point_id = ? ORDER BY created_ts, rowid`, pointID)
	if err != nil {
		return nil, fmt.Errorf("query memos: %w", err)
	}
	defer rows.Close()

	var memos []*entities.Memo
	for rows.Next() {
		memo, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		memos = append(memos, memo)
	}
	return memos, rows.Err()
}

func (s *Store) UpdateMemo(ctx context.Context, memo *entities.Memo) error {
	key := memo.ID().String()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := guardTitle(ctx, tx, memo); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE memo SET point_id = ?, title = ?, summary = ?, summary_ts = ?, updated_ts = ?, external_marker = ? WHERE id = ?`,
			memo.PointID(), memo.Title(), memo.Summary(), nullableNanos(memo.SummaryAt()),
			toNanos(memo.UpdatedAt()), memo.ExternalMarker(), key,
		)
		if err != nil {
			return fmt.Errorf("update memo: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoExists, key, nil)
		}
		return nil
	})
}

func (s *Store) GetDraft(ctx context.Context, memoID valueobjects.MemoID) (*entities.Draft, error) {
	var (
		editorID           string
		createdTs, updated int64
		body               string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT editor_id, created_ts, updated_ts, body FROM memo_draft WHERE memo_id = ?`, memoID.String(),
	).Scan(&editorID, &createdTs, &updated, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query draft: %w", err)
	}
	return entities.ReconstructDraft(memoID, editorID, fromNanos(createdTs), fromNanos(updated), valueobjects.NewBody(body)), nil
}

func (s *Store) CreateDraft(ctx context.Context, draft *entities.Draft) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireMemo(ctx, tx, draft.MemoID().String(), pkgerrors.ConstraintDraftMemoFK); err != nil {
			return err
		}
		return insertDraft(ctx, tx, draft)
	})
}

func (s *Store) UpdateDraft(ctx context.Context, draft *entities.Draft, expectedUpdatedAt time.Time) error {
	key := draft.MemoID().String()
	res, err := s.db.ExecContext(ctx,
		`UPDATE memo_draft SET editor_id = ?, created_ts = ?, updated_ts = ?, body = ? WHERE memo_id = ? AND updated_ts = ?`,
		draft.EditorID(), toNanos(draft.CreatedAt()), toNanos(draft.UpdatedAt()), draft.Body().String(),
		key, toNanos(expectedUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftVersion, key, nil)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, memoID valueobjects.MemoID) (*entities.Reservation, error) {
	var (
		editorID, code    string
		reserved, expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT editor_id, code, reserved_ts, expires_ts FROM memo_reserve WHERE memo_id = ?`, memoID.String(),
	).Scan(&editorID, &code, &reserved, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation: %w", err)
	}
	return entities.ReconstructReservation(memoID, editorID, code, fromNanos(reserved), fromNanos(expires)), nil
}

func (s *Store) UpsertReservation(ctx context.Context, reservation *entities.Reservation, previousCode string) error {
	key := reservation.MemoID().String()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireMemo(ctx, tx, key, pkgerrors.ConstraintReserveMemoFK); err != nil {
			return err
		}

		var current string
		err := tx.QueryRowContext(ctx, `SELECT code FROM memo_reserve WHERE memo_id = ?`, key).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query reservation: %w", err)
		}
		if current != previousCode {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintReserveCode, key, nil)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO memo_reserve (memo_id, editor_id, code, reserved_ts, expires_ts) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (memo_id) DO UPDATE SET editor_id = excluded.editor_id, code = excluded.code,
			 reserved_ts = excluded.reserved_ts, expires_ts = excluded.expires_ts`,
			key, reservation.EditorID(), reservation.Code(),
			toNanos(reservation.ReservedAt()), toNanos(reservation.ExpiresAt()),
		)
		if err != nil {
			return fmt.Errorf("upsert reservation: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteReservation(ctx context.Context, memoID valueobjects.MemoID, code string) error {
	key := memoID.String()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT code FROM memo_reserve WHERE memo_id = ?`, key).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query reservation: %w", err)
		}
		if current != code {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintReserveCode, key, nil)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memo_reserve WHERE memo_id = ?`, key); err != nil {
			return fmt.Errorf("delete reservation: %w", err)
		}
		return nil
	})
}

const revisionColumns = `id, memo_id, seq, actor_id, ts, start_ts, end_ts, parent_id, content_id, summary, minor_edit`

func (s *Store) GetRevision(ctx context.Context, id valueobjects.RevisionID) (*entities.Revision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM memo_revision WHERE id = ?`, id.String())
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.RevisionNotFound(id.String())
	}
	return rev, err
}

func (s *Store) ListRevisions(ctx context.Context, memoID valueobjects.MemoID, cursor ports.RevisionCursor, limit int) ([]*entities.Revision, error) {
	var before, below interface{}
	if cursor.Before != nil {
		before = toNanos(*cursor.Before)
	}
	if cursor.BelowSequence > 0 {
		below = cursor.BelowSequence
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM memo_revision
		 WHERE memo_id = ? AND (? IS NULL OR ts < ?) AND (? IS NULL OR seq < ?)
		 ORDER BY seq DESC LIMIT ?`,
		memoID.String(), before, before, below, below, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var revs []*entities.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

func (s *Store) GetContent(ctx context.Context, id valueobjects.ContentID) (*entities.RevisionContent, error) {
	var (
		size       int
		address    string
		compressed bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT size, address, compressed FROM revision_content WHERE id = ?`, id.String(),
	).Scan(&size, &address, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ContentNotFound(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	return entities.ReconstructRevisionContent(id, size, address, compressed), nil
}

func (s *Store) ListContributors(ctx context.Context, memoID valueobjects.MemoID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM memo_contributor WHERE memo_id = ? ORDER BY added_ts, rowid`, memoID.String())
	if err != nil {
		return nil, fmt.Errorf("query contributors: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) CommitFreeze(ctx context.Context, plan ports.FreezePlan) error {
	key := plan.MemoID.String()
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var latest string
		err := tx.QueryRowContext(ctx, `SELECT latest_revision_id FROM memo WHERE id = ?`, key).Scan(&latest)
		if errors.Is(err, sql.ErrNoRows) {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoExists, key, nil)
		}
		if err != nil {
			return fmt.Errorf("query memo: %w", err)
		}
		if latest != plan.ExpectedLatest.String() {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintLatestRevision, key, nil)
		}

		var draftUpdated int64
		err = tx.QueryRowContext(ctx, `SELECT updated_ts FROM memo_draft WHERE memo_id = ?`, key).Scan(&draftUpdated)
		hasDraft := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query draft: %w", err)
		}
		switch {
		case plan.PreviousDraft != nil && (!hasDraft || draftUpdated != toNanos(plan.PreviousDraft.UpdatedAt())):
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftVersion, key, nil)
		case plan.PreviousDraft == nil && plan.NextDraft != nil && hasDraft:
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftPK, key, nil)
		}

		for _, c := range plan.Contents {
			if err := guardAbsent(ctx, tx, pkgerrors.ConstraintContentPK, c.ID().String(),
				`SELECT 1 FROM revision_content WHERE id = ?`, c.ID().String()); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO revision_content (id, size, address, compressed) VALUES (?, ?, ?, ?)`,
				c.ID().String(), c.Size(), c.Address(), c.Compressed(),
			)
			if err != nil {
				return fmt.Errorf("insert content: %w", err)
			}
		}

		for _, r := range plan.Revisions {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM revision_content WHERE id = ?`, r.ContentID().String()).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintRevisionContentFK, r.ContentID().String(), nil)
			}
			if err != nil {
				return fmt.Errorf("query content: %w", err)
			}

			if err := guardAbsent(ctx, tx, pkgerrors.ConstraintRevisionPK, r.ID().String(),
				`SELECT 1 FROM memo_revision WHERE id = ?`, r.ID().String()); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO memo_revision (`+revisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID().String(), key, r.Sequence(), r.ActorID(), toNanos(r.Timestamp()), toNanos(r.StartTimestamp()),
				toNanos(r.EndTimestamp()), r.ParentID().String(), r.ContentID().String(), r.Summary(), r.MinorEdit(),
			)
			if err != nil {
				return fmt.Errorf("insert revision: %w", err)
			}
		}

		if head := plan.LatestRevision(); head != nil {
			latest = head.ID().String()
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE memo SET latest_revision_id = ?, updated_ts = MAX(updated_ts, ?) WHERE id = ?`,
			latest, toNanos(plan.UpdatedAt), key,
		)
		if err != nil {
			return fmt.Errorf("advance memo: %w", err)
		}

		for _, userID := range plan.Contributors {
			if err := addContributor(ctx, tx, key, userID, plan.UpdatedAt); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM memo_draft WHERE memo_id = ?`, key); err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		if plan.NextDraft != nil {
			return insertDraft(ctx, tx, plan.NextDraft)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Freeze committed",
		zap.String("memo_id", key),
		zap.Int("revisions", len(plan.Revisions)),
		zap.Int("contents", len(plan.Contents)),
		zap.Bool("next_draft", plan.NextDraft != nil),
	)
	return nil
}

func requireMemo(ctx context.Context, tx *sql.Tx, memoID, constraint string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM memo WHERE id = ?`, memoID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return pkgerrors.NewConstraintViolation(constraint, memoID, nil)
	}
	if err != nil {
		return fmt.Errorf("query memo: %w", err)
	}
	return nil
}

func insertDraft(ctx context.Context, tx *sql.Tx, draft *entities.Draft) error {
	key := draft.MemoID().String()
	if err := guardAbsent(ctx, tx, pkgerrors.ConstraintDraftPK, key,
		`SELECT 1 FROM memo_draft WHERE memo_id = ?`, key); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO memo_draft (memo_id, editor_id, created_ts, updated_ts, body) VALUES (?, ?, ?, ?, ?)`,
		key, draft.EditorID(), toNanos(draft.CreatedAt()), toNanos(draft.UpdatedAt()), draft.Body().String(),
	)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

// guardTitle rejects a title already used by another memo of the same point
func guardTitle(ctx context.Context, tx *sql.Tx, memo *entities.Memo) error {
	return guardAbsent(ctx, tx, pkgerrors.ConstraintMemoTitleUnique, memo.Title(),
		`SELECT 1 FROM memo WHERE point_id = ? AND title = ? AND id <> ?`,
		memo.PointID(), memo.Title(), memo.ID().String())
}

func addContributor(ctx context.Context, tx *sql.Tx, memoID, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO memo_contributor (memo_id, user_id, added_ts) VALUES (?, ?, ?)`,
		memoID, userID, toNanos(at),
	)
	if err != nil {
		return fmt.Errorf("add contributor: %w", err)
	}
	return nil
}

func scanMemo(row rowScanner) (*entities.Memo, error) {
	var (
		id, pointID, title, summary, latest, createdBy, marker string
		summaryTs                                              sql.NullInt64
		createdTs, updatedTs                                   int64
	)
	if err := row.Scan(&id, &pointID, &title, &summary, &summaryTs, &latest, &createdTs, &createdBy, &updatedTs, &marker); err != nil {
		return nil, err
	}

	memoID, err := valueobjects.ParseMemoID(id)
	if err != nil {
		return nil, err
	}
	var latestID valueobjects.RevisionID
	if latest != "" {
		if latestID, err = valueobjects.ParseRevisionID(latest); err != nil {
			return nil, err
		}
	}
	var summaryAt *time.Time
	if summaryTs.Valid {
		t := fromNanos(summaryTs.Int64)
		summaryAt = &t
	}
	return entities.ReconstructMemo(memoID, pointID, title, summary, summaryAt, latestID,
		fromNanos(createdTs), createdBy, fromNanos(updatedTs), marker), nil
}

func scanRevision(row rowScanner) (*entities.Revision, error) {
	var (
		id, memo, actor, parent, content, summary string
		seq, ts, start, end                       int64
		minor                                     bool
	)
	if err := row.Scan(&id, &memo, &seq, &actor, &ts, &start, &end, &parent, &content, &summary, &minor); err != nil {
		return nil, err
	}

	revID, err := valueobjects.ParseRevisionID(id)
	if err != nil {
		return nil, err
	}
	memoID, err := valueobjects.ParseMemoID(memo)
	if err != nil {
		return nil, err
	}
	var parentID valueobjects.RevisionID
	if parent != "" {
		if parentID, err = valueobjects.ParseRevisionID(parent); err != nil {
			return nil, err
		}
	}
	contentID, err := valueobjects.ParseContentID(content)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructRevision(revID, memoID, seq, actor, fromNanos(ts), fromNanos(start), fromNanos(end),
		parentID, contentID, summary, minor), nil
}

func nullableNanos(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return toNanos(*t)
}

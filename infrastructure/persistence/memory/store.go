package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"path-backend/application/ports"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
)

type memoRecord struct {
	id             valueobjects.MemoID
	pointID        string
	title          string
	summary        string
	summaryAt      *time.Time
	latest         valueobjects.RevisionID
	createdAt      time.Time
	createdBy      string
	updatedAt      time.Time
	externalMarker string
}

type draftRecord struct {
	editorID  string
	createdAt time.Time
	updatedAt time.Time
	body      string
}

type reservationRecord struct {
	editorID   string
	code       string
	reservedAt time.Time
	expiresAt  time.Time
}

// Store is an in-memory implementation of ports.Store. A single mutex makes
// every operation, CommitFreeze included, atomic.
type Store struct {
	mu           sync.RWMutex
	memos        map[string]memoRecord
	drafts       map[string]draftRecord
	reservations map[string]reservationRecord
	revisions    map[string]*entities.Revision
	ledger       map[string][]string
	contents     map[string]*entities.RevisionContent
	contributors map[string][]string
}

var _ ports.Store = (*Store)(nil)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		memos:        make(map[string]memoRecord),
		drafts:       make(map[string]draftRecord),
		reservations: make(map[string]reservationRecord),
		revisions:    make(map[string]*entities.Revision),
		ledger:       make(map[string][]string),
		contents:     make(map[string]*entities.RevisionContent),
		contributors: make(map[string][]string),
	}
}

// CreateMemo inserts a memo with its initial draft and creator contributor
func (s *Store) CreateMemo(ctx context.Context, memo *entities.Memo, draft *entities.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memo.ID().String()
	if memo.PointID() == "" {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoPointNotNull, key, nil)
	}
	if memo.Title() == "" {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoTitleNotNull, key, nil)
	}
	if _, exists := s.memos[key]; exists {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoPK, key, nil)
	}
	if err := s.checkTitle(memo.PointID(), memo.Title(), key); err != nil {
		return err
	}

	s.memos[key] = toMemoRecord(memo)
	if draft != nil {
		s.drafts[key] = toDraftRecord(draft)
	}
	s.addContributor(key, memo.CreatedBy())
	return nil
}

// GetMemo retrieves a memo by id
func (s *Store) GetMemo(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.memos[id.String()]
	if !ok {
		return nil, pkgerrors.MemoNotFound(id.String())
	}
	return rec.toEntity(), nil
}

// ListMemosByPoint returns the memos of a point ordered by creation time
func (s *Store) ListMemosByPoint(ctx context.Context, pointID string) ([]*entities.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var memos []*entities.Memo
	for _, rec := range s.memos {
		if rec.pointID == pointID {
			memos = append(memos, rec.toEntity())
		}
	}
	sort.Slice(memos, func(i, j int) bool {
		return memos[i].CreatedAt().Before(memos[j].CreatedAt())
	})
	return memos, nil
}

// UpdateMemo persists the mutable memo fields, keeping the latest revision pointer
func (s *Store) UpdateMemo(ctx context.Context, memo *entities.Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memo.ID().String()
	current, ok := s.memos[key]
	if !ok {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoExists, key, nil)
	}
	if err := s.checkTitle(memo.PointID(), memo.Title(), key); err != nil {
		return err
	}

	next := toMemoRecord(memo)
	next.latest = current.latest
	s.memos[key] = next
	return nil
}

// GetDraft returns the live draft of a memo, or nil
func (s *Store) GetDraft(ctx context.Context, memoID valueobjects.MemoID) (*entities.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.drafts[memoID.String()]
	if !ok {
		return nil, nil
	}
	return entities.ReconstructDraft(memoID, rec.editorID, rec.createdAt, rec.updatedAt, valueobjects.NewBody(rec.body)), nil
}

// CreateDraft inserts a draft for a memo without one
func (s *Store) CreateDraft(ctx context.Context, draft *entities.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := draft.MemoID().String()
	if _, ok := s.memos[key]; !ok {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftMemoFK, key, nil)
	}
	if _, exists := s.drafts[key]; exists {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftPK, key, nil)
	}
	s.drafts[key] = toDraftRecord(draft)
	return nil
}

// UpdateDraft rewrites a draft if it still carries expectedUpdatedAt
func (s *Store) UpdateDraft(ctx context.Context, draft *entities.Draft, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := draft.MemoID().String()
	current, ok := s.drafts[key]
	if !ok || !current.updatedAt.Equal(expectedUpdatedAt) {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftVersion, key, nil)
	}
	s.drafts[key] = toDraftRecord(draft)
	return nil
}

// GetReservation returns the stored reservation of a memo, or nil
func (s *Store) GetReservation(ctx context.Context, memoID valueobjects.MemoID) (*entities.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.reservations[memoID.String()]
	if !ok {
		return nil, nil
	}
	return entities.ReconstructReservation(memoID, rec.editorID, rec.code, rec.reservedAt, rec.expiresAt), nil
}

// UpsertReservation replaces the reservation if the stored code is previousCode
func (s *Store) UpsertReservation(ctx context.Context, reservation *entities.Reservation, previousCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reservation.MemoID().String()
	if _, ok := s.memos[key]; !ok {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintReserveMemoFK, key, nil)
	}
	if current := s.reservations[key]; current.code != previousCode {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintReserveCode, key, nil)
	}
	s.reservations[key] = reservationRecord{
		editorID:   reservation.EditorID(),
		code:       reservation.Code(),
		reservedAt: reservation.ReservedAt(),
		expiresAt:  reservation.ExpiresAt(),
	}
	return nil
}

// DeleteReservation removes the reservation carrying code
func (s *Store) DeleteReservation(ctx context.Context, memoID valueobjects.MemoID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoID.String()
	current, ok := s.reservations[key]
	if !ok {
		return nil
	}
	if current.code != code {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintReserveCode, key, nil)
	}
	delete(s.reservations, key)
	return nil
}

// GetRevision retrieves a revision by id
func (s *Store) GetRevision(ctx context.Context, id valueobjects.RevisionID) (*entities.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rev, ok := s.revisions[id.String()]
	if !ok {
		return nil, pkgerrors.RevisionNotFound(id.String())
	}
	return rev, nil
}

// ListRevisions returns up to limit revisions, highest sequence first
func (s *Store) ListRevisions(ctx context.Context, memoID valueobjects.MemoID, cursor ports.RevisionCursor, limit int) ([]*entities.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var revs []*entities.Revision
	for _, id := range s.ledger[memoID.String()] {
		if rev := s.revisions[id]; cursor.Includes(rev) {
			revs = append(revs, rev)
		}
	}
	sort.Slice(revs, func(i, j int) bool {
		return revs[i].Sequence() > revs[j].Sequence()
	})
	if limit > 0 && len(revs) > limit {
		revs = revs[:limit]
	}
	return revs, nil
}

// GetContent retrieves a revision content record by id
func (s *Store) GetContent(ctx context.Context, id valueobjects.ContentID) (*entities.RevisionContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.contents[id.String()]
	if !ok {
		return nil, pkgerrors.ContentNotFound(id.String())
	}
	return content, nil
}

// ListContributors returns the contributor set of a memo in insertion order
func (s *Store) ListContributors(ctx context.Context, memoID valueobjects.MemoID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.contributors[memoID.String()]...), nil
}

// CommitFreeze validates every precondition of the plan, then applies it
func (s *Store) CommitFreeze(ctx context.Context, plan ports.FreezePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := plan.MemoID.String()
	memo, ok := s.memos[key]
	if !ok {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoExists, key, nil)
	}
	if memo.latest != plan.ExpectedLatest {
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintLatestRevision, key, nil)
	}

	current, hasDraft := s.drafts[key]
	switch {
	case plan.PreviousDraft != nil && (!hasDraft || !current.updatedAt.Equal(plan.PreviousDraft.UpdatedAt())):
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftVersion, key, nil)
	case plan.PreviousDraft == nil && plan.NextDraft != nil && hasDraft:
		return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintDraftPK, key, nil)
	}

	planned := make(map[string]bool, len(plan.Contents))
	for _, c := range plan.Contents {
		if _, exists := s.contents[c.ID().String()]; exists {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintContentPK, c.ID().String(), nil)
		}
		planned[c.ID().String()] = true
	}
	for _, r := range plan.Revisions {
		if _, exists := s.revisions[r.ID().String()]; exists {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintRevisionPK, r.ID().String(), nil)
		}
		if _, exists := s.contents[r.ContentID().String()]; !exists && !planned[r.ContentID().String()] {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintRevisionContentFK, r.ContentID().String(), nil)
		}
	}

	for _, c := range plan.Contents {
		s.contents[c.ID().String()] = c
	}
	for _, r := range plan.Revisions {
		s.revisions[r.ID().String()] = r
		s.ledger[key] = append(s.ledger[key], r.ID().String())
	}
	if head := plan.LatestRevision(); head != nil {
		memo.latest = head.ID()
	}
	if plan.UpdatedAt.After(memo.updatedAt) {
		memo.updatedAt = plan.UpdatedAt
	}
	s.memos[key] = memo

	for _, userID := range plan.Contributors {
		s.addContributor(key, userID)
	}

	delete(s.drafts, key)
	if plan.NextDraft != nil {
		s.drafts[key] = toDraftRecord(plan.NextDraft)
	}
	return nil
}

func (s *Store) checkTitle(pointID, title, memoID string) error {
	for id, rec := range s.memos {
		if id != memoID && rec.pointID == pointID && rec.title == title {
			return pkgerrors.NewConstraintViolation(pkgerrors.ConstraintMemoTitleUnique, title, nil)
		}
	}
	return nil
}

func (s *Store) addContributor(memoID, userID string) {
	for _, existing := range s.contributors[memoID] {
		if existing == userID {
			return
		}
	}
	s.contributors[memoID] = append(s.contributors[memoID], userID)
}

func toMemoRecord(m *entities.Memo) memoRecord {
	return memoRecord{
		id:             m.ID(),
		pointID:        m.PointID(),
		title:          m.Title(),
		summary:        m.Summary(),
		summaryAt:      m.SummaryAt(),
		latest:         m.LatestRevisionID(),
		createdAt:      m.CreatedAt(),
		createdBy:      m.CreatedBy(),
		updatedAt:      m.UpdatedAt(),
		externalMarker: m.ExternalMarker(),
	}
}

func (r memoRecord) toEntity() *entities.Memo {
	return entities.ReconstructMemo(r.id, r.pointID, r.title, r.summary, r.summaryAt, r.latest, r.createdAt, r.createdBy, r.updatedAt, r.externalMarker)
}

func toDraftRecord(d *entities.Draft) draftRecord {
	return draftRecord{
		editorID:  d.EditorID(),
		createdAt: d.CreatedAt(),
		updatedAt: d.UpdatedAt(),
		body:      d.Body().String(),
	}
}

// ContentCount returns the number of stored content records
func (s *Store) ContentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.contents)
}

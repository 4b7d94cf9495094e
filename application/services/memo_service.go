package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/application/sagas"
	"path-backend/domain/config"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	"path-backend/domain/events"
	domainservices "path-backend/domain/services"
	pkgerrors "path-backend/pkg/errors"
	"path-backend/pkg/observability"
)

// ContentSource tells where the effective body of a memo came from
type ContentSource string

const (
	SourceNone     ContentSource = "none"
	SourceDraft    ContentSource = "draft"
	SourceRevision ContentSource = "revision"
	SourceExternal ContentSource = "external"
)

// ReservationView is the public part of a reservation. The code is omitted.
type ReservationView struct {
	EditorID  string    `json:"editor_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MemoView is the effective state of a memo as seen by readers
type MemoView struct {
	Memo         *entities.Memo
	Body         string
	Source       ContentSource
	UpdatedBy    string
	UpdatedAt    time.Time
	Contributors []string
	Reservation  *ReservationView

	// Unchanged is set when the caller's updatedAfter is not older than the
	// effective update time; Body is then left empty
	Unchanged bool
}

// MemoService exposes the memo operations consumed by the transport layer
type MemoService struct {
	store        ports.Store
	graph        ports.PointGraph
	drafts       *DraftService
	reservations *ReservationManager
	contents     *ContentStore
	policy       *config.MemoPolicy
	publisher    ports.EventPublisher
	metrics      ports.Metrics
	tracer       *observability.Tracer
	clock        ports.Clock
	logger       *zap.Logger
}

// NewMemoService creates a new memo service
func NewMemoService(
	store ports.Store,
	graph ports.PointGraph,
	drafts *DraftService,
	reservations *ReservationManager,
	contents *ContentStore,
	policy *config.MemoPolicy,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	clock ports.Clock,
	logger *zap.Logger,
) *MemoService {
	return &MemoService{
		store:        store,
		graph:        graph,
		drafts:       drafts,
		reservations: reservations,
		contents:     contents,
		policy:       policy,
		publisher:    publisher,
		metrics:      metrics,
		tracer:       tracer,
		clock:        clock,
		logger:       logger,
	}
}

// MemoCreation is the result of CreateMemo. Draft is nil for external memos;
// Reservation is set when the creator asked to continue editing.
type MemoCreation struct {
	Memo        *entities.Memo
	Draft       *entities.Draft
	Reservation *entities.Reservation
}

// CreateMemo attaches a new memo to a point. An internal memo starts with a
// draft holding body; a memo with an external marker has no draft. With
// continueEditing an internal memo is reserved for its creator.
func (s *MemoService) CreateMemo(ctx context.Context, pointID, userID, title, body, externalMarker string, continueEditing bool) (*MemoCreation, error) {
	now := s.clock.Now()
	memo, err := entities.NewMemo(pointID, title, userID, externalMarker, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkPointCapacity(ctx, pointID); err != nil {
		return nil, err
	}

	var draft *entities.Draft
	if !memo.IsExternal() {
		draft = entities.NewDraft(memo.ID(), userID, valueobjects.NewBody(body), now)
	}

	saga := sagas.NewSaga("create_memo", s.logger).
		Step("attach_to_point",
			func(ctx context.Context) error { return s.graph.AddMemo(ctx, pointID, memo.ID()) },
			func(ctx context.Context) error { return s.graph.RemoveMemo(ctx, pointID, memo.ID()) },
		).
		Step("store_memo",
			func(ctx context.Context) error { return s.store.CreateMemo(ctx, memo, draft) },
			nil,
		)
	if err := saga.Execute(ctx); err != nil {
		return nil, pkgerrors.Translate("create memo", err)
	}

	s.logger.Info("Memo created",
		zap.String("memo_id", memo.ID().String()),
		zap.String("point_id", pointID),
		zap.String("user_id", userID),
		zap.Bool("external", memo.IsExternal()),
	)
	publishEvents(ctx, s.publisher, s.logger, memo.GetUncommittedEvents()...)
	memo.MarkEventsAsCommitted()

	result := &MemoCreation{Memo: memo, Draft: draft}
	if continueEditing && !memo.IsExternal() {
		result.Reservation = s.reservations.keepEditing(ctx, memo.ID(), userID)
	}
	return result, nil
}

// GetMemo returns the effective state of a memo. The live draft wins over
// the latest revision unless the revision is strictly newer.
func (s *MemoService) GetMemo(ctx context.Context, memoID valueobjects.MemoID, updatedAfter *time.Time) (*MemoView, error) {
	memo, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}
	return s.view(ctx, memo, updatedAfter)
}

// ListMemosByPoint returns the effective state of every memo on a point
func (s *MemoService) ListMemosByPoint(ctx context.Context, pointID string, updatedAfter *time.Time) ([]*MemoView, error) {
	if pointID == "" {
		return nil, pkgerrors.NullInput("pointId")
	}
	exists, err := s.graph.PointExists(ctx, pointID)
	if err != nil {
		return nil, pkgerrors.Translate("check point", err)
	}
	if !exists {
		return nil, pkgerrors.PointNotFound(pointID)
	}

	memos, err := s.store.ListMemosByPoint(ctx, pointID)
	if err != nil {
		return nil, pkgerrors.Translate("list memos", err)
	}

	views := make([]*MemoView, 0, len(memos))
	for _, memo := range memos {
		view, err := s.view(ctx, memo, updatedAfter)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *MemoService) view(ctx context.Context, memo *entities.Memo, updatedAfter *time.Time) (*MemoView, error) {
	draft, err := s.store.GetDraft(ctx, memo.ID())
	if err != nil {
		return nil, pkgerrors.Translate("get draft", err)
	}

	var revision *entities.Revision
	if memo.HasRevision() {
		if revision, err = s.store.GetRevision(ctx, memo.LatestRevisionID()); err != nil {
			return nil, pkgerrors.Translate("get latest revision", err)
		}
	}

	view := &MemoView{
		Memo:      memo,
		Source:    SourceNone,
		UpdatedBy: memo.CreatedBy(),
		UpdatedAt: memo.UpdatedAt(),
	}

	// A draft written by the same freeze that created the revision carries
	// the same timestamp and is the newer state
	switch {
	case memo.IsExternal():
		view.Source = SourceExternal
	case draft != nil && (revision == nil || !draft.UpdatedAt().Before(revision.Timestamp())):
		view.Source = SourceDraft
		view.UpdatedBy = draft.EditorID()
	case revision != nil:
		view.Source = SourceRevision
		view.UpdatedBy = revision.ActorID()
	}

	if revision != nil && revision.Timestamp().After(view.UpdatedAt) {
		view.UpdatedAt = revision.Timestamp()
	}
	if draft != nil && draft.UpdatedAt().After(view.UpdatedAt) {
		view.UpdatedAt = draft.UpdatedAt()
	}

	if updatedAfter != nil && !view.UpdatedAt.After(*updatedAfter) {
		view.Unchanged = true
		return view, nil
	}

	switch view.Source {
	case SourceDraft:
		view.Body = draft.Body().String()
	case SourceRevision:
		data, err := s.contents.RevisionPayload(ctx, revision)
		if err != nil {
			return nil, err
		}
		view.Body = string(data)
	case SourceExternal:
		view.Body = memo.ExternalMarker()
	}

	if view.Contributors, err = s.store.ListContributors(ctx, memo.ID()); err != nil {
		return nil, pkgerrors.Translate("list contributors", err)
	}

	reservation, err := s.store.GetReservation(ctx, memo.ID())
	if err != nil {
		return nil, pkgerrors.Translate("get reservation", err)
	}
	if reservation != nil && !reservation.IsExpired(s.clock.Now()) {
		view.Reservation = &ReservationView{EditorID: reservation.EditorID(), ExpiresAt: reservation.ExpiresAt()}
	}
	return view, nil
}

// ListRevisions returns a lazy newest-first sequence of at most limit
// revisions inside cursor
func (s *MemoService) ListRevisions(ctx context.Context, memoID valueobjects.MemoID, cursor ports.RevisionCursor, limit int) (*RevisionIterator, error) {
	if _, err := s.store.GetMemo(ctx, memoID); err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}

	switch {
	case limit <= 0:
		limit = s.policy.DefaultRevisionPageSize
	case limit > s.policy.MaxRevisionPageSize:
		limit = s.policy.MaxRevisionPageSize
	}
	return newRevisionIterator(s.store, memoID, cursor, limit, s.policy.DefaultRevisionPageSize), nil
}

// GetRevisionContent returns a content record with its payload
func (s *MemoService) GetRevisionContent(ctx context.Context, contentID valueobjects.ContentID) (*RevisionContentView, error) {
	return s.contents.Get(ctx, contentID)
}

// Rollback makes the content of revisionID current again by appending a
// minor revision that reuses its content. History is never rewritten.
//
// A live draft is frozen first (or discarded when blank). An unexpired
// reservation held by another user blocks the rollback unless forced, in
// which case the reservation is cancelled.
func (s *MemoService) Rollback(ctx context.Context, memoID valueobjects.MemoID, userID string, revisionID valueobjects.RevisionID, forced bool) (*entities.Revision, error) {
	if userID == "" {
		return nil, pkgerrors.NullInput("userId")
	}

	memo, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}
	target, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, pkgerrors.Translate("get revision", err)
	}
	if target.MemoID() != memoID {
		return nil, pkgerrors.RevisionNotFound(revisionID.String())
	}

	if err := s.reservations.override(ctx, memoID, userID, forced); err != nil {
		return nil, err
	}

	draft, err := s.store.GetDraft(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get draft", err)
	}

	now := s.clock.Now()
	plan := ports.FreezePlan{
		MemoID:         memoID,
		ExpectedLatest: memo.LatestRevisionID(),
		UpdatedAt:      now,
	}
	if draft != nil {
		var outcome domainservices.FreezeOutcome
		plan, outcome, err = s.drafts.planFreeze(ctx, memo, draft, nil, now)
		if err != nil {
			return nil, err
		}
		s.metrics.FreezeRecorded(string(domainservices.FreezeForced), string(outcome))
	}

	parent := plan.LatestRevision()
	if parent == nil {
		if parent, err = s.contents.LatestRevision(ctx, memo); err != nil {
			return nil, err
		}
	}

	revision := entities.NewRollbackRevision(memoID, userID, parent, target, now)
	plan.Revisions = append(plan.Revisions, revision)
	plan.Contributors = appendUnique(plan.Contributors, userID)

	if err := s.drafts.commit(ctx, plan, "memo.rollback"); err != nil {
		return nil, err
	}

	s.metrics.RollbackRecorded(forced)
	s.logger.Info("Memo rolled back",
		zap.String("memo_id", memoID.String()),
		zap.String("target_revision", revisionID.String()),
		zap.String("new_revision", revision.ID().String()),
		zap.String("user_id", userID),
		zap.Bool("forced", forced),
	)

	evs := revisionEvents(plan)
	evs = append(evs, events.NewMemoRolledBack(memoID.String(), userID, revisionID.String(), revision.ID().String(), forced, now))
	publishEvents(ctx, s.publisher, s.logger, evs...)
	return revision, nil
}

// MoveMemo reassigns a memo to another point. The graph membership and the
// memo record are updated together or not at all.
func (s *MemoService) MoveMemo(ctx context.Context, memoID valueobjects.MemoID, pointID string) (*entities.Memo, error) {
	if pointID == "" {
		return nil, pkgerrors.NullInput("pointId")
	}
	memo, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}
	from := memo.PointID()
	if from == pointID {
		return memo, nil
	}
	if err := s.checkPointCapacity(ctx, pointID); err != nil {
		return nil, err
	}

	saga := sagas.NewSaga("move_memo", s.logger).
		Step("attach_to_point",
			func(ctx context.Context) error { return s.graph.AddMemo(ctx, pointID, memoID) },
			func(ctx context.Context) error { return s.graph.RemoveMemo(ctx, pointID, memoID) },
		).
		Step("detach_from_point",
			func(ctx context.Context) error { return s.graph.RemoveMemo(ctx, from, memoID) },
			func(ctx context.Context) error { return s.graph.AddMemo(ctx, from, memoID) },
		).
		Step("update_memo",
			func(ctx context.Context) error {
				if err := memo.MoveTo(pointID, s.clock.Now()); err != nil {
					return err
				}
				return s.store.UpdateMemo(ctx, memo)
			},
			nil,
		)
	if err := saga.Execute(ctx); err != nil {
		return nil, pkgerrors.Translate("move memo", err)
	}

	s.logger.Info("Memo moved",
		zap.String("memo_id", memoID.String()),
		zap.String("from_point_id", from),
		zap.String("to_point_id", pointID),
	)
	publishEvents(ctx, s.publisher, s.logger, memo.GetUncommittedEvents()...)
	memo.MarkEventsAsCommitted()
	return memo, nil
}

// UpdateTitle renames a memo. Titles are unique per point.
func (s *MemoService) UpdateTitle(ctx context.Context, memoID valueobjects.MemoID, title string) (*entities.Memo, error) {
	memo, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}
	if err := memo.Rename(title, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateMemo(ctx, memo); err != nil {
		return nil, pkgerrors.Translate("update memo title", err)
	}
	publishEvents(ctx, s.publisher, s.logger, memo.GetUncommittedEvents()...)
	memo.MarkEventsAsCommitted()
	return memo, nil
}

// ChangeExternalMarker points an external memo at different external content
func (s *MemoService) ChangeExternalMarker(ctx context.Context, memoID valueobjects.MemoID, marker string) (*entities.Memo, error) {
	memo, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}
	if err := memo.ChangeExternalMarker(marker, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateMemo(ctx, memo); err != nil {
		return nil, pkgerrors.Translate("update external marker", err)
	}
	return memo, nil
}

func (s *MemoService) checkPointCapacity(ctx context.Context, pointID string) error {
	exists, err := s.graph.PointExists(ctx, pointID)
	if err != nil {
		return pkgerrors.Translate("check point", err)
	}
	if !exists {
		return pkgerrors.PointNotFound(pointID)
	}

	count, err := s.graph.CountMemos(ctx, pointID)
	if err != nil {
		return pkgerrors.Translate("count point memos", err)
	}
	if count >= s.policy.MaxMemosPerPoint {
		return pkgerrors.ConstraintTable[pkgerrors.ConstraintPointMemoLimit](pointID)
	}
	return nil
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}

package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/domain/config"
	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	"path-backend/domain/events"
	domainservices "path-backend/domain/services"
	pkgerrors "path-backend/pkg/errors"
	"path-backend/pkg/observability"
)

// DraftService applies draft writes and freezes live drafts into revisions
// when the snapshot policy asks for it
type DraftService struct {
	store        ports.Store
	reservations *ReservationManager
	contents     *ContentStore
	snapshots    *domainservices.SnapshotPolicy
	policy       *config.MemoPolicy
	publisher    ports.EventPublisher
	metrics      ports.Metrics
	tracer       *observability.Tracer
	clock        ports.Clock
	logger       *zap.Logger
}

// NewDraftService creates a new draft service
func NewDraftService(
	store ports.Store,
	reservations *ReservationManager,
	contents *ContentStore,
	policy *config.MemoPolicy,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	clock ports.Clock,
	logger *zap.Logger,
) *DraftService {
	return &DraftService{
		store:        store,
		reservations: reservations,
		contents:     contents,
		snapshots:    domainservices.NewSnapshotPolicy(policy),
		policy:       policy,
		publisher:    publisher,
		metrics:      metrics,
		tracer:       tracer,
		clock:        clock,
		logger:       logger,
	}
}

// DraftWrite is the result of UpdateDraft. Reservation is the writer's new
// reservation when they asked to continue editing.
type DraftWrite struct {
	Draft       *entities.Draft
	Reservation *entities.Reservation
}

// UpdateDraft writes text as userID's working copy of the memo.
//
// The write releases the caller's reservation. With no live draft a new one
// is created. Otherwise the live draft is either rewritten in place or, when
// the snapshot policy requires it, frozen into a revision and replaced.
// With continueEditing the memo is reserved for userID again afterwards.
func (s *DraftService) UpdateDraft(ctx context.Context, memoID valueobjects.MemoID, userID, text, code string, continueEditing bool) (*DraftWrite, error) {
	draft, err := s.writeDraft(ctx, memoID, userID, text, code)
	if err != nil {
		return nil, err
	}
	result := &DraftWrite{Draft: draft}
	if continueEditing {
		result.Reservation = s.reservations.keepEditing(ctx, memoID, userID)
	}
	return result, nil
}

func (s *DraftService) writeDraft(ctx context.Context, memoID valueobjects.MemoID, userID, text, code string) (*entities.Draft, error) {
	if userID == "" {
		return nil, pkgerrors.NullInput("userId")
	}
	body, err := valueobjects.NewDraftBody(text, s.policy.MinBodyLength)
	if err != nil {
		return nil, err
	}

	memo, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}
	if memo.IsExternal() {
		return nil, pkgerrors.NewValidationError("external memos cannot be drafted - memo: " + memoID.String()).
			WithCode(pkgerrors.CodeExternalMemo)
	}

	if err := s.reservations.release(ctx, memoID, userID, code, "update_draft"); err != nil {
		return nil, err
	}

	current, err := s.store.GetDraft(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get draft", err)
	}

	now := s.clock.Now()
	if current == nil {
		draft := entities.NewDraft(memoID, userID, body, now)
		if err := s.store.CreateDraft(ctx, draft); err != nil {
			return nil, pkgerrors.Translate("create draft", err)
		}
		s.metrics.DraftWritten(true)
		publishEvents(ctx, s.publisher, s.logger, events.NewDraftUpdated(memoID.String(), userID, body.Len(), false, now))
		return draft, nil
	}

	reason := s.snapshots.Decide(current, userID, body, false, now)
	if reason == domainservices.FreezeNone {
		expected := current.UpdatedAt()
		current.Rewrite(body, now)
		if err := s.store.UpdateDraft(ctx, current, expected); err != nil {
			return nil, pkgerrors.Translate("update draft", err)
		}
		s.metrics.DraftWritten(true)
		publishEvents(ctx, s.publisher, s.logger, events.NewDraftUpdated(memoID.String(), userID, body.Len(), false, now))
		return current, nil
	}

	next := entities.NewDraft(memoID, userID, body, now)
	plan, outcome, err := s.planFreeze(ctx, memo, current, next, now)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, plan, "memo.freeze"); err != nil {
		return nil, err
	}

	s.metrics.FreezeRecorded(string(reason), string(outcome))
	s.metrics.DraftWritten(false)
	s.logger.Info("Draft frozen",
		zap.String("memo_id", memoID.String()),
		zap.String("reason", string(reason)),
		zap.String("outcome", string(outcome)),
		zap.String("previous_editor", current.EditorID()),
		zap.String("editor", userID),
	)

	evs := revisionEvents(plan)
	evs = append(evs, events.NewDraftUpdated(memoID.String(), userID, body.Len(), true, now))
	publishEvents(ctx, s.publisher, s.logger, evs...)
	return next, nil
}

// planFreeze computes the writes that freeze draft and replace it with next
// (nil to leave no draft). The plan is not committed.
func (s *DraftService) planFreeze(
	ctx context.Context,
	memo *entities.Memo,
	draft *entities.Draft,
	next *entities.Draft,
	now time.Time,
) (ports.FreezePlan, domainservices.FreezeOutcome, error) {
	plan := ports.FreezePlan{
		MemoID:         memo.ID(),
		ExpectedLatest: memo.LatestRevisionID(),
		PreviousDraft:  draft,
		NextDraft:      next,
		UpdatedAt:      now,
	}

	parent, err := s.contents.LatestRevision(ctx, memo)
	if err != nil {
		return plan, "", err
	}
	var latest []byte
	if parent != nil && !draft.Body().IsBlank() {
		if latest, err = s.contents.RevisionPayload(ctx, parent); err != nil {
			return plan, "", err
		}
	}

	outcome := s.snapshots.Outcome(draft, latest)
	if outcome != domainservices.OutcomeRevision {
		return plan, outcome, nil
	}

	content, err := s.contents.Prepare(ctx, draft.Body())
	if err != nil {
		return plan, "", err
	}
	revision := entities.NewRevision(
		memo.ID(),
		draft.EditorID(),
		parent,
		content.ID(),
		draft.CreatedAt(),
		draft.UpdatedAt(),
		now,
	)
	plan.Contents = append(plan.Contents, content)
	plan.Revisions = append(plan.Revisions, revision)
	plan.Contributors = append(plan.Contributors, draft.EditorID())
	return plan, outcome, nil
}

// commit applies a freeze plan atomically inside a trace subsegment
func (s *DraftService) commit(ctx context.Context, plan ports.FreezePlan, name string) error {
	err := s.tracer.TraceFunction(ctx, name, func(ctx context.Context) error {
		return s.store.CommitFreeze(ctx, plan)
	})
	return pkgerrors.Translate("commit freeze", err)
}

func revisionEvents(plan ports.FreezePlan) []events.DomainEvent {
	evs := make([]events.DomainEvent, 0, len(plan.Revisions)+1)
	for _, r := range plan.Revisions {
		evs = append(evs, events.NewRevisionCreated(
			plan.MemoID.String(),
			r.ID().String(),
			r.ParentID().String(),
			r.ContentID().String(),
			r.ActorID(),
			r.MinorEdit(),
			r.Timestamp(),
		))
	}
	return evs
}

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
	pkgerrors "path-backend/pkg/errors"
)

// ReservationManager arbitrates exclusive draft-write access to a memo
type ReservationManager struct {
	store     ports.Store
	policy    *config.MemoPolicy
	publisher ports.EventPublisher
	metrics   ports.Metrics
	clock     ports.Clock
	logger    *zap.Logger
}

// NewReservationManager creates a new reservation manager
func NewReservationManager(
	store ports.Store,
	policy *config.MemoPolicy,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	clock ports.Clock,
	logger *zap.Logger,
) *ReservationManager {
	return &ReservationManager{
		store:     store,
		policy:    policy,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
	}
}

// Reserve issues a fresh reservation of memoID to userID. The previous
// reservation, if any, is replaced in the same write. The returned
// reservation carries the only copy of the new code the caller will see.
func (m *ReservationManager) Reserve(ctx context.Context, memoID valueobjects.MemoID, userID, code string) (*entities.Reservation, error) {
	if userID == "" {
		return nil, pkgerrors.NullInput("userId")
	}
	if _, err := m.store.GetMemo(ctx, memoID); err != nil {
		return nil, pkgerrors.Translate("get memo", err)
	}

	current, err := m.store.GetReservation(ctx, memoID)
	if err != nil {
		return nil, pkgerrors.Translate("get reservation", err)
	}

	now := m.clock.Now()
	if current.BlocksCaller(now, userID, code) {
		m.metrics.ReservationConflict("reserve")
		return nil, pkgerrors.MemoReserved(memoID.String(), current.EditorID(), current.ExpiresAt())
	}

	next := entities.NewReservation(memoID, userID, now, m.policy.ReservationTTL)
	previous := ""
	if current != nil {
		previous = current.Code()
	}
	if err := m.store.UpsertReservation(ctx, next, previous); err != nil {
		err = pkgerrors.Translate("reserve memo", err)
		if pkgerrors.HasCode(err, pkgerrors.CodeMemoReserved) {
			m.metrics.ReservationConflict("reserve")
		}
		return nil, err
	}

	m.logger.Debug("Memo reserved",
		zap.String("memo_id", memoID.String()),
		zap.String("user_id", userID),
		zap.Time("expires_at", next.ExpiresAt()),
	)
	publishEvents(ctx, m.publisher, m.logger, events.NewMemoReserved(memoID.String(), userID, next.ExpiresAt(), now))
	return next, nil
}

// Cancel releases the reservation of memoID. Releasing a memo that is not
// reserved is a no-op.
func (m *ReservationManager) Cancel(ctx context.Context, memoID valueobjects.MemoID, userID, code string) error {
	if userID == "" {
		return pkgerrors.NullInput("userId")
	}
	return m.release(ctx, memoID, userID, code, "cancel_reserve")
}

// release runs the authorization check and deletes the reservation when the
// caller passes it
func (m *ReservationManager) release(ctx context.Context, memoID valueobjects.MemoID, userID, code, operation string) error {
	current, err := m.store.GetReservation(ctx, memoID)
	if err != nil {
		return pkgerrors.Translate("get reservation", err)
	}
	if current == nil {
		return nil
	}

	now := m.clock.Now()
	if current.BlocksCaller(now, userID, code) {
		m.metrics.ReservationConflict(operation)
		return pkgerrors.MemoReserved(memoID.String(), current.EditorID(), current.ExpiresAt())
	}
	return m.remove(ctx, current, userID, now)
}

// keepEditing reserves memoID again for userID right after a write by
// userID. A failure is logged and leaves the memo unreserved; the write
// itself stands.
func (m *ReservationManager) keepEditing(ctx context.Context, memoID valueobjects.MemoID, userID string) *entities.Reservation {
	reservation, err := m.Reserve(ctx, memoID, userID, "")
	if err != nil {
		m.logger.Warn("Failed to keep memo reserved after write",
			zap.String("memo_id", memoID.String()),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	return reservation
}

// override removes an unexpired reservation held by someone other than
// userID. Without forced such a reservation is a conflict.
func (m *ReservationManager) override(ctx context.Context, memoID valueobjects.MemoID, userID string, forced bool) error {
	current, err := m.store.GetReservation(ctx, memoID)
	if err != nil {
		return pkgerrors.Translate("get reservation", err)
	}

	now := m.clock.Now()
	if current == nil || current.IsExpired(now) || current.EditorID() == userID {
		return nil
	}
	if !forced {
		m.metrics.ReservationConflict("rollback")
		return pkgerrors.MemoReserved(memoID.String(), current.EditorID(), current.ExpiresAt())
	}

	m.logger.Info("Overriding reservation",
		zap.String("memo_id", memoID.String()),
		zap.String("holder_id", current.EditorID()),
		zap.String("user_id", userID),
	)
	return m.remove(ctx, current, userID, now)
}

func (m *ReservationManager) remove(ctx context.Context, current *entities.Reservation, userID string, now time.Time) error {
	if err := m.store.DeleteReservation(ctx, current.MemoID(), current.Code()); err != nil {
		return pkgerrors.Translate("cancel reservation", err)
	}
	publishEvents(ctx, m.publisher, m.logger, events.NewReservationCancelled(current.MemoID().String(), userID, now))
	return nil
}

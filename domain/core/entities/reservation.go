package entities

import (
	"time"

	"github.com/google/uuid"

	"path-backend/domain/core/valueobjects"
)

// Reservation is a soft, expiring, code-gated lock on a memo's draft
type Reservation struct {
	memoID     valueobjects.MemoID
	editorID   string
	code       string
	reservedAt time.Time
	expiresAt  time.Time
}

// NewReservation issues a reservation with a freshly generated code
func NewReservation(memoID valueobjects.MemoID, editorID string, now time.Time, ttl time.Duration) *Reservation {
	return &Reservation{
		memoID:     memoID,
		editorID:   editorID,
		code:       uuid.New().String(),
		reservedAt: now,
		expiresAt:  now.Add(ttl),
	}
}

// ReconstructReservation rebuilds a reservation from storage
func ReconstructReservation(memoID valueobjects.MemoID, editorID, code string, reservedAt, expiresAt time.Time) *Reservation {
	return &Reservation{
		memoID:     memoID,
		editorID:   editorID,
		code:       code,
		reservedAt: reservedAt,
		expiresAt:  expiresAt,
	}
}

func (r *Reservation) MemoID() valueobjects.MemoID {
	return r.memoID
}

func (r *Reservation) EditorID() string {
	return r.editorID
}

// Code returns the opaque reservation code. It is only handed to the caller
// that created the reservation.
func (r *Reservation) Code() string {
	return r.code
}

func (r *Reservation) ReservedAt() time.Time {
	return r.reservedAt
}

func (r *Reservation) ExpiresAt() time.Time {
	return r.expiresAt
}

// IsExpired reports whether the reservation is past its expiry
func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.expiresAt)
}

// BlocksCaller reports whether the reservation denies userID presenting code.
// Only an unexpired reservation blocks, and only when the caller is not the
// holder or presents the wrong code. A nil reservation never blocks.
func (r *Reservation) BlocksCaller(now time.Time, userID, code string) bool {
	if r == nil || r.IsExpired(now) {
		return false
	}
	return r.editorID != userID || r.code != code
}

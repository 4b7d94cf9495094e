package events

import (
	"time"
)

// Event type names as published on the bus
const (
	TypeMemoCreated          = "memo.created"
	TypeMemoTitleChanged     = "memo.title_changed"
	TypeDraftUpdated         = "memo.draft_updated"
	TypeRevisionCreated      = "memo.revision_created"
	TypeMemoReserved         = "memo.reserved"
	TypeReservationCancelled = "memo.reservation_cancelled"
	TypeMemoRolledBack       = "memo.rolled_back"
	TypeMemoMoved            = "memo.moved"
)

// MemoCreated is raised when a memo is attached to a point
type MemoCreated struct {
	BaseEvent
	PointID   string `json:"point_id"`
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
	External  bool   `json:"external"`
}

// NewMemoCreated creates a MemoCreated event
func NewMemoCreated(memoID, pointID, title, createdBy string, external bool, timestamp time.Time) MemoCreated {
	return MemoCreated{
		BaseEvent: newBase(memoID, TypeMemoCreated, timestamp),
		PointID:   pointID,
		Title:     title,
		CreatedBy: createdBy,
		External:  external,
	}
}

// MemoTitleChanged is raised when the title of a memo changes
type MemoTitleChanged struct {
	BaseEvent
	OldTitle string `json:"old_title"`
	NewTitle string `json:"new_title"`
}

// NewMemoTitleChanged creates a MemoTitleChanged event
func NewMemoTitleChanged(memoID, oldTitle, newTitle string, timestamp time.Time) MemoTitleChanged {
	return MemoTitleChanged{
		BaseEvent: newBase(memoID, TypeMemoTitleChanged, timestamp),
		OldTitle:  oldTitle,
		NewTitle:  newTitle,
	}
}

// DraftUpdated is raised on every accepted draft write
type DraftUpdated struct {
	BaseEvent
	EditorID string `json:"editor_id"`
	Length   int    `json:"length"`
	Frozen   bool   `json:"frozen"`
}

// NewDraftUpdated creates a DraftUpdated event
func NewDraftUpdated(memoID, editorID string, length int, frozen bool, timestamp time.Time) DraftUpdated {
	return DraftUpdated{
		BaseEvent: newBase(memoID, TypeDraftUpdated, timestamp),
		EditorID:  editorID,
		Length:    length,
		Frozen:    frozen,
	}
}

// RevisionCreated is raised when a draft is frozen into a revision
type RevisionCreated struct {
	BaseEvent
	RevisionID string `json:"revision_id"`
	ParentID   string `json:"parent_id,omitempty"`
	ContentID  string `json:"content_id"`
	ActorID    string `json:"actor_id"`
	MinorEdit  bool   `json:"minor_edit"`
}

// NewRevisionCreated creates a RevisionCreated event
func NewRevisionCreated(memoID, revisionID, parentID, contentID, actorID string, minorEdit bool, timestamp time.Time) RevisionCreated {
	return RevisionCreated{
		BaseEvent:  newBase(memoID, TypeRevisionCreated, timestamp),
		RevisionID: revisionID,
		ParentID:   parentID,
		ContentID:  contentID,
		ActorID:    actorID,
		MinorEdit:  minorEdit,
	}
}

// MemoReserved is raised when a reservation is issued or extended.
// The code is never part of the event.
type MemoReserved struct {
	BaseEvent
	EditorID  string    `json:"editor_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewMemoReserved creates a MemoReserved event
func NewMemoReserved(memoID, editorID string, expiresAt, timestamp time.Time) MemoReserved {
	return MemoReserved{
		BaseEvent: newBase(memoID, TypeMemoReserved, timestamp),
		EditorID:  editorID,
		ExpiresAt: expiresAt,
	}
}

// ReservationCancelled is raised when a reservation is released
type ReservationCancelled struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// NewReservationCancelled creates a ReservationCancelled event
func NewReservationCancelled(memoID, userID string, timestamp time.Time) ReservationCancelled {
	return ReservationCancelled{
		BaseEvent: newBase(memoID, TypeReservationCancelled, timestamp),
		UserID:    userID,
	}
}

// MemoRolledBack is raised when a memo is reverted to an earlier revision
type MemoRolledBack struct {
	BaseEvent
	UserID         string `json:"user_id"`
	TargetRevision string `json:"target_revision"`
	NewRevision    string `json:"new_revision"`
	Forced         bool   `json:"forced"`
}

// NewMemoRolledBack creates a MemoRolledBack event
func NewMemoRolledBack(memoID, userID, target, created string, forced bool, timestamp time.Time) MemoRolledBack {
	return MemoRolledBack{
		BaseEvent:      newBase(memoID, TypeMemoRolledBack, timestamp),
		UserID:         userID,
		TargetRevision: target,
		NewRevision:    created,
		Forced:         forced,
	}
}

// MemoMoved is raised when a memo is reassigned to another point
type MemoMoved struct {
	BaseEvent
	FromPointID string `json:"from_point_id"`
	ToPointID   string `json:"to_point_id"`
}

// NewMemoMoved creates a MemoMoved event
func NewMemoMoved(memoID, from, to string, timestamp time.Time) MemoMoved {
	return MemoMoved{
		BaseEvent:   newBase(memoID, TypeMemoMoved, timestamp),
		FromPointID: from,
		ToPointID:   to,
	}
}

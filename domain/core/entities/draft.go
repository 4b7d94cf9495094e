package entities

import (
	"time"

	"path-backend/domain/core/valueobjects"
)

// Draft is the single mutable working copy of a memo. At most one exists
// per memo; its absence means the latest revision is the current content.
type Draft struct {
	memoID    valueobjects.MemoID
	editorID  string
	createdAt time.Time
	updatedAt time.Time
	body      valueobjects.Body
}

// NewDraft starts a fresh draft owned by editorID
func NewDraft(memoID valueobjects.MemoID, editorID string, body valueobjects.Body, now time.Time) *Draft {
	return &Draft{
		memoID:    memoID,
		editorID:  editorID,
		createdAt: now,
		updatedAt: now,
		body:      body,
	}
}

// ReconstructDraft rebuilds a draft from storage
func ReconstructDraft(memoID valueobjects.MemoID, editorID string, createdAt, updatedAt time.Time, body valueobjects.Body) *Draft {
	return &Draft{
		memoID:    memoID,
		editorID:  editorID,
		createdAt: createdAt,
		updatedAt: updatedAt,
		body:      body,
	}
}

func (d *Draft) MemoID() valueobjects.MemoID {
	return d.memoID
}

func (d *Draft) EditorID() string {
	return d.editorID
}

func (d *Draft) CreatedAt() time.Time {
	return d.createdAt
}

func (d *Draft) UpdatedAt() time.Time {
	return d.updatedAt
}

func (d *Draft) Body() valueobjects.Body {
	return d.body
}

// Age returns how long the draft has been live
func (d *Draft) Age(now time.Time) time.Duration {
	return now.Sub(d.createdAt)
}

// Rewrite replaces the body in place. Editor and creation time are kept.
func (d *Draft) Rewrite(body valueobjects.Body, now time.Time) {
	d.body = body
	d.updatedAt = now
}

package entities

import (
	"time"

	"path-backend/domain/core/valueobjects"
)

// SummaryReverted is the summary recorded on rollback revisions
const SummaryReverted = "reverted"

// Revision is an immutable snapshot of a memo's content, chained to its
// parent. A zero parent marks the first revision of a memo. Sequence counts
// revisions within the memo from 1 and orders the ledger; timestamps may tie.
type Revision struct {
	id             valueobjects.RevisionID
	memoID         valueobjects.MemoID
	sequence       int64
	actorID        string
	timestamp      time.Time
	startTimestamp time.Time
	endTimestamp   time.Time
	parentID       valueobjects.RevisionID
	contentID      valueobjects.ContentID
	summary        string
	minorEdit      bool
}

// NewRevision freezes the span [start, end] of a draft by actorID on top of
// parent, nil for the first revision of a memo
func NewRevision(
	memoID valueobjects.MemoID,
	actorID string,
	parent *Revision,
	contentID valueobjects.ContentID,
	start, end, now time.Time,
) *Revision {
	rev := &Revision{
		id:             valueobjects.NewRevisionID(),
		memoID:         memoID,
		sequence:       1,
		actorID:        actorID,
		timestamp:      now,
		startTimestamp: start,
		endTimestamp:   end,
		contentID:      contentID,
	}
	if parent != nil {
		rev.parentID = parent.id
		rev.sequence = parent.sequence + 1
	}
	return rev
}

// NewRollbackRevision appends a minor revision that restores target's content
func NewRollbackRevision(memoID valueobjects.MemoID, actorID string, parent, target *Revision, now time.Time) *Revision {
	rev := NewRevision(memoID, actorID, parent, target.contentID, now, now, now)
	rev.summary = SummaryReverted
	rev.minorEdit = true
	return rev
}

// ReconstructRevision rebuilds a revision from storage
func ReconstructRevision(
	id valueobjects.RevisionID,
	memoID valueobjects.MemoID,
	sequence int64,
	actorID string,
	timestamp, startTimestamp, endTimestamp time.Time,
	parentID valueobjects.RevisionID,
	contentID valueobjects.ContentID,
	summary string,
	minorEdit bool,
) *Revision {
	return &Revision{
		id:             id,
		memoID:         memoID,
		sequence:       sequence,
		actorID:        actorID,
		timestamp:      timestamp,
		startTimestamp: startTimestamp,
		endTimestamp:   endTimestamp,
		parentID:       parentID,
		contentID:      contentID,
		summary:        summary,
		minorEdit:      minorEdit,
	}
}

func (r *Revision) ID() valueobjects.RevisionID       { return r.id }
func (r *Revision) MemoID() valueobjects.MemoID       { return r.memoID }
func (r *Revision) Sequence() int64                   { return r.sequence }
func (r *Revision) ActorID() string                   { return r.actorID }
func (r *Revision) Timestamp() time.Time              { return r.timestamp }
func (r *Revision) StartTimestamp() time.Time         { return r.startTimestamp }
func (r *Revision) EndTimestamp() time.Time           { return r.endTimestamp }
func (r *Revision) ParentID() valueobjects.RevisionID { return r.parentID }
func (r *Revision) ContentID() valueobjects.ContentID { return r.contentID }
func (r *Revision) Summary() string                   { return r.summary }
func (r *Revision) MinorEdit() bool                   { return r.minorEdit }
func (r *Revision) IsFirst() bool                     { return r.parentID.IsZero() }

// RevisionContent is the immutable payload of one or more revisions. Inline
// content keeps the body in Address; compressed content keeps a blob key.
type RevisionContent struct {
	id         valueobjects.ContentID
	size       int
	address    string
	compressed bool
}

// NewInlineContent stores body directly in the content record
func NewInlineContent(body valueobjects.Body) *RevisionContent {
	return &RevisionContent{
		id:      valueobjects.NewContentID(),
		size:    len(body.Bytes()),
		address: body.String(),
	}
}

// NewCompressedContent records a payload of size bytes stored under blobKey
func NewCompressedContent(id valueobjects.ContentID, size int, blobKey string) *RevisionContent {
	return &RevisionContent{
		id:         id,
		size:       size,
		address:    blobKey,
		compressed: true,
	}
}

// ReconstructRevisionContent rebuilds a content record from storage
func ReconstructRevisionContent(id valueobjects.ContentID, size int, address string, compressed bool) *RevisionContent {
	return &RevisionContent{id: id, size: size, address: address, compressed: compressed}
}

func (c *RevisionContent) ID() valueobjects.ContentID { return c.id }
func (c *RevisionContent) Size() int                  { return c.size }
func (c *RevisionContent) Address() string            { return c.address }
func (c *RevisionContent) Compressed() bool           { return c.compressed }

// Contributor records that a user has authored at least one revision of a memo
type Contributor struct {
	MemoID  valueobjects.MemoID
	UserID  string
	AddedAt time.Time
}

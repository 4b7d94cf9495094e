package ports

import (
	"context"
	"time"

	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
	"path-backend/domain/events"
)

// MemoRepository defines the interface for memo record persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type MemoRepository interface {
	// CreateMemo inserts the memo together with its initial draft (nil for
	// external memos) and records the creator as a contributor
	CreateMemo(ctx context.Context, memo *entities.Memo, draft *entities.Draft) error

	// GetMemo retrieves a memo; a missing memo is a NotFound error
	GetMemo(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error)

	// ListMemosByPoint retrieves every memo attached to a point
	ListMemosByPoint(ctx context.Context, pointID string) ([]*entities.Memo, error)

	// UpdateMemo persists title, summary, point, marker and update time.
	// The latest revision pointer is only moved by CommitFreeze.
	UpdateMemo(ctx context.Context, memo *entities.Memo) error
}

// DraftRepository defines the interface for the per-memo working copy
type DraftRepository interface {
	// GetDraft returns the live draft or nil when the memo has none
	GetDraft(ctx context.Context, memoID valueobjects.MemoID) (*entities.Draft, error)

	// CreateDraft inserts a draft; fails if one already exists
	CreateDraft(ctx context.Context, draft *entities.Draft) error

	// UpdateDraft rewrites a draft in place, conditional on the stored
	// draft still carrying expectedUpdatedAt
	UpdateDraft(ctx context.Context, draft *entities.Draft, expectedUpdatedAt time.Time) error
}

// ReservationRepository defines the interface for memo reservations
type ReservationRepository interface {
	// GetReservation returns the stored reservation, expired or not, or nil
	GetReservation(ctx context.Context, memoID valueobjects.MemoID) (*entities.Reservation, error)

	// UpsertReservation replaces the reservation of a memo in one write.
	// previousCode is the code of the reservation observed by the caller,
	// empty when none was observed; a mismatch fails the write.
	UpsertReservation(ctx context.Context, reservation *entities.Reservation, previousCode string) error

	// DeleteReservation removes the reservation carrying code. A missing
	// reservation is not an error.
	DeleteReservation(ctx context.Context, memoID valueobjects.MemoID, code string) error
}

// RevisionRepository defines the interface for the append-only revision ledger
type RevisionRepository interface {
	// GetRevision retrieves a revision; a missing revision is a NotFound error
	GetRevision(ctx context.Context, id valueobjects.RevisionID) (*entities.Revision, error)

	// ListRevisions returns up to limit revisions of a memo inside cursor,
	// highest sequence first
	ListRevisions(ctx context.Context, memoID valueobjects.MemoID, cursor RevisionCursor, limit int) ([]*entities.Revision, error)
}

// RevisionCursor bounds a revision listing. Zero fields do not filter.
type RevisionCursor struct {
	// Before keeps revisions with a timestamp strictly before it
	Before *time.Time

	// BelowSequence keeps revisions with a sequence strictly below it
	BelowSequence int64
}

// Includes reports whether r is inside the cursor
func (c RevisionCursor) Includes(r *entities.Revision) bool {
	if c.Before != nil && !r.Timestamp().Before(*c.Before) {
		return false
	}
	return c.BelowSequence <= 0 || r.Sequence() < c.BelowSequence
}

// ContentRepository defines the interface for revision content records
type ContentRepository interface {
	// GetContent retrieves a content record; a missing record is a NotFound error
	GetContent(ctx context.Context, id valueobjects.ContentID) (*entities.RevisionContent, error)
}

// ContributorRepository defines the interface for the contributor set
type ContributorRepository interface {
	// ListContributors returns the distinct users who authored a revision
	ListContributors(ctx context.Context, memoID valueobjects.MemoID) ([]string, error)
}

// FreezePlan is everything a freeze writes. It is committed all-or-nothing.
type FreezePlan struct {
	MemoID valueobjects.MemoID

	// ExpectedLatest is the latest revision the plan was computed against
	// (zero when the memo had none). A moved pointer fails the commit.
	ExpectedLatest valueobjects.RevisionID

	// Contents are new content records; Revisions are appended in order and
	// the last one becomes the memo's latest revision
	Contents  []*entities.RevisionContent
	Revisions []*entities.Revision

	// Contributors are added to the contributor set if missing
	Contributors []string

	// PreviousDraft is the draft being frozen, nil when there was none. It is
	// removed only if it is unchanged since it was read.
	PreviousDraft *entities.Draft

	// NextDraft replaces PreviousDraft; nil leaves the memo without a draft
	NextDraft *entities.Draft

	UpdatedAt time.Time
}

// LatestRevision returns the revision that becomes the memo's head, or nil
func (p FreezePlan) LatestRevision() *entities.Revision {
	if len(p.Revisions) == 0 {
		return nil
	}
	return p.Revisions[len(p.Revisions)-1]
}

// Store is the persistence boundary of the memo engine
type Store interface {
	MemoRepository
	DraftRepository
	ReservationRepository
	RevisionRepository
	ContentRepository
	ContributorRepository

	// CommitFreeze applies a FreezePlan atomically
	CommitFreeze(ctx context.Context, plan FreezePlan) error
}

// PointGraph is the point/edge graph collaborator. Only membership is used.
type PointGraph interface {
	// PointExists reports whether the point is known to the graph
	PointExists(ctx context.Context, pointID string) (bool, error)

	// AddMemo attaches a memo to a point
	AddMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error

	// RemoveMemo detaches a memo from a point; detaching twice is not an error
	RemoveMemo(ctx context.Context, pointID string, memoID valueobjects.MemoID) error

	// CountMemos returns the number of memos attached to a point
	CountMemos(ctx context.Context, pointID string) (int, error)
}

// BlobStore holds large revision payloads outside the content record
type BlobStore interface {
	// Put stores data under key
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the data stored under key; a missing key is a NotFound error
	Get(ctx context.Context, key string) ([]byte, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching immutable payloads
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error
}

// Clock tells the current time
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Metrics records business counters of the memo engine
type Metrics interface {
	// FreezeRecorded counts a freeze by reason and outcome
	FreezeRecorded(reason, outcome string)

	// DraftWritten counts a draft write, in place or after a freeze
	DraftWritten(inPlace bool)

	// ReservationConflict counts a caller rejected by a reservation
	ReservationConflict(operation string)

	// RollbackRecorded counts a rollback
	RollbackRecorded(forced bool)

	// CacheLookup counts a content cache hit or miss
	CacheLookup(hit bool)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) FreezeRecorded(string, string) {}
func (NoopMetrics) DraftWritten(bool)             {}
func (NoopMetrics) ReservationConflict(string)    {}
func (NoopMetrics) RollbackRecorded(bool)         {}
func (NoopMetrics) CacheLookup(bool)              {}

package entities

import (
	"strings"
	"time"

	"path-backend/domain/core/valueobjects"
	"path-backend/domain/events"
	pkgerrors "path-backend/pkg/errors"
)

// Memo is the aggregate root of a collaboratively edited document attached
// to a point. Draft, reservation, revisions and contributors all hang off it.
type Memo struct {
	id               valueobjects.MemoID
	pointID          string
	title            string
	summary          string
	summaryAt        *time.Time
	latestRevisionID valueobjects.RevisionID
	createdAt        time.Time
	createdBy        string
	updatedAt        time.Time
	externalMarker   string

	events []events.DomainEvent
}

// NewMemo creates a memo attached to pointID. A non-empty externalMarker makes
// the memo external: its content lives elsewhere and drafting is bypassed.
func NewMemo(pointID, title, createdBy, externalMarker string, now time.Time) (*Memo, error) {
	title = strings.TrimSpace(title)

	var missing []string
	if pointID == "" {
		missing = append(missing, "pointId")
	}
	if title == "" {
		missing = append(missing, "title")
	}
	if createdBy == "" {
		missing = append(missing, "userId")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.NullInput(missing...)
	}

	memo := &Memo{
		id:             valueobjects.NewMemoID(),
		pointID:        pointID,
		title:          title,
		createdAt:      now,
		createdBy:      createdBy,
		updatedAt:      now,
		externalMarker: strings.TrimSpace(externalMarker),
	}
	memo.addEvent(events.NewMemoCreated(memo.id.String(), pointID, title, createdBy, memo.IsExternal(), now))
	return memo, nil
}

// ReconstructMemo rebuilds a memo from storage without raising events
func ReconstructMemo(
	id valueobjects.MemoID,
	pointID, title, summary string,
	summaryAt *time.Time,
	latestRevisionID valueobjects.RevisionID,
	createdAt time.Time,
	createdBy string,
	updatedAt time.Time,
	externalMarker string,
) *Memo {
	return &Memo{
		id:               id,
		pointID:          pointID,
		title:            title,
		summary:          summary,
		summaryAt:        summaryAt,
		latestRevisionID: latestRevisionID,
		createdAt:        createdAt,
		createdBy:        createdBy,
		updatedAt:        updatedAt,
		externalMarker:   externalMarker,
	}
}

// ID returns the memo's unique identifier
func (m *Memo) ID() valueobjects.MemoID {
	return m.id
}

// PointID returns the point the memo is attached to
func (m *Memo) PointID() string {
	return m.pointID
}

func (m *Memo) Title() string {
	return m.title
}

func (m *Memo) Summary() string {
	return m.summary
}

func (m *Memo) SummaryAt() *time.Time {
	return m.summaryAt
}

func (m *Memo) CreatedAt() time.Time {
	return m.createdAt
}

func (m *Memo) CreatedBy() string {
	return m.createdBy
}

// UpdatedAt returns the memo's own update time. The effective update time
// reported to callers also accounts for the draft and latest revision.
func (m *Memo) UpdatedAt() time.Time {
	return m.updatedAt
}

func (m *Memo) ExternalMarker() string {
	return m.externalMarker
}

// IsExternal reports whether the memo mirrors external content
func (m *Memo) IsExternal() bool {
	return m.externalMarker != ""
}

// LatestRevisionID returns the head of the revision chain, zero if none
func (m *Memo) LatestRevisionID() valueobjects.RevisionID {
	return m.latestRevisionID
}

// HasRevision reports whether at least one revision was frozen
func (m *Memo) HasRevision() bool {
	return !m.latestRevisionID.IsZero()
}

// Rename changes the title. The title is trimmed and must not be blank.
func (m *Memo) Rename(title string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return pkgerrors.NullInput("title")
	}
	if title == m.title {
		return nil
	}
	old := m.title
	m.title = title
	m.updatedAt = now
	m.addEvent(events.NewMemoTitleChanged(m.id.String(), old, title, now))
	return nil
}

// SetSummary records a free text summary of the memo
func (m *Memo) SetSummary(summary string, now time.Time) {
	m.summary = strings.TrimSpace(summary)
	m.summaryAt = &now
	m.updatedAt = now
}

// MoveTo reassigns the memo to another point
func (m *Memo) MoveTo(pointID string, now time.Time) error {
	if pointID == "" {
		return pkgerrors.NullInput("pointId")
	}
	if pointID == m.pointID {
		return nil
	}
	from := m.pointID
	m.pointID = pointID
	m.updatedAt = now
	m.addEvent(events.NewMemoMoved(m.id.String(), from, pointID, now))
	return nil
}

// AdvanceTo points the memo at a newly appended revision
func (m *Memo) AdvanceTo(revisionID valueobjects.RevisionID, now time.Time) {
	m.latestRevisionID = revisionID
	m.updatedAt = now
}

// ChangeExternalMarker replaces the marker of an external memo. Internal
// memos cannot be turned external after creation.
func (m *Memo) ChangeExternalMarker(marker string, now time.Time) error {
	if !m.IsExternal() {
		return pkgerrors.NewValidationError("memo is not an external memo - memo: " + m.id.String()).
			WithCode(pkgerrors.CodeNotExternalMemo)
	}
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return pkgerrors.NullInput("externalMarker")
	}
	m.externalMarker = marker
	m.updatedAt = now
	return nil
}

// Touch bumps the memo's own update time
func (m *Memo) Touch(now time.Time) {
	if now.After(m.updatedAt) {
		m.updatedAt = now
	}
}

// GetUncommittedEvents returns events raised since the last commit
func (m *Memo) GetUncommittedEvents() []events.DomainEvent {
	return m.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (m *Memo) MarkEventsAsCommitted() {
	m.events = nil
}

func (m *Memo) addEvent(event events.DomainEvent) {
	m.events = append(m.events, event)
}

package dynamodb

import (
	"fmt"
	"time"

	"path-backend/domain/core/entities"
	"path-backend/domain/core/valueobjects"
)

// memoItem represents the DynamoDB item structure for a memo
type memoItem struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	GSI1PK           string `dynamodbav:"GSI1PK"` // POINT#<point>
	GSI1SK           string `dynamodbav:"GSI1SK"` // MEMO#<created>#<id>
	EntityType       string `dynamodbav:"EntityType"`
	MemoID           string `dynamodbav:"MemoID"`
	PointID          string `dynamodbav:"PointID"`
	Title            string `dynamodbav:"Title"`
	Summary          string `dynamodbav:"Summary"`
	SummaryAt        string `dynamodbav:"SummaryAt,omitempty"`
	LatestRevisionID string `dynamodbav:"LatestRevisionID"`
	CreatedAt        string `dynamodbav:"CreatedAt"`
	CreatedBy        string `dynamodbav:"CreatedBy"`
	UpdatedAt        string `dynamodbav:"UpdatedAt"`
	ExternalMarker   string `dynamodbav:"ExternalMarker"`
}

type draftItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	MemoID     string `dynamodbav:"MemoID"`
	EditorID   string `dynamodbav:"EditorID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
	Body       string `dynamodbav:"Body"`
}

type reservationItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	MemoID     string `dynamodbav:"MemoID"`
	EditorID   string `dynamodbav:"EditorID"`
	Code       string `dynamodbav:"Code"`
	ReservedAt string `dynamodbav:"ReservedAt"`
	ExpiresAt  string `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"` // Unix timestamp for DynamoDB TTL
}

type revisionItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	EntityType     string `dynamodbav:"EntityType"`
	RevisionID     string `dynamodbav:"RevisionID"`
	MemoID         string `dynamodbav:"MemoID"`
	Sequence       int64  `dynamodbav:"Sequence"`
	ActorID        string `dynamodbav:"ActorID"`
	Timestamp      string `dynamodbav:"Timestamp"`
	TimestampNanos int64  `dynamodbav:"TimestampNanos"`
	StartTimestamp string `dynamodbav:"StartTimestamp"`
	EndTimestamp   string `dynamodbav:"EndTimestamp"`
	ParentID       string `dynamodbav:"ParentID"`
	ContentID      string `dynamodbav:"ContentID"`
	Summary        string `dynamodbav:"Summary"`
	MinorEdit      bool   `dynamodbav:"MinorEdit"`
}

type contentItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ContentID  string `dynamodbav:"ContentID"`
	Size       int    `dynamodbav:"Size"`
	Address    string `dynamodbav:"Address"`
	Compressed bool   `dynamodbav:"Compressed"`
}

type contributorItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	UserID  string `dynamodbav:"UserID"`
	AddedAt string `dynamodbav:"AddedAt"`
}

type titleItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	MemoID string `dynamodbav:"MemoID"`
}

func memoKey(id valueobjects.MemoID) itemKey {
	return itemKey{PK: memoPK(id.String()), SK: skMetadata}
}

func draftKey(id valueobjects.MemoID) itemKey {
	return itemKey{PK: memoPK(id.String()), SK: skDraft}
}

func reservationKey(id valueobjects.MemoID) itemKey {
	return itemKey{PK: memoPK(id.String()), SK: skReservation}
}

func contributorKey(id valueobjects.MemoID, userID string) itemKey {
	return itemKey{PK: memoPK(id.String()), SK: skContributor + userID}
}

func titleKey(pointID, title string) itemKey {
	return itemKey{PK: pointPK(pointID), SK: skTitle + title}
}

func newMemoItem(m *entities.Memo) memoItem {
	item := memoItem{
		PK:               memoPK(m.ID().String()),
		SK:               skMetadata,
		GSI1PK:           pointPK(m.PointID()),
		GSI1SK:           fmt.Sprintf("%s%s#%s", skMembership, sortableTime(m.CreatedAt()), m.ID().String()),
		EntityType:       "MEMO",
		MemoID:           m.ID().String(),
		PointID:          m.PointID(),
		Title:            m.Title(),
		Summary:          m.Summary(),
		LatestRevisionID: m.LatestRevisionID().String(),
		CreatedAt:        formatTime(m.CreatedAt()),
		CreatedBy:        m.CreatedBy(),
		UpdatedAt:        formatTime(m.UpdatedAt()),
		ExternalMarker:   m.ExternalMarker(),
	}
	if m.SummaryAt() != nil {
		item.SummaryAt = formatTime(*m.SummaryAt())
	}
	return item
}

func (i memoItem) toEntity() (*entities.Memo, error) {
	id, err := valueobjects.ParseMemoID(i.MemoID)
	if err != nil {
		return nil, err
	}
	var latest valueobjects.RevisionID
	if i.LatestRevisionID != "" {
		if latest, err = valueobjects.ParseRevisionID(i.LatestRevisionID); err != nil {
			return nil, err
		}
	}
	createdAt, err := parseTime(i.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var summaryAt *time.Time
	if i.SummaryAt != "" {
		t, err := parseTime(i.SummaryAt)
		if err != nil {
			return nil, err
		}
		summaryAt = &t
	}
	return entities.ReconstructMemo(id, i.PointID, i.Title, i.Summary, summaryAt, latest, createdAt, i.CreatedBy, updatedAt, i.ExternalMarker), nil
}

func newDraftItem(d *entities.Draft) draftItem {
	return draftItem{
		PK:         memoPK(d.MemoID().String()),
		SK:         skDraft,
		EntityType: "DRAFT",
		MemoID:     d.MemoID().String(),
		EditorID:   d.EditorID(),
		CreatedAt:  formatTime(d.CreatedAt()),
		UpdatedAt:  formatTime(d.UpdatedAt()),
		Body:       d.Body().String(),
	}
}

func (i draftItem) toEntity(memoID valueobjects.MemoID) (*entities.Draft, error) {
	createdAt, err := parseTime(i.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructDraft(memoID, i.EditorID, createdAt, updatedAt, valueobjects.NewBody(i.Body)), nil
}

func newReservationItem(r *entities.Reservation) reservationItem {
	return reservationItem{
		PK:         memoPK(r.MemoID().String()),
		SK:         skReservation,
		EntityType: "RESERVATION",
		MemoID:     r.MemoID().String(),
		EditorID:   r.EditorID(),
		Code:       r.Code(),
		ReservedAt: formatTime(r.ReservedAt()),
		ExpiresAt:  formatTime(r.ExpiresAt()),
		TTL:        r.ExpiresAt().Add(24 * time.Hour).Unix(),
	}
}

func (i reservationItem) toEntity(memoID valueobjects.MemoID) (*entities.Reservation, error) {
	reservedAt, err := parseTime(i.ReservedAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseTime(i.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructReservation(memoID, i.EditorID, i.Code, reservedAt, expiresAt), nil
}

// newRevisionItem builds the item stored under pk/sk; a revision is
// written twice, once by id and once in its memo's ledger
func newRevisionItem(r *entities.Revision, pk, sk string) revisionItem {
	return revisionItem{
		PK:             pk,
		SK:             sk,
		EntityType:     "REVISION",
		RevisionID:     r.ID().String(),
		MemoID:         r.MemoID().String(),
		Sequence:       r.Sequence(),
		ActorID:        r.ActorID(),
		Timestamp:      formatTime(r.Timestamp()),
		TimestampNanos: r.Timestamp().UnixNano(),
		StartTimestamp: formatTime(r.StartTimestamp()),
		EndTimestamp:   formatTime(r.EndTimestamp()),
		ParentID:       r.ParentID().String(),
		ContentID:      r.ContentID().String(),
		Summary:        r.Summary(),
		MinorEdit:      r.MinorEdit(),
	}
}

func (i revisionItem) toEntity() (*entities.Revision, error) {
	id, err := valueobjects.ParseRevisionID(i.RevisionID)
	if err != nil {
		return nil, err
	}
	memoID, err := valueobjects.ParseMemoID(i.MemoID)
	if err != nil {
		return nil, err
	}
	var parent valueobjects.RevisionID
	if i.ParentID != "" {
		if parent, err = valueobjects.ParseRevisionID(i.ParentID); err != nil {
			return nil, err
		}
	}
	contentID, err := valueobjects.ParseContentID(i.ContentID)
	if err != nil {
		return nil, err
	}

	var stamps [3]time.Time
	for n, s := range []string{i.Timestamp, i.StartTimestamp, i.EndTimestamp} {
		if stamps[n], err = parseTime(s); err != nil {
			return nil, err
		}
	}
	return entities.ReconstructRevision(id, memoID, i.Sequence, i.ActorID, stamps[0], stamps[1], stamps[2], parent, contentID, i.Summary, i.MinorEdit), nil
}

func newContentItem(c *entities.RevisionContent) contentItem {
	return contentItem{
		PK:         contentPK(c.ID().String()),
		SK:         skMetadata,
		EntityType: "CONTENT",
		ContentID:  c.ID().String(),
		Size:       c.Size(),
		Address:    c.Address(),
		Compressed: c.Compressed(),
	}
}

func (i contentItem) toEntity() (*entities.RevisionContent, error) {
	id, err := valueobjects.ParseContentID(i.ContentID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructRevisionContent(id, i.Size, i.Address, i.Compressed), nil
}

package handlers

import (
	"time"

	"path-backend/application/services"
	"path-backend/domain/core/entities"
)

// CreateMemoRequest represents the request body for creating a memo
type CreateMemoRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	Body           string `json:"body"`
	ExternalMarker string `json:"external_marker,omitempty" validate:"omitempty,max=2048"`
}

// UpdateDraftRequest represents the request body for writing a draft.
// An empty body is allowed and clears the draft text.
type UpdateDraftRequest struct {
	Body *string `json:"body" validate:"required"`
}

// UpdateTitleRequest represents the request body for renaming a memo
type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// ChangeExternalMarkerRequest represents the request body for repointing an
// external memo
type ChangeExternalMarkerRequest struct {
	Marker string `json:"marker" validate:"required,max=2048"`
}

// MoveMemoRequest represents the request body for moving a memo
type MoveMemoRequest struct {
	PointID string `json:"point_id" validate:"required"`
}

// MemoResponse is the JSON form of a memo
type MemoResponse struct {
	ID               string     `json:"id"`
	PointID          string     `json:"point_id"`
	Title            string     `json:"title"`
	Summary          string     `json:"summary,omitempty"`
	SummaryAt        *time.Time `json:"summary_at,omitempty"`
	ExternalMarker   string     `json:"external_marker,omitempty"`
	LatestRevisionID string     `json:"latest_revision_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CreatedBy        string     `json:"created_by"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// MemoViewResponse is the effective state of a memo
type MemoViewResponse struct {
	MemoResponse
	Body         string                    `json:"body"`
	Source       string                    `json:"source"`
	UpdatedBy    string                    `json:"updated_by,omitempty"`
	Contributors []string                  `json:"contributors"`
	Reservation  *services.ReservationView `json:"reservation,omitempty"`
	Unchanged    bool                      `json:"unchanged,omitempty"`
}

// CreateMemoResponse carries the new memo, its initial draft and, with
// continueEditing, the creator's reservation
type CreateMemoResponse struct {
	Memo        MemoResponse         `json:"memo"`
	Draft       *DraftResponse       `json:"draft,omitempty"`
	Reservation *ReservationResponse `json:"reservation,omitempty"`
}

// DraftWriteResponse carries the written draft and, with continueEditing,
// the writer's new reservation
type DraftWriteResponse struct {
	DraftResponse
	Reservation *ReservationResponse `json:"reservation,omitempty"`
}

// DraftResponse is the JSON form of a draft
type DraftResponse struct {
	MemoID    string    `json:"memo_id"`
	EditorID  string    `json:"editor_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReservationResponse is returned to the holder only; it carries the code
type ReservationResponse struct {
	MemoID     string    `json:"memo_id"`
	EditorID   string    `json:"editor_id"`
	Code       string    `json:"code"`
	ReservedAt time.Time `json:"reserved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RevisionResponse is the JSON form of a revision
type RevisionResponse struct {
	ID             string    `json:"id"`
	MemoID         string    `json:"memo_id"`
	Sequence       int64     `json:"sequence"`
	ActorID        string    `json:"actor_id"`
	Timestamp      time.Time `json:"timestamp"`
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	ParentID       string    `json:"parent_id,omitempty"`
	ContentID      string    `json:"content_id"`
	Summary        string    `json:"summary,omitempty"`
	MinorEdit      bool      `json:"minor_edit"`
}

func toMemoResponse(m *entities.Memo) MemoResponse {
	return MemoResponse{
		ID:               m.ID().String(),
		PointID:          m.PointID(),
		Title:            m.Title(),
		Summary:          m.Summary(),
		SummaryAt:        m.SummaryAt(),
		ExternalMarker:   m.ExternalMarker(),
		LatestRevisionID: m.LatestRevisionID().String(),
		CreatedAt:        m.CreatedAt(),
		CreatedBy:        m.CreatedBy(),
		UpdatedAt:        m.UpdatedAt(),
	}
}

func toMemoViewResponse(v *services.MemoView) MemoViewResponse {
	contributors := v.Contributors
	if contributors == nil {
		contributors = []string{}
	}
	resp := MemoViewResponse{
		MemoResponse: toMemoResponse(v.Memo),
		Body:         v.Body,
		Source:       string(v.Source),
		UpdatedBy:    v.UpdatedBy,
		Contributors: contributors,
		Reservation:  v.Reservation,
		Unchanged:    v.Unchanged,
	}
	resp.UpdatedAt = v.UpdatedAt
	return resp
}

func toDraftResponse(d *entities.Draft) *DraftResponse {
	if d == nil {
		return nil
	}
	return &DraftResponse{
		MemoID:    d.MemoID().String(),
		EditorID:  d.EditorID(),
		Body:      d.Body().String(),
		CreatedAt: d.CreatedAt(),
		UpdatedAt: d.UpdatedAt(),
	}
}

func toOptionalReservation(r *entities.Reservation) *ReservationResponse {
	if r == nil {
		return nil
	}
	resp := toReservationResponse(r)
	return &resp
}

func toReservationResponse(r *entities.Reservation) ReservationResponse {
	return ReservationResponse{
		MemoID:     r.MemoID().String(),
		EditorID:   r.EditorID(),
		Code:       r.Code(),
		ReservedAt: r.ReservedAt(),
		ExpiresAt:  r.ExpiresAt(),
	}
}

func toRevisionResponse(r *entities.Revision) RevisionResponse {
	return RevisionResponse{
		ID:             r.ID().String(),
		MemoID:         r.MemoID().String(),
		Sequence:       r.Sequence(),
		ActorID:        r.ActorID(),
		Timestamp:      r.Timestamp(),
		StartTimestamp: r.StartTimestamp(),
		EndTimestamp:   r.EndTimestamp(),
		ParentID:       r.ParentID().String(),
		ContentID:      r.ContentID().String(),
		Summary:        r.Summary(),
		MinorEdit:      r.MinorEdit(),
	}
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"path-backend/application/services"
	"path-backend/pkg/auth"
	"path-backend/pkg/common"
	pkgerrors "path-backend/pkg/errors"
	"path-backend/pkg/utils"
)

// MemoHandler handles memo, draft and reservation requests
type MemoHandler struct {
	memos        *services.MemoService
	drafts       *services.DraftService
	reservations *services.ReservationManager
	errors       *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewMemoHandler creates a new memo handler
func NewMemoHandler(
	memos *services.MemoService,
	drafts *services.DraftService,
	reservations *services.ReservationManager,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *MemoHandler {
	return &MemoHandler{
		memos:        memos,
		drafts:       drafts,
		reservations: reservations,
		errors:       errorHandler,
		logger:       logger,
	}
}

// CreateMemo handles POST /api/v1/points/{pointID}/memos[?continueEditing=true]
func (h *MemoHandler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	continueEditing, err := boolQuery(r, "continueEditing")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req CreateMemoRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	created, err := h.memos.CreateMemo(r.Context(), chi.URLParam(r, "pointID"), auth.UserID(r.Context()),
		req.Title, req.Body, req.ExternalMarker, continueEditing)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, CreateMemoResponse{
		Memo:        toMemoResponse(created.Memo),
		Draft:       toDraftResponse(created.Draft),
		Reservation: toOptionalReservation(created.Reservation),
	})
}

// ListMemosByPoint handles GET /api/v1/points/{pointID}/memos
func (h *MemoHandler) ListMemosByPoint(w http.ResponseWriter, r *http.Request) {
	updatedAfter, err := utils.ParseOptionalTime("updatedAfter", r.URL.Query().Get("updatedAfter"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	views, err := h.memos.ListMemosByPoint(r.Context(), chi.URLParam(r, "pointID"), updatedAfter)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp := make([]MemoViewResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toMemoViewResponse(v))
	}
	meta := common.RequestMeta(r)
	meta.Cursor = &common.CursorInfo{Count: len(resp)}
	common.RespondWithMeta(w, http.StatusOK, resp, meta)
}

// GetMemo handles GET /api/v1/memos/{memoID}. A client that already holds the
// current state gets 304 Not Modified.
func (h *MemoHandler) GetMemo(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	updatedAfter, err := utils.ParseOptionalTime("updatedAfter", r.URL.Query().Get("updatedAfter"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	view, err := h.memos.GetMemo(r.Context(), memoID, updatedAfter)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if view.Unchanged {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	common.RespondJSON(w, http.StatusOK, toMemoViewResponse(view))
}

// UpdateDraft handles PUT /api/v1/memos/{memoID}/draft[?continueEditing=true]
func (h *MemoHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	continueEditing, err := boolQuery(r, "continueEditing")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req UpdateDraftRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	written, err := h.drafts.UpdateDraft(r.Context(), memoID, auth.UserID(r.Context()), *req.Body,
		r.Header.Get(ReserveCodeHeader), continueEditing)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, DraftWriteResponse{
		DraftResponse: *toDraftResponse(written.Draft),
		Reservation:   toOptionalReservation(written.Reservation),
	})
}

// UpdateTitle handles PATCH /api/v1/memos/{memoID}/title
func (h *MemoHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req UpdateTitleRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	memo, err := h.memos.UpdateTitle(r.Context(), memoID, req.Title)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toMemoResponse(memo))
}

// ChangeExternalMarker handles PATCH /api/v1/memos/{memoID}/external
func (h *MemoHandler) ChangeExternalMarker(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req ChangeExternalMarkerRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	memo, err := h.memos.ChangeExternalMarker(r.Context(), memoID, req.Marker)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toMemoResponse(memo))
}

// MoveMemo handles PUT /api/v1/memos/{memoID}/point
func (h *MemoHandler) MoveMemo(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req MoveMemoRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	memo, err := h.memos.MoveMemo(r.Context(), memoID, req.PointID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toMemoResponse(memo))
}

// Reserve handles POST /api/v1/memos/{memoID}/reserve. Sending the current
// code extends the caller's own reservation.
func (h *MemoHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	reservation, err := h.reservations.Reserve(r.Context(), memoID, auth.UserID(r.Context()), r.Header.Get(ReserveCodeHeader))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toReservationResponse(reservation))
}

// CancelReserve handles DELETE /api/v1/memos/{memoID}/reserve
func (h *MemoHandler) CancelReserve(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.reservations.Cancel(r.Context(), memoID, auth.UserID(r.Context()), r.Header.Get(ReserveCodeHeader)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

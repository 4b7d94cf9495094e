package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/application/services"
	"path-backend/pkg/auth"
	"path-backend/pkg/common"
	pkgerrors "path-backend/pkg/errors"
)

// RevisionHandler handles revision history, content and rollback requests
type RevisionHandler struct {
	memos  *services.MemoService
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewRevisionHandler creates a new revision handler
func NewRevisionHandler(memos *services.MemoService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *RevisionHandler {
	return &RevisionHandler{memos: memos, errors: errorHandler, logger: logger}
}

// ListRevisions handles GET /api/v1/memos/{memoID}/revisions. The page is
// newest first; pass meta.cursor.next_cursor as ?cursor= to continue.
func (h *RevisionHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	params, err := common.ExtractCursorParams(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cursor := ports.RevisionCursor{Before: params.Before, BelowSequence: params.Cursor}
	it, err := h.memos.ListRevisions(r.Context(), memoID, cursor, params.Limit)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	revisions, err := it.Collect(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp := make([]RevisionResponse, 0, len(revisions))
	for _, rev := range revisions {
		resp = append(resp, toRevisionResponse(rev))
	}

	meta := common.RequestMeta(r)
	meta.Cursor = &common.CursorInfo{Count: len(resp)}
	if n := len(revisions); n > 0 {
		meta.Cursor.NextCursor = strconv.FormatInt(revisions[n-1].Sequence(), 10)
	}
	common.RespondWithMeta(w, http.StatusOK, resp, meta)
}

// Rollback handles POST /api/v1/memos/{memoID}/revisions/{revisionID}/rollback
func (h *RevisionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	memoID, err := memoIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	revisionID, err := revisionIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	forced, err := boolQuery(r, "forced")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	revision, err := h.memos.Rollback(r.Context(), memoID, auth.UserID(r.Context()), revisionID, forced)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, toRevisionResponse(revision))
}

// GetRevisionContent handles GET /api/v1/contents/{contentID}
func (h *RevisionHandler) GetRevisionContent(w http.ResponseWriter, r *http.Request) {
	contentID, err := contentIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	content, err := h.memos.GetRevisionContent(r.Context(), contentID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, content)
}

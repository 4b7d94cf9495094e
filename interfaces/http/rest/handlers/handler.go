package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"path-backend/domain/core/valueobjects"
	pkgerrors "path-backend/pkg/errors"
	"path-backend/pkg/utils"
)

// ReserveCodeHeader carries the reservation code of the caller
const ReserveCodeHeader = "X-Reserve-Code"

func decodeRequest(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.NewValidationError("invalid request body").WithCause(err)
	}
	return utils.ValidateStruct(dst)
}

// boolQuery reads an optional boolean query parameter; absent means false
func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.NewValidationError(name+" must be a boolean").WithDetail("field", name)
	}
	return v, nil
}

func memoIDParam(r *http.Request) (valueobjects.MemoID, error) {
	id, err := valueobjects.ParseMemoID(chi.URLParam(r, "memoID"))
	if err != nil {
		return id, pkgerrors.NewValidationError(err.Error()).WithDetail("field", "memoId")
	}
	return id, nil
}

func revisionIDParam(r *http.Request) (valueobjects.RevisionID, error) {
	id, err := valueobjects.ParseRevisionID(chi.URLParam(r, "revisionID"))
	if err != nil {
		return id, pkgerrors.NewValidationError(err.Error()).WithDetail("field", "revisionId")
	}
	return id, nil
}

func contentIDParam(r *http.Request) (valueobjects.ContentID, error) {
	id, err := valueobjects.ParseContentID(chi.URLParam(r, "contentID"))
	if err != nil {
		return id, pkgerrors.NewValidationError(err.Error()).WithDetail("field", "contentId")
	}
	return id, nil
}

package common

import (
	"net/http"
	"strconv"
	"time"

	pkgerrors "path-backend/pkg/errors"
	"path-backend/pkg/utils"
)

// CursorParams are the parameters of a newest-first listing. Before is an
// exclusive timestamp bound and Cursor the opaque position returned as
// next_cursor by the previous page; zero Limit means the server default.
type CursorParams struct {
	Before *time.Time
	Cursor int64
	Limit  int
}

// ExtractCursorParams reads ?before=, ?cursor= and ?limit= from the request
func ExtractCursorParams(r *http.Request) (CursorParams, error) {
	var params CursorParams

	before, err := utils.ParseOptionalTime("before", r.URL.Query().Get("before"))
	if err != nil {
		return params, err
	}
	params.Before = before

	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		c, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || c <= 0 {
			return params, pkgerrors.NewValidationError("cursor must be a positive integer").WithDetail("field", "cursor")
		}
		params.Cursor = c
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil || l < 0 {
			return params, pkgerrors.NewValidationError("limit must be a non-negative integer").WithDetail("field", "limit")
		}
		params.Limit = l
	}
	return params, nil
}

// CursorInfo tells the client how to fetch the next page
type CursorInfo struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor,omitempty"`
}

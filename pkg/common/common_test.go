package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "path-backend/pkg/errors"
)

func TestExtractCursorParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/revisions?before=2024-05-01T09:00:00Z&limit=5", nil)
	params, err := ExtractCursorParams(r)
	require.NoError(t, err)
	assert.Equal(t, 5, params.Limit)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), *params.Before)

	params, err = ExtractCursorParams(httptest.NewRequest(http.MethodGet, "/revisions", nil))
	require.NoError(t, err)
	assert.Nil(t, params.Before)
	assert.Zero(t, params.Limit)

	_, err = ExtractCursorParams(httptest.NewRequest(http.MethodGet, "/revisions?limit=-1", nil))
	assert.True(t, pkgerrors.IsValidation(err))

	params, err = ExtractCursorParams(httptest.NewRequest(http.MethodGet, "/revisions?cursor=12", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(12), params.Cursor)

	for _, bad := range []string{"0", "-3", "abc"} {
		_, err = ExtractCursorParams(httptest.NewRequest(http.MethodGet, "/revisions?cursor="+bad, nil))
		assert.True(t, pkgerrors.IsValidation(err), bad)
	}
}

func TestRespondWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithMeta(rec, http.StatusOK, map[string]string{"id": "m1"}, &MetaInfo{Cursor: &CursorInfo{Count: 1}})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Meta    MetaInfo          `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "m1", body.Data["id"])
	assert.Equal(t, 1, body.Meta.Cursor.Count)
}

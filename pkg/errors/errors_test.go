package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantType   ErrorType
		wantStatus int
	}{
		{
			name:       "title unique",
			err:        NewConstraintViolation(ConstraintMemoTitleUnique, "Notes", nil),
			wantCode:   CodeDuplicateTitle,
			wantType:   ErrorTypeConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "wrapped draft version",
			err:        fmt.Errorf("update draft: %w", NewConstraintViolation(ConstraintDraftVersion, "memo-1", nil)),
			wantCode:   CodeDraftModified,
			wantType:   ErrorTypeConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing point",
			err:        NewConstraintViolation(ConstraintMemoPointFK, "point-9", nil),
			wantCode:   CodePointNotFound,
			wantType:   ErrorTypeNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "point full",
			err:        NewConstraintViolation(ConstraintPointMemoLimit, "point-1", nil),
			wantCode:   CodePointMaxMemosReached,
			wantType:   ErrorTypeConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown constraint",
			err:        NewConstraintViolation("made_up_check", "x", nil),
			wantCode:   CodeUnknown,
			wantType:   ErrorTypeInternal,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "app error passes through",
			err:        MemoNotFound("memo-1"),
			wantCode:   CodeMemoNotFound,
			wantType:   ErrorTypeNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "plain error",
			err:        errors.New("connection reset"),
			wantType:   ErrorTypeDatabase,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := GetAppError(Translate("op", tt.err))
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.wantStatus, appErr.HTTPStatus)
		})
	}

	assert.NoError(t, Translate("op", nil))
}

func TestTranslate_KeepsCause(t *testing.T) {
	cause := errors.New("conditional check failed")
	err := Translate("reserve", NewConstraintViolation(ConstraintReserveCode, "memo-1", cause))

	assert.True(t, HasCode(err, CodeMemoReserved))
	assert.ErrorIs(t, err, cause)
}

func TestNullInput(t *testing.T) {
	err := NullInput("title", "body")
	assert.True(t, IsValidation(err))
	assert.Equal(t, CodeNullInput, err.Code)
	assert.Equal(t, []string{"title", "body"}, err.Details["fields"])
}

func TestErrorHandler_Handle(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	render := func(err error) (*httptest.ResponseRecorder, ErrorResponse) {
		h := NewErrorHandler(zap.NewNop(), false)
		h.now = func() time.Time { return now }
		rec := httptest.NewRecorder()
		h.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
		return rec, resp
	}

	t.Run("reserved memo names the holder", func(t *testing.T) {
		until := now.Add(90*time.Second + 300*time.Millisecond)
		rec, resp := render(MemoReserved("memo-1", "user-a", until))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, CodeMemoReserved, resp.Code)
		assert.Equal(t, string(ErrorTypeConflict), resp.Type)
		require.NotNil(t, resp.Holder)
		assert.Equal(t, "memo-1", resp.Holder.MemoID)
		assert.Equal(t, "user-a", resp.Holder.EditorID)
		require.NotNil(t, resp.Holder.Until)
		assert.True(t, until.Equal(*resp.Holder.Until))
		require.NotNil(t, resp.Retry)
		assert.True(t, resp.Retry.Retryable)
		assert.False(t, resp.Retry.Reload)
		assert.Equal(t, 91, resp.Retry.AfterSeconds)
		assert.Equal(t, "91", rec.Header().Get("Retry-After"))
	})

	t.Run("lapsed reservation retries at once", func(t *testing.T) {
		rec, resp := render(MemoReserved("memo-1", "user-a", now.Add(-time.Minute)))
		assert.Equal(t, "0", rec.Header().Get("Retry-After"))
		assert.Equal(t, 0, resp.Retry.AfterSeconds)
	})

	t.Run("reservation changed concurrently asks for a reload", func(t *testing.T) {
		rec, resp := render(Translate("reserve memo", NewConstraintViolation(ConstraintReserveCode, "memo-1", nil)))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, CodeMemoReserved, resp.Code)
		assert.Nil(t, resp.Holder)
		require.NotNil(t, resp.Retry)
		assert.True(t, resp.Retry.Reload)
		assert.Empty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("draft modified asks for a reload", func(t *testing.T) {
		rec, resp := render(Translate("update draft", NewConstraintViolation(ConstraintDraftVersion, "memo-1", nil)))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, CodeDraftModified, resp.Code)
		require.NotNil(t, resp.Retry)
		assert.True(t, resp.Retry.Retryable)
		assert.True(t, resp.Retry.Reload)
		assert.Nil(t, resp.Holder)
	})

	t.Run("other conflicts carry no hint", func(t *testing.T) {
		_, resp := render(Translate("create memo", NewConstraintViolation(ConstraintMemoTitleUnique, "Notes", nil)))
		assert.Equal(t, CodeDuplicateTitle, resp.Code)
		assert.Nil(t, resp.Retry)
		assert.Nil(t, resp.Holder)
	})

	t.Run("internal details hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := NewDatabaseError("get memo", errors.New("disk on fire"))
		NewErrorHandler(zap.NewNop(), false).Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "disk on fire")
		assert.NotContains(t, rec.Body.String(), "get memo")
	})

	t.Run("plain error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewErrorHandler(zap.NewNop(), false).Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), CodeUnknown)
	})
}

func TestErrorHandler_MiddlewareRecoversPanics(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), false).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("unexpected")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

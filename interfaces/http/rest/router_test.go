package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"path-backend/application/ports"
	"path-backend/application/services"
	"path-backend/domain/config"
	"path-backend/infrastructure/messaging"
	"path-backend/infrastructure/observability"
	"path-backend/infrastructure/persistence/memory"
	"path-backend/interfaces/http/rest"
	"path-backend/interfaces/http/rest/handlers"
	"path-backend/interfaces/http/rest/middleware"
	"path-backend/pkg/auth"
	pkgerrors "path-backend/pkg/errors"
	tracing "path-backend/pkg/observability"
)

const (
	testSecret = "router-test-secret"
	testIssuer = "path-backend-test"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		RequestID string `json:"request_id"`
		Cursor    *struct {
			Count      int    `json:"count"`
			NextCursor string `json:"next_cursor"`
		} `json:"cursor"`
	} `json:"meta"`
}

type testServer struct {
	t         *testing.T
	handler   http.Handler
	generator *auth.JWTGenerator
	ready     error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	policy := config.DefaultMemoPolicy()
	store := memory.NewStore()
	graph := memory.NewPointGraph("point-1", "point-2")
	publisher := messaging.NewLogPublisher(logger)
	metrics := observability.NewCollector("router_test")
	tracer := tracing.NewTracer("router-test")
	clock := ports.SystemClock{}

	reservations := services.NewReservationManager(store, policy, publisher, metrics, clock, logger)
	contents := services.NewContentStore(store, nil, nil, policy, metrics, logger)
	drafts := services.NewDraftService(store, reservations, contents, policy, publisher, metrics, tracer, clock, logger)
	memos := services.NewMemoService(store, graph, drafts, reservations, contents, policy, publisher, metrics, tracer, clock, logger)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     testSecret,
		Issuer:        testIssuer,
		Audience:      []string{"path-api"},
	})
	require.NoError(t, err)

	errorHandler := pkgerrors.NewErrorHandler(logger, false)
	s := &testServer{
		t:         t,
		generator: auth.NewJWTGenerator(testSecret, testIssuer, []string{"path-api"}, time.Hour),
	}
	router := rest.NewRouter(
		handlers.NewMemoHandler(memos, drafts, reservations, errorHandler, logger),
		handlers.NewRevisionHandler(memos, errorHandler, logger),
		errorHandler,
		rest.RouterConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			Auth: middleware.AuthConfig{
				Validator: validator,
				Errors:    errorHandler,
				Logger:    logger,
			},
			Metrics: metrics,
			ReadyChecks: map[string]rest.ReadinessCheck{
				"store": func(ctx context.Context) error { return s.ready },
			},
		},
		logger,
	)
	s.handler = router.Setup()
	return s
}

func (s *testServer) do(method, path, userID string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := s.generator.GenerateToken(userID, userID+"@example.com", []string{"user"})
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(resp.Data, dst))
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) pkgerrors.ErrorResponse {
	t.Helper()
	var resp pkgerrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func (s *testServer) createMemo(userID, title, body string) handlers.MemoResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/points/point-1/memos", userID, handlers.CreateMemoRequest{Title: title, Body: body})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var created handlers.CreateMemoResponse
	decodeData(s.t, rec, &created)
	return created.Memo
}

func TestRouter_Operational(t *testing.T) {
	s := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/ready", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"store":"ok"`)
	})

	t.Run("not ready when a check fails", func(t *testing.T) {
		s.ready = errors.New("database unreachable")
		defer func() { s.ready = nil }()

		rec := s.do(http.MethodGet, "/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "database unreachable")
	})

	t.Run("metrics", func(t *testing.T) {
		s.do(http.MethodGet, "/health", "", nil)
		rec := s.do(http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "router_test_")
	})
}

func TestRouter_Authentication(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/points/point-1/memos", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Missing authentication token", decodeError(t, rec).Message)
	})

	t.Run("bad token", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/points/point-1/memos", "", nil, "Authorization", "Bearer not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("gateway headers are ignored unless trusted", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/points/point-1/memos", "", nil,
			middleware.HeaderGatewayAuthorized, "true",
			middleware.HeaderUserID, "user-a",
		)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_MemoLifecycle(t *testing.T) {
	s := newTestServer(t)
	memo := s.createMemo("user-a", "Trail notes", "first version of the notes")
	memoPath := "/api/v1/memos/" + memo.ID

	var view handlers.MemoViewResponse
	rec := s.do(http.MethodGet, memoPath, "user-b", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &view)
	assert.Equal(t, "first version of the notes", view.Body)
	assert.Equal(t, string(services.SourceDraft), view.Source)
	assert.Equal(t, "user-a", view.UpdatedBy)

	t.Run("not modified", func(t *testing.T) {
		after := url.QueryEscape(view.UpdatedAt.Format(time.RFC3339Nano))
		rec := s.do(http.MethodGet, memoPath+"?updatedAfter="+after, "user-b", nil)
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("list by point", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/points/point-1/memos", "user-b", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var views []handlers.MemoViewResponse
		resp := decodeData(t, rec, &views)
		require.Len(t, views, 1)
		assert.Equal(t, memo.ID, views[0].ID)
		require.NotNil(t, resp.Meta.Cursor)
		assert.Equal(t, 1, resp.Meta.Cursor.Count)
	})

	t.Run("rename", func(t *testing.T) {
		rec := s.do(http.MethodPatch, memoPath+"/title", "user-a", handlers.UpdateTitleRequest{Title: "Ridge notes"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var renamed handlers.MemoResponse
		decodeData(t, rec, &renamed)
		assert.Equal(t, "Ridge notes", renamed.Title)
	})

	t.Run("move", func(t *testing.T) {
		rec := s.do(http.MethodPut, memoPath+"/point", "user-a", handlers.MoveMemoRequest{PointID: "point-2"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var moved handlers.MemoResponse
		decodeData(t, rec, &moved)
		assert.Equal(t, "point-2", moved.PointID)
	})

	t.Run("external marker on internal memo", func(t *testing.T) {
		rec := s.do(http.MethodPatch, memoPath+"/external", "user-a", handlers.ChangeExternalMarkerRequest{Marker: "doc-42"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, pkgerrors.CodeNotExternalMemo, decodeError(t, rec).Code)
	})
}

func TestRouter_Reservation(t *testing.T) {
	s := newTestServer(t)
	memo := s.createMemo("user-a", "Shared memo", "body written by user a")
	memoPath := "/api/v1/memos/" + memo.ID

	rec := s.do(http.MethodPost, memoPath+"/reserve", "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reservation handlers.ReservationResponse
	decodeData(t, rec, &reservation)
	assert.Equal(t, "user-a", reservation.EditorID)
	assert.NotEmpty(t, reservation.Code)

	t.Run("other user is blocked", func(t *testing.T) {
		body := "body written by user b"
		rec := s.do(http.MethodPut, memoPath+"/draft", "user-b", handlers.UpdateDraftRequest{Body: &body})
		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, pkgerrors.CodeMemoReserved, resp.Code)
		require.NotNil(t, resp.Holder)
		assert.Equal(t, "user-a", resp.Holder.EditorID)
		assert.Equal(t, memo.ID, resp.Holder.MemoID)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		rec = s.do(http.MethodPost, memoPath+"/reserve", "user-b", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("readers see the holder", func(t *testing.T) {
		rec := s.do(http.MethodGet, memoPath, "user-b", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var view handlers.MemoViewResponse
		decodeData(t, rec, &view)
		require.NotNil(t, view.Reservation)
		assert.Equal(t, "user-a", view.Reservation.EditorID)
	})

	t.Run("holder writes with the code", func(t *testing.T) {
		body := "body updated by user a"
		rec := s.do(http.MethodPut, memoPath+"/draft", "user-a", handlers.UpdateDraftRequest{Body: &body},
			handlers.ReserveCodeHeader, reservation.Code)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var draft handlers.DraftResponse
		decodeData(t, rec, &draft)
		assert.Equal(t, body, draft.Body)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		rec := s.do(http.MethodDelete, memoPath+"/reserve", "user-a", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = s.do(http.MethodDelete, memoPath+"/reserve", "user-a", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRouter_ContinueEditing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/points/point-1/memos?continueEditing=true", "user-a",
		handlers.CreateMemoRequest{Title: "Kept memo", Body: "body written by user a"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created handlers.CreateMemoResponse
	decodeData(t, rec, &created)
	require.NotNil(t, created.Reservation)
	assert.Equal(t, "user-a", created.Reservation.EditorID)
	require.NotEmpty(t, created.Reservation.Code)
	memoPath := "/api/v1/memos/" + created.Memo.ID

	body := "body written by user b"
	rec = s.do(http.MethodPut, memoPath+"/draft", "user-b", handlers.UpdateDraftRequest{Body: &body})
	assert.Equal(t, http.StatusConflict, rec.Code)

	body = "body updated by user a"
	rec = s.do(http.MethodPut, memoPath+"/draft?continueEditing=true", "user-a", handlers.UpdateDraftRequest{Body: &body},
		handlers.ReserveCodeHeader, created.Reservation.Code)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var written handlers.DraftWriteResponse
	decodeData(t, rec, &written)
	assert.Equal(t, body, written.Body)
	require.NotNil(t, written.Reservation)
	assert.NotEqual(t, created.Reservation.Code, written.Reservation.Code)

	rec = s.do(http.MethodGet, memoPath, "user-b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view handlers.MemoViewResponse
	decodeData(t, rec, &view)
	require.NotNil(t, view.Reservation)
	assert.Equal(t, "user-a", view.Reservation.EditorID)

	t.Run("without the flag the write releases the memo", func(t *testing.T) {
		body := "final body by user a"
		rec := s.do(http.MethodPut, memoPath+"/draft", "user-a", handlers.UpdateDraftRequest{Body: &body},
			handlers.ReserveCodeHeader, written.Reservation.Code)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var plain handlers.DraftWriteResponse
		decodeData(t, rec, &plain)
		assert.Nil(t, plain.Reservation)
	})

	t.Run("bad flag", func(t *testing.T) {
		body := "another body by user a"
		rec := s.do(http.MethodPut, memoPath+"/draft?continueEditing=sometimes", "user-a", handlers.UpdateDraftRequest{Body: &body})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_RevisionsAndRollback(t *testing.T) {
	s := newTestServer(t)
	memo := s.createMemo("user-a", "Versioned memo", "first version of the memo")
	memoPath := "/api/v1/memos/" + memo.ID

	// A different editor freezes the first draft into a revision
	second := "second version of the memo"
	rec := s.do(http.MethodPut, memoPath+"/draft", "user-b", handlers.UpdateDraftRequest{Body: &second})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, memoPath+"/revisions?limit=10", "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var revisions []handlers.RevisionResponse
	resp := decodeData(t, rec, &revisions)
	require.Len(t, revisions, 1)
	first := revisions[0]
	assert.Equal(t, "user-a", first.ActorID)
	require.NotNil(t, resp.Meta.Cursor)
	assert.Equal(t, "1", resp.Meta.Cursor.NextCursor)
	assert.Equal(t, int64(1), first.Sequence)

	t.Run("content", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/contents/"+first.ContentID, "user-a", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var content services.RevisionContentView
		decodeData(t, rec, &content)
		assert.Equal(t, "first version of the memo", content.Body)
	})

	t.Run("page past the oldest revision", func(t *testing.T) {
		rec := s.do(http.MethodGet, memoPath+"/revisions?cursor="+resp.Meta.Cursor.NextCursor, "user-a", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var page []handlers.RevisionResponse
		decodeData(t, rec, &page)
		assert.Empty(t, page)
	})

	t.Run("rollback", func(t *testing.T) {
		rec := s.do(http.MethodPost, memoPath+"/revisions/"+first.ID+"/rollback?forced=false", "user-a", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var rolledBack handlers.RevisionResponse
		decodeData(t, rec, &rolledBack)
		assert.Equal(t, first.ContentID, rolledBack.ContentID)
		assert.True(t, rolledBack.MinorEdit)

		rec = s.do(http.MethodGet, memoPath, "user-a", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var view handlers.MemoViewResponse
		decodeData(t, rec, &view)
		assert.Equal(t, "first version of the memo", view.Body)
		assert.Equal(t, string(services.SourceRevision), view.Source)
	})

	t.Run("bad forced flag", func(t *testing.T) {
		rec := s.do(http.MethodPost, memoPath+"/revisions/"+first.ID+"/rollback?forced=maybe", "user-a", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{
			name:   "missing title",
			method: http.MethodPost,
			path:   "/api/v1/points/point-1/memos",
			body:   handlers.CreateMemoRequest{Body: "some body text"},
			status: http.StatusBadRequest,
			code:   pkgerrors.CodeNullInput,
		},
		{
			name:   "unknown point",
			method: http.MethodPost,
			path:   "/api/v1/points/nowhere/memos",
			body:   handlers.CreateMemoRequest{Title: "Lost", Body: "some body text"},
			status: http.StatusNotFound,
			code:   pkgerrors.CodePointNotFound,
		},
		{
			name:   "malformed memo id",
			method: http.MethodGet,
			path:   "/api/v1/memos/not-a-uuid",
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown memo",
			method: http.MethodGet,
			path:   "/api/v1/memos/7f1c0d52-52a4-4c2e-8d1e-1f7f3d3a9b10",
			status: http.StatusNotFound,
			code:   pkgerrors.CodeMemoNotFound,
		},
		{
			name:   "bad updatedAfter",
			method: http.MethodGet,
			path:   "/api/v1/points/point-1/memos?updatedAfter=yesterday",
			status: http.StatusBadRequest,
		},
		{
			name:   "bad limit",
			method: http.MethodGet,
			path:   "/api/v1/memos/7f1c0d52-52a4-4c2e-8d1e-1f7f3d3a9b10/revisions?limit=-1",
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, "user-a", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rec).Code)
			}
		})
	}

	t.Run("short draft body", func(t *testing.T) {
		memo := s.createMemo("user-a", "Short", "a body long enough")
		short := "tiny"
		rec := s.do(http.MethodPut, "/api/v1/memos/"+memo.ID+"/draft", "user-a", handlers.UpdateDraftRequest{Body: &short})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, pkgerrors.CodeMinLength, decodeError(t, rec).Code)
	})
}

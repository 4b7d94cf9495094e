package errors

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const opaqueMessage = "An internal error occurred"

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Holder    *Holder                `json:"holder,omitempty"`
	Retry     *RetryHint             `json:"retry,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Holder names the editor blocking a MEMO_RESERVED request.
type Holder struct {
	MemoID   string     `json:"memo_id,omitempty"`
	EditorID string     `json:"editor_id"`
	Until    *time.Time `json:"until,omitempty"`
}

// RetryHint tells an editor whether and how a rejected write can be retried.
// Reload means the memo must be read again before the retry.
type RetryHint struct {
	Retryable    bool `json:"retryable"`
	AfterSeconds int  `json:"after_seconds,omitempty"`
	Reload       bool `json:"reload,omitempty"`
}

// ErrorHandler renders errors as JSON responses and logs them.
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
	now    func() time.Time
}

// NewErrorHandler creates an ErrorHandler. In debug mode internal messages
// and stack traces are exposed.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug, now: time.Now}
}

// Handle writes the response for err. A nil err writes nothing.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	reqID := middleware.GetReqID(r.Context())

	appErr := GetAppError(err)
	if appErr == nil {
		h.logger.Error("Unhandled error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", reqID),
		)
		resp := ErrorResponse{Error: true, Type: string(ErrorTypeInternal), Message: opaqueMessage, Code: CodeUnknown, RequestID: reqID}
		if h.debug {
			resp.Message = err.Error()
		}
		h.write(w, http.StatusInternalServerError, resp)
		return
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.log(r, appErr, status, reqID)

	resp := ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		Code:      appErr.Code,
		Details:   appErr.Details,
		RequestID: reqID,
	}
	switch {
	case status >= 500 && h.debug:
		if appErr.StackTrace != "" {
			resp.Details = withDetail(resp.Details, "stack_trace", appErr.StackTrace)
		}
	case status >= 500:
		resp.Message = opaqueMessage
		resp.Details = nil
	}

	switch appErr.Code {
	case CodeMemoReserved:
		h.reserved(w, appErr, &resp)
	case CodeDraftModified:
		resp.Retry = &RetryHint{Retryable: true, Reload: true}
	}

	h.write(w, status, resp)
}

// reserved describes the blocking reservation. Without a holder the
// reservation changed underneath the caller, who has to look again.
func (h *ErrorHandler) reserved(w http.ResponseWriter, appErr *AppError, resp *ErrorResponse) {
	editor, _ := appErr.Details["reserved_by"].(string)
	if editor == "" {
		resp.Retry = &RetryHint{Retryable: true, Reload: true}
		return
	}

	memoID, _ := appErr.Details["memo_id"].(string)
	resp.Holder = &Holder{MemoID: memoID, EditorID: editor}
	resp.Retry = &RetryHint{Retryable: true}

	until, ok := appErr.Details["reserved_until"].(time.Time)
	if !ok {
		return
	}
	resp.Holder.Until = &until
	wait := int(math.Ceil(until.Sub(h.now()).Seconds()))
	if wait < 0 {
		wait = 0
	}
	resp.Retry.AfterSeconds = wait
	w.Header().Set("Retry-After", strconv.Itoa(wait))
}

// HandleStatus writes a bare error response for status, used where no
// AppError exists such as rate limiting.
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)
	h.write(w, status, ErrorResponse{
		Error:     true,
		Type:      string(typeForStatus(status)),
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (h *ErrorHandler) log(r *http.Request, appErr *AppError, status int, reqID string) {
	fields := []zap.Field{
		zap.String("error_type", string(appErr.Type)),
		zap.String("error_code", appErr.Code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", reqID),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}
	if len(appErr.Details) > 0 {
		fields = append(fields, zap.Any("details", appErr.Details))
	}

	// Reservation and draft conflicts are part of normal collaborative editing.
	if appErr.Code == CodeMemoReserved || appErr.Code == CodeDraftModified {
		h.logger.Info(appErr.Message, fields...)
		return
	}
	if status >= 500 {
		h.logger.Error(appErr.Message, fields...)
		return
	}
	h.logger.Warn(appErr.Message, fields...)
}

func (h *ErrorHandler) write(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err), zap.String("code", resp.Code))
	}
}

func withDetail(details map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out[key] = value
	return out
}

func typeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest:
		return ErrorTypeValidation
	case http.StatusUnauthorized:
		return ErrorTypeUnauthorized
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusServiceUnavailable:
		return ErrorTypeUnavailable
	default:
		return ErrorTypeInternal
	}
}

// Middleware turns a panic in next into a 500 response.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("Recovered panic", zap.Any("panic", rec), zap.Stack("stack"))
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Type      string                 `json:"type,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler handles errors and sends appropriate HTTP responses
type ErrorHandler struct {
	logger        *zap.Logger
	debug         bool
	defaultStatus int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger:        logger,
		debug:         debug,
		defaultStatus: http.StatusInternalServerError,
	}
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	status, response := h.Describe(err)
	response.RequestID = requestID(r)
	h.log(r, err, status, response)
	h.sendJSON(w, status, response)
}

// Describe maps err to a status code and response body without writing
// anything. Streaming endpoints use it to report errors in-band
func (h *ErrorHandler) Describe(err error) (int, ErrorResponse) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		status := domainErr.StatusCode
		if status == 0 {
			status = h.defaultStatus
		}
		response := ErrorResponse{
			Error:     domainErr.Message,
			Type:      string(domainErr.Type),
			Code:      domainErr.Code,
			Retryable: domainErr.Retryable,
		}
		if len(domainErr.Details) > 0 {
			response.Details = domainErr.Details
		}
		if h.debug && domainErr.Cause != nil {
			response.Details = map[string]interface{}{"cause": domainErr.Cause.Error()}
		}
		return status, response
	}

	if appErr := GetAppError(err); appErr != nil {
		status := appErr.HTTPStatus
		if status == 0 {
			status = h.defaultStatus
		}
		response := ErrorResponse{
			Error:     appErr.Message,
			Type:      string(appErr.Type),
			Code:      appErr.Code,
			Retryable: appErr.Type == ErrorTypeUnavailable || appErr.Type == ErrorTypeTimeout,
			Details:   appErr.Details,
		}
		if h.debug && appErr.StackTrace != "" {
			if response.Details == nil {
				response.Details = make(map[string]interface{})
			}
			response.Details["stack_trace"] = appErr.StackTrace
		}
		return status, response
	}

	response := ErrorResponse{
		Error: "An internal error occurred",
		Type:  string(ErrorTypeInternal),
	}
	if h.debug {
		response.Error = err.Error()
	}
	return h.defaultStatus, response
}

// HandleStatus sends an error response with a specific status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	response := ErrorResponse{
		Error:     message,
		Type:      h.statusToErrorType(status),
		RequestID: requestID(r),
	}

	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)

	h.sendJSON(w, status, response)
}

func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// log logs an error with a level that follows the status
func (h *ErrorHandler) log(r *http.Request, err error, status int, response ErrorResponse) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("error_type", response.Type),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", response.RequestID),
	}
	if response.Code != "" {
		fields = append(fields, zap.String("error_code", response.Code))
	}

	switch {
	case status >= 500:
		h.logger.Error(response.Error, fields...)
	case status >= 400:
		h.logger.Warn(response.Error, fields...)
	default:
		h.logger.Info(response.Error, fields...)
	}
}

// sendJSON sends a JSON response
func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response",
			zap.Error(err),
			zap.Any("data", data),
		)
	}
}

// statusToErrorType maps HTTP status to error type
func (h *ErrorHandler) statusToErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(ErrorTypeValidation)
	case http.StatusNotFound:
		return string(ErrorTypeNotFound)
	case http.StatusConflict:
		return string(ErrorTypeConflict)
	case http.StatusRequestTimeout:
		return string(ErrorTypeTimeout)
	case http.StatusTooManyRequests:
		return string(ErrorTypeRateLimit)
	case http.StatusServiceUnavailable:
		return string(ErrorTypeUnavailable)
	case http.StatusBadGateway:
		return string(ErrorTypeExternal)
	default:
		return string(ErrorTypeInternal)
	}
}

// Middleware returns an HTTP middleware that turns panics into 500 responses
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

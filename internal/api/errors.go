// Package api provides HTTP API utilities including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/theatlasimpact/papermark-vansgiving/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeDocumentNotFound indicates the document was not found in the team.
	ErrCodeDocumentNotFound = "document_not_found"

	// ErrCodeViewNotFound indicates the view was not found for the document.
	ErrCodeViewNotFound = "view_not_found"

	// ErrCodeTeamNotFound indicates the team was not found.
	ErrCodeTeamNotFound = "team_not_found"

	// ErrCodeNotVideo indicates a video-only operation on a paged document.
	ErrCodeNotVideo = "not_a_video"

	// ErrCodeStorageUnavailable indicates file storage is not configured.
	ErrCodeStorageUnavailable = "storage_unavailable"

	// ErrCodeWebhookInvalid indicates a webhook payload failed verification.
	ErrCodeWebhookInvalid = "webhook_invalid"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response with the given status.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// The error_code is logged by the logging middleware for 4xx and 5xx
// responses when the handler sets it via middleware.SetErrorCode and passes
// the updated context here:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeDocumentNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeDocumentNotFound, "Document not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	// Propagate the error code to the logging middleware if supported.
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeDocumentNotFound, ErrCodeViewNotFound, ErrCodeTeamNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeNotVideo:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

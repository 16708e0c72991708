// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., invalid_step, quota_exceeded) are reserved for
//     business logic errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Usage:
//   - Handlers pass service errors to `failService()`, which maps the service
//     sentinels onto a status and code. Transport-level problems (bad JSON,
//     malformed ids) go straight to `fail()`.
//   - Clients are expected to branch on these codes for programmatic error handling.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "conflict",
//     "message": "course draft already submitted"
//   }

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"
	ErrCodeTimeout      = "timeout"

	// Domain-specific:
	ErrCodeAnswerFailed     = "answer_failed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeUpdateFailed     = "update_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeValidation       = "validation_failed"
	ErrCodeInvalidStep      = "invalid_step"
	ErrCodeGeneration       = "generation_failed"
	ErrCodeUpstream         = "upstream_failed"
	ErrCodeQuotaExceeded    = "quota_exceeded"
	ErrCodeUnsupportedFile  = "unsupported_file"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeInvalidPlan      = "invalid_plan"
)

// failService translates a service error into a response. Errors it does not
// know are reported as 500 with fallbackCode.
func failService(c *gin.Context, err error, fallbackCode string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		failFields(c, http.StatusBadRequest, ErrCodeValidation, verr.Error(), verr.Fields)
		return
	}

	switch {
	case errors.Is(err, services.ErrChatNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrAttachmentNotFound),
		errors.Is(err, services.ErrDraftNotFound),
		errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrTopicSetNotFound),
		errors.Is(err, services.ErrTopicIndex):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidMode),
		errors.Is(err, services.ErrInvalidFeedback),
		errors.Is(err, services.ErrEmptyFile):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidPlan):
		fail(c, http.StatusBadRequest, ErrCodeInvalidPlan, err.Error())
	case errors.Is(err, services.ErrUnsupportedFile):
		fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedFile, err.Error())
	case errors.Is(err, services.ErrFileTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
	case errors.Is(err, services.ErrForbiddenFeedback):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrDuplicateFeedback),
		errors.Is(err, services.ErrDraftSubmitted),
		errors.Is(err, services.ErrNotCanceled):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInvalidStep):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidStep, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrQuotaExceeded):
		var qe *services.QuotaError
		if errors.As(err, &qe) {
			setQuotaRetryAfter(c, time.Now(), qe.ResetAt)
		}
		fail(c, http.StatusTooManyRequests, ErrCodeQuotaExceeded, err.Error())
	case errors.Is(err, services.ErrGenerationFailed):
		fail(c, http.StatusBadGateway, ErrCodeGeneration, err.Error())
	case errors.Is(err, services.ErrUpstreamFailure):
		fail(c, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "request timed out")
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

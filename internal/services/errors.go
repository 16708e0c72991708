// Package services holds the business logic behind the HTTP layer: chats and
// messages with their attachments, the course wizard, topic and content
// generation, and the account pages.
//
// This file centralizes the service-level error values. Handlers translate
// them into HTTP statuses; services never decide on transport details.
package services

import (
	"errors"
	"time"
)

// Chat and message errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist or is not
	// accessible to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyPrompt is returned when a send carries neither text nor staged
	// attachments.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when the prompt exceeds the configured rune limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrInvalidMode is returned for a chat mode outside the supported set.
	ErrInvalidMode = errors.New("invalid chat mode")

	// ErrInvalidFeedback is returned when a feedback value is not -1 or 1.
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbiddenFeedback is returned when a user attempts to rate a message
	// they may not rate.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrDuplicateFeedback is returned when the user already rated the message.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)

// Attachment errors.
var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrFileTooLarge       = errors.New("file too large")
	ErrEmptyFile          = errors.New("file is empty")
)

// Course wizard and generation errors.
var (
	ErrDraftNotFound    = errors.New("course draft not found")
	ErrDraftSubmitted   = errors.New("course draft already submitted")
	ErrCourseNotFound   = errors.New("course not found")
	ErrTopicSetNotFound = errors.New("topic set not found")
	ErrTopicIndex       = errors.New("topic index out of range")

	// ErrInvalidStep is returned when the wizard cannot move further in the
	// requested direction.
	ErrInvalidStep = errors.New("wizard step incomplete")

	// ErrGenerationFailed is the terminal error after the retry budget for a
	// generation call is spent.
	ErrGenerationFailed = errors.New("generation failed")
)

// Account, identity and quota errors.
var (
	// ErrValidation wraps input validation failures; the wrapped message lists
	// the offending fields.
	ErrValidation = errors.New("validation failed")

	ErrInvalidPlan     = errors.New("invalid plan")
	ErrNotCanceled     = errors.New("subscription is not canceled")
	ErrUnauthorized    = errors.New("user is not authorized")
	ErrQuotaExceeded   = errors.New("message quota exceeded")
	ErrUpstreamFailure = errors.New("upstream request failed")
)

// QuotaError reports a spent message allowance together with the moment the
// usage window restarts. It matches ErrQuotaExceeded under errors.Is.
type QuotaError struct {
	ResetAt time.Time
}

func (e *QuotaError) Error() string { return ErrQuotaExceeded.Error() }

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

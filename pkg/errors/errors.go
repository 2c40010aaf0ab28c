// Package errors provides the typed error taxonomy shared by the adapter,
// executor, and orchestrator layers. Adapter-level errors never panic or
// propagate as raised exceptions; they are carried as values (spec §7).
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code identifies a classified failure. The adapter-level codes mirror the
// classification table in spec §4.1; the two orchestrator-level codes are
// synchronous, caller-facing failures (spec §7).
type Code string

const (
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeAuthFailed         Code = "AUTH_FAILED"
	CodeTimeout            Code = "TIMEOUT"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeContentBlocked     Code = "CONTENT_BLOCKED"
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeCaptchaRequired    Code = "CAPTCHA_REQUIRED"
	CodeInvalidResponse    Code = "INVALID_RESPONSE"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
	CodeAdapterMissing     Code = "ADAPTER_MISSING"

	CodeStudyNotFound    Code = "STUDY_NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
)

// SuggestedAction is the remediation hint attached to a classification.
type SuggestedAction string

const (
	ActionRetry          SuggestedAction = "retry"
	ActionRefreshSession SuggestedAction = "refresh_session"
	ActionRotateProxy    SuggestedAction = "rotate_proxy"
	ActionAlertHuman     SuggestedAction = "alert_human"
	ActionNone           SuggestedAction = ""
)

// AdapterError is the typed value returned inside a query response's Error
// field. It is never raised; callers inspect Code/Retryable/RetryDelayMs.
type AdapterError struct {
	Code            Code
	Message         string
	Retryable       bool
	RetryDelayMs    int64
	SurfaceWide     bool
	SuggestedAction SuggestedAction
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New wraps msg with the stack-trace context pkg/errors provides, for
// propagation out of adapter/executor/orchestrator package boundaries.
func New(msg string) error {
	return pkgerrors.New(msg)
}

// Wrap attaches msg to err with a stack trace, or returns nil if err is nil.
func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// Cause unwraps to the root error, mirroring pkg/errors.Cause.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// StudyNotFound builds the synchronous STUDY_NOT_FOUND failure (spec §7).
func StudyNotFound(studyID string) *AdapterError {
	return &AdapterError{
		Code:    CodeStudyNotFound,
		Message: fmt.Sprintf("study %s not found", studyID),
	}
}

// InvalidTransition builds the synchronous INVALID_TRANSITION failure.
func InvalidTransition(from, to, op string) *AdapterError {
	return &AdapterError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s: study in state %q cannot transition to %q", op, from, to),
	}
}

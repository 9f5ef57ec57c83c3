package entity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeRateLimited      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeQuotaExceeded    ErrorCode = "DAILY_QUOTA_EXCEEDED"
	CodeContentPolicy    ErrorCode = "CONTENT_POLICY_VIOLATION"
	CodeUpstreamBusy     ErrorCode = "AI_SERVICE_UNAVAILABLE"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInternal         ErrorCode = "INTERNAL_SERVER_ERROR"
)

// AppError is the only error shape that crosses the HTTP boundary. Message is
// always user-safe; raw upstream detail stays in server logs.
type AppError struct {
	Code    ErrorCode
	Status  int
	Message string
	// ResetAt is set for rate-limit denials so callers can emit retry headers.
	ResetAt time.Time
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

func NewValidationError(msg string) *AppError {
	return &AppError{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

func NewRateLimitError(resetAt time.Time) *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Status:  http.StatusTooManyRequests,
		Message: "Too many requests. Please wait a while and try again.",
		ResetAt: resetAt,
	}
}

func NewQuotaExceededError(limit int) *AppError {
	return &AppError{
		Code:    CodeQuotaExceeded,
		Status:  http.StatusTooManyRequests,
		Message: fmt.Sprintf("Daily sticker limit (%d) reached. Please try again tomorrow.", limit),
	}
}

func NewContentPolicyError() *AppError {
	return &AppError{
		Code:    CodeContentPolicy,
		Status:  http.StatusUnprocessableEntity,
		Message: "Generation was blocked by the AI safety policy. Please try a different photo.",
	}
}

func NewUpstreamBusyError() *AppError {
	return &AppError{
		Code:    CodeUpstreamBusy,
		Status:  http.StatusInternalServerError,
		Message: "The AI service is temporarily busy. Please try again later.",
	}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: CodeNotFound, Status: http.StatusNotFound, Message: msg}
}

func NewInternalError(cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "An unexpected error occurred. Please try again later.",
		cause:   cause,
	}
}

// AsAppError extracts an *AppError from err, wrapping unclassified errors as
// internal ones so the raw detail never reaches a client.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}

// ClassifyUpstream maps an error from the remote model to the taxonomy by
// inspecting upstream markers. Safety rejections and quota/outage signals get
// distinct user-facing messages; everything else is internal.
func ClassifyUpstream(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "safety") || strings.Contains(msg, "blocked") ||
		strings.Contains(msg, "prohibited_content"):
		return NewContentPolicyError()
	case strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "429") || strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "unavailable"):
		return NewUpstreamBusyError()
	default:
		return NewInternalError(err)
	}
}

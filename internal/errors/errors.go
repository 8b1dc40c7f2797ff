package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// ErrorCategory classifies an error by how the pipeline must react to it.
type ErrorCategory string

const (
	// CategoryPrecondition aborts the run before any side effect.
	CategoryPrecondition ErrorCategory = "precondition"
	// CategoryPartialData degrades the affected unit of work and continues.
	CategoryPartialData ErrorCategory = "partial_data"
	// CategoryMonetaryGuard skips a single recipient, keeps the rest.
	CategoryMonetaryGuard ErrorCategory = "monetary_guard"
	CategoryExternalAPI   ErrorCategory = "external_api"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// AppError wraps an errbuilder error with the pipeline reaction category.
type AppError struct {
	*errbuilder.ErrBuilder
	Category  ErrorCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	codeStr := "INTERNAL_ERROR"
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeFailedPrecondition:
		codeStr = "PRECONDITION_FAILED"
	case errbuilder.CodeDataLoss:
		codeStr = "PARTIAL_DATA"
	case errbuilder.CodeOutOfRange:
		codeStr = "MONETARY_GUARD"
	case errbuilder.CodeUnavailable:
		codeStr = "EXTERNAL_API_ERROR"
	case errbuilder.CodeInvalidArgument:
		codeStr = "CONFIGURATION_ERROR"
	}
	return fmt.Sprintf("[%s] %s", codeStr, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from an errbuilder with a category.
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		Timestamp:  time.Now(),
	}
}

// NewPreconditionError reports a hard precondition failure such as a missing
// price label, an unsettleable task state, or a prior settlement receipt.
// The message is user-facing: it names who or what is affected and why.
func NewPreconditionError(message string, details ...string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(message)

	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		errorMap.Set("reason", errors.New(strings.Join(details, "; ")))
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return NewAppError(builder, CategoryPrecondition)
}

// NewPartialDataError reports a degraded data source. Callers log it and
// fold the degraded unit into the output instead of raising it.
func NewPartialDataError(source string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("source", errors.New(source))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeDataLoss).
		WithMsg(fmt.Sprintf("degraded data from %s", source)).
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryPartialData)
}

// NewMonetaryGuardError reports a reward that exceeded the maximum single
// payout. The affected recipient is skipped, not clipped.
func NewMonetaryGuardError(handle, amount, limit string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("recipient", errors.New(handle))
	errorMap.Set("amount", errors.New(amount))
	errorMap.Set("limit", errors.New(limit))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeOutOfRange).
		WithMsg(fmt.Sprintf("reward %s for %s exceeds the maximum permitted payout %s", amount, handle, limit)).
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryMonetaryGuard)
}

// NewExternalAPIError reports a failed collaborator call.
func NewExternalAPIError(apiName string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("api_name", errors.New(apiName))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(fmt.Sprintf("%s API error", apiName)).
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryExternalAPI)
}

// NewConfigurationError reports invalid engine configuration.
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration)
}

// NewInternalError reports an unexpected engine failure.
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryInternal)
}

// ToAppError converts any error to an AppError.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal)
	}

	return NewInternalError(err.Error(), err)
}

// IsCategory reports whether err carries the given pipeline category.
func IsCategory(err error, category ErrorCategory) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category == category
	}
	return false
}

// IsPrecondition reports whether err must abort the run before side effects.
func IsPrecondition(err error) bool {
	return IsCategory(err, CategoryPrecondition)
}

// IsRetryableError reports whether an error is worth another attempt.
// Precondition, monetary-guard and configuration failures never are.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Category {
		case CategoryExternalAPI, CategoryInternal:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "network is unreachable") ||
		strings.Contains(errMsg, "timeout")
}

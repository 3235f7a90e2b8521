package domain

import (
	"errors"
	"time"
)

type ErrorKind string

const (
	ErrorKindVideoUnavailable  ErrorKind = "video_unavailable"
	ErrorKindInvalidURL        ErrorKind = "invalid_url"
	ErrorKindNetwork           ErrorKind = "network_error"
	ErrorKindProxyBlocked      ErrorKind = "proxy_blocked"
	ErrorKindQuotaExceeded     ErrorKind = "quota_exceeded"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindPermissionDenied  ErrorKind = "permission_denied"
	ErrorKindInsufficientSpace ErrorKind = "insufficient_space"
	ErrorKindUnsupportedFormat ErrorKind = "unsupported_format"
	ErrorKindToolNotFound      ErrorKind = "tool_not_found"
	ErrorKindCancelledByUser   ErrorKind = "cancelled_by_user"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// ErrorInfo is the classified, user-presentable form of a raw failure.
type ErrorInfo struct {
	Kind            ErrorKind `json:"kind"`
	RawMessage      string    `json:"raw_message"`
	UserMessage     string    `json:"user_message"`
	IsRetryable     bool      `json:"is_retryable"`
	SuggestedAction string    `json:"suggested_action"`
}

func (e ErrorInfo) Error() string {
	if e.RawMessage == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.RawMessage
}

type StrategyKind string

const (
	StrategyNone             StrategyKind = "none"
	StrategyIdentityRotation StrategyKind = "identity_rotation"
	StrategyExponential      StrategyKind = "exponential_backoff"
	StrategyStandardRetry    StrategyKind = "standard_retry"
	StrategyExtendedTimeout  StrategyKind = "extended_timeout"
)

type RecoveryStrategy struct {
	Kind        StrategyKind  `json:"kind" yaml:"kind"`
	ShouldRetry bool          `json:"should_retry" yaml:"should_retry"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay   time.Duration `json:"base_delay" yaml:"base_delay"`
}

// ClassifiedError carries a classification verdict alongside the original
// error so downstream code can reuse it instead of classifying again.
type ClassifiedError struct {
	Info ErrorInfo
	Err  error
}

func NewClassifiedError(info ErrorInfo, err error) *ClassifiedError {
	return &ClassifiedError{Info: info, Err: err}
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Info.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// AsErrorInfo extracts an existing classification from err, if any.
func AsErrorInfo(err error) (ErrorInfo, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Info, true
	}
	return ErrorInfo{}, false
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a completion failure.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindAccessDenied   ErrorKind = "access_denied"
	KindNotFound       ErrorKind = "not_found"
	KindRateLimit      ErrorKind = "rate_limit"
	KindServer         ErrorKind = "server"
	KindContentFilter  ErrorKind = "content_filter"
	KindContextLength  ErrorKind = "context_length"
	KindTimeout        ErrorKind = "timeout"
	KindCanceled       ErrorKind = "canceled"
	KindConfiguration  ErrorKind = "configuration"
	KindUnknown        ErrorKind = "unknown"
)

// Error is a classified completion failure.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	// RetryAfter is the wait the server asked for; zero when it gave none.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		fmt.Fprintf(&b, "%s: ", e.Provider)
	}
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether sending the same request again may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindServer, KindTimeout, KindUnknown:
		return true
	}
	return false
}

func configError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err. Unclassified errors are
// KindUnknown; context errors are KindCanceled.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth another attempt. Context errors
// never are; unclassified errors are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return true
}

package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind classifies failures so callers can decide between retrying,
// falling back, or reporting a low-confidence result.
type ErrorKind string

const (
	KindInput    ErrorKind = "input_rejected"
	KindTimeout  ErrorKind = "timeout"
	KindExternal ErrorKind = "external"
	KindParse    ErrorKind = "parse"
	KindFatal    ErrorKind = "fatal"
)

// AppError represents application-specific errors
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel kinds, so errors.Is(err, ErrTimeout) works on any wrapped AppError.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok && t.Code == "" {
		return t.Kind == e.Kind
	}
	return false
}

// Kind sentinels for errors.Is.
var (
	ErrInputRejected = &AppError{Kind: KindInput}
	ErrTimeout       = &AppError{Kind: KindTimeout}
	ErrExternal      = &AppError{Kind: KindExternal}
	ErrParse         = &AppError{Kind: KindParse}
	ErrFatal         = &AppError{Kind: KindFatal}
)

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
	ErrPoolClosed   = errors.New("recognition pool is shut down")
	ErrNoModel      = errors.New("no model configured")
)

// Error constructors
func NewAppError(kind ErrorKind, code, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func InputError(code, message string) *AppError {
	return NewAppError(KindInput, code, message, ErrInvalidInput)
}

func TimeoutError(code, message string) *AppError {
	return NewAppError(KindTimeout, code, message, nil)
}

func ExternalError(code, message string, cause error) *AppError {
	return NewAppError(KindExternal, code, message, cause)
}

func ParseError(code, message string, cause error) *AppError {
	return NewAppError(KindParse, code, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the kind of the outermost AppError in err's chain, or KindFatal.
func KindOf(err error) ErrorKind {
	var ae *AppError
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}
	return KindFatal
}

const maxSanitizedLen = 200

var (
	reSecret     = regexp.MustCompile(`(?i)(api[_-]?key|key|token|secret|authorization)\s*[=:]\s*\S+`)
	reBearer     = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)
	reStackFrame = regexp.MustCompile(`(?m)^\s*(goroutine \d+|\S+\.go:\d+|\S+\(.*\)$|at \S+).*$`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// SanitizeMessage makes err safe to surface in result notes: stack frames and
// credentials are stripped and the text is capped.
func SanitizeMessage(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	s = reStackFrame.ReplaceAllString(s, "")
	s = reSecret.ReplaceAllString(s, "$1=[redacted]")
	s = reBearer.ReplaceAllString(s, "Bearer [redacted]")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if len(s) > maxSanitizedLen {
		s = s[:maxSanitizedLen-3] + "..."
	}
	return s
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the pipeline should react to them.
type ErrorKind string

const (
	KindUnknown          ErrorKind = "unknown"
	KindAuth             ErrorKind = "auth_failure"
	KindForbidden        ErrorKind = "forbidden"
	KindRateLimited      ErrorKind = "rate_limited"
	KindTransient        ErrorKind = "transient"
	KindProtocol         ErrorKind = "protocol_error"
	KindNotFound         ErrorKind = "not_found"
	KindMediaUnavailable ErrorKind = "media_unavailable"
	KindTemplate         ErrorKind = "template_error"
	KindConfigInvalid    ErrorKind = "config_invalid"
)

// Error carries a kind alongside the failing operation.
type Error struct {
	Kind   ErrorKind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TermExistsError is returned when the blog refuses to create a term because
// an equivalent one already exists under TermID.
type TermExistsError struct {
	TermID  int
	Message string
}

func (e *TermExistsError) Error() string {
	return fmt.Sprintf("term %d already exists: %s", e.TermID, e.Message)
}

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err must abort a whole run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindForbidden, KindConfigInvalid:
		return true
	}
	return false
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	}
	return false
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 401:
		return KindAuth
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindProtocol
	}
	return KindUnknown
}

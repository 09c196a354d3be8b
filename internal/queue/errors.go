package queue

import (
	"errors"
	"fmt"
)

// RequestError is the base of the queue's error taxonomy: a generic queue
// fault that may carry the offending Request. SaveError, HandleError, and
// ResponseError all wrap a RequestError so callers can errors.As any of
// them down to the common base when they only care that *something* in the
// queue failed.
type RequestError struct {
	Op      string
	Request *Request
	Cause   error
}

func (e *RequestError) Error() string {
	if e.Request != nil {
		return fmt.Sprintf("queue: %s (request_id=%d): %v", e.Op, e.Request.ID, e.Cause)
	}
	return fmt.Sprintf("queue: %s: %v", e.Op, e.Cause)
}

func (e *RequestError) Unwrap() error { return e.Cause }

// SaveError indicates the queue could not persist an enqueue or a response:
// a SQL-layer fault, or a duplicate request_id under fail-if-duplicate.
type SaveError struct{ *RequestError }

// HandleError indicates the injected Handler could not produce a response
// for a claimed request; it aborts the current Handle pass without
// committing anything.
type HandleError struct{ *RequestError }

// ResponseError indicates the Respond pass failed: the SQL-layer fault, the
// delivery callback failed, or the terminal mark-notified/delete failed.
type ResponseError struct{ *RequestError }

// Unwrap returns the embedded RequestError, so errors.As can reach the
// common base and, through its Unwrap, the underlying cause.
func (e *SaveError) Unwrap() error { return e.RequestError }

// Unwrap returns the embedded RequestError.
func (e *HandleError) Unwrap() error { return e.RequestError }

// Unwrap returns the embedded RequestError.
func (e *ResponseError) Unwrap() error { return e.RequestError }

func newSaveError(op string, req *Request, cause error) *SaveError {
	return &SaveError{&RequestError{Op: op, Request: req, Cause: cause}}
}

func newHandleError(op string, req *Request, cause error) *HandleError {
	return &HandleError{&RequestError{Op: op, Request: req, Cause: cause}}
}

func newResponseError(op string, req *Request, cause error) *ResponseError {
	return &ResponseError{&RequestError{Op: op, Request: req, Cause: cause}}
}

// ErrDuplicateRequest is the sentinel wrapped by a SaveError raised from Add
// when fail-if-duplicate is true and a request_id already exists.
var ErrDuplicateRequest = errors.New("request_id already enqueued")

// IsDuplicate reports whether err is (or wraps) a duplicate-enqueue SaveError.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateRequest)
}

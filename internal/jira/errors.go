package jira

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the tracker reports an unknown issue key.
var ErrNotFound = errors.New("issue not found")

// RequestError is a non-2xx answer from the tracker. Body carries the raw
// error payload so the caller can surface it without re-requesting.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("jira %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// AttachmentError is an upload failure against an existing issue. It never
// implies the issue itself was rolled back.
type AttachmentError struct {
	IssueKey string
	Filename string
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attach %q to %s: %v", e.Filename, e.IssueKey, e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }

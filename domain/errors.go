package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamUnavailable means the element stream could not be obtained at all
	ErrStreamUnavailable = errors.New("element stream unavailable")
	// ErrNotFound is returned by repositories and collaborators for missing items
	ErrNotFound = errors.New("not found")
	// ErrNotConfigured means a collaborator is missing its credentials
	ErrNotConfigured = errors.New("not configured")
)

// DecodeError is returned when a balanced span fails to decode
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode object %q: %v", truncate(e.Raw, 64), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RenderError is returned when text rasterization fails
type RenderError struct {
	Content string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %q: %v", truncate(e.Content, 32), e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// SearchError is returned when an image search fails
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("image search for %q failed: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// NetworkError is returned when a remote collaborator call fails
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ClusterDispatchError is returned when one stroke cluster could not be replaced
type ClusterDispatchError struct {
	StrokeIDs []string
	Stage     string
	Err       error
}

func (e *ClusterDispatchError) Error() string {
	return fmt.Sprintf("cluster of %d strokes failed at %s: %v", len(e.StrokeIDs), e.Stage, e.Err)
}

func (e *ClusterDispatchError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

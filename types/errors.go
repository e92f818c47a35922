package types

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOutput  = errors.New("empty model output")
	ErrInvalidJSON  = errors.New("model output is not valid JSON")
	ErrEmptyContext = errors.New("empty context")
	ErrNotFound     = errors.New("document not found")
)

// ExtractionError reports that the topic model returned unusable output.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SearchError reports a malformed or empty search model response.
type SearchError struct {
	Op  string
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %s: %v", e.Op, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// StoreError reports a failed document store operation.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

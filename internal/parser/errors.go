package parser

import "fmt"

// ExtractionError reports a required field that could not be located on an
// otherwise successfully fetched page.
type ExtractionError struct {
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("extraction: field %q not found", e.Field)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NotFoundError means the remote page signals the resource does not exist.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	if e.URL == "" {
		return "not found"
	}
	return fmt.Sprintf("not found: %s", e.URL)
}

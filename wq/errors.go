package wq

import "fmt"

// RetrievalError means the catalog or a deployment file could not be fetched
// or decoded. It always carries the failing URL.
type RetrievalError struct {
	URL string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("could not retrieve '%s': %s", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// MalformedDatasetError means a deployment file opened fine but does not have
// the expected shape (missing variable, arrays shorter than the time array).
type MalformedDatasetError struct {
	URL    string
	Reason string
}

func (e *MalformedDatasetError) Error() string {
	return fmt.Sprintf("malformed dataset '%s': %s", e.URL, e.Reason)
}

// ValidationError means the caller-supplied parameters are unusable. It is
// raised before any network activity.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

package harvest

import "fmt"

// ValidationError reports a malformed harvest request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// FetchError reports a transport-level failure talking to the remote host
// or the fetch API. It never wraps an HTTP error status; those are carried
// in the Result.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ContentError reports a payload that came back but is unusable, such as a
// truncated PDF or an unsupported media type.
type ContentError struct {
	URL    string
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("unusable content from %s: %s", e.URL, e.Reason)
}

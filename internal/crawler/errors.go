package crawler

import (
	"errors"
	"fmt"
)

// ErrFrontierClosed is returned by Dequeue once the frontier has been closed.
var ErrFrontierClosed = errors.New("frontier closed")

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

// Fetch failure kinds. Neither is retried.
const (
	ErrKindNetwork    FetchErrorKind = "network"
	ErrKindHTTPStatus FetchErrorKind = "http_status"
)

// FetchError describes a failed fetch.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case ErrKindHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	default:
		if e.Err == nil {
			return fmt.Sprintf("fetch %s: network error", e.URL)
		}
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(rawURL string, err error) *FetchError {
	return &FetchError{Kind: ErrKindNetwork, URL: rawURL, Err: err}
}

// NewHTTPStatusError reports a non-2xx response.
func NewHTTPStatusError(rawURL string, code int) *FetchError {
	return &FetchError{Kind: ErrKindHTTPStatus, URL: rawURL, StatusCode: code}
}

// classifyFetchError maps a fetch error onto a page status.
func classifyFetchError(err error) PageStatus {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind == ErrKindHTTPStatus {
		return PageStatusHTTPError
	}
	return PageStatusNetworkError
}

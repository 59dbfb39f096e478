package fetcher

import "fmt"

// FetchFailure is a response with a non-2xx status.
type FetchFailure struct {
	URL        string
	StatusCode int
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("bad response from %s (status_code %d)", e.URL, e.StatusCode)
}

// DecodeFailure is a successful response whose body is not JSON.
type DecodeFailure struct {
	URL string
	Err error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

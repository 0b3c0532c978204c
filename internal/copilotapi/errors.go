package copilotapi

import (
	"errors"
	"fmt"
)

// RequestError reports a failed call to the copilot API. StatusCode is zero when
// the request never produced a response.
type RequestError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("copilotapi %s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("copilotapi %s: %s %s: status %d: %v", e.Op, e.Method, e.Path, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("copilotapi %s: %s %s: status %d: %s", e.Op, e.Method, e.Path, e.StatusCode, e.Body)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// UpstreamStatus exposes the HTTP status to the error mapper.
func (e *RequestError) UpstreamStatus() int {
	return e.StatusCode
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

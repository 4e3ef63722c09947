// Package handler implements the HandlerHarness (§4.3): it runs a
// project's user callbacks against a fetch result and turns their
// side effects (follows, messages, logs, exceptions) into a
// ProcessorResult, without letting user code corrupt the worker.
package handler

import (
	"fmt"

	"github.com/spider-crawler/spider/internal/fetcher"
)

// Response is the user-code-facing view of a fetcher.FetchResult.
type Response struct {
	StatusCode int
	OrigURL    string
	URL        string
	Headers    map[string]string
	Content    []byte
	Cookies    map[string]string
	Time       float64
	Save       interface{}
	Error      string
}

// NewResponse adapts a fetcher.FetchResult into the handler-facing
// Response shape.
func NewResponse(r *fetcher.FetchResult) *Response {
	return &Response{
		StatusCode: r.StatusCode,
		OrigURL:    r.OrigURL,
		URL:        r.URL,
		Headers:    r.Headers,
		Content:    r.Content,
		Cookies:    r.Cookies,
		Time:       r.Time,
		Save:       r.Save,
		Error:      r.Error,
	}
}

// HTTPError is raised (captured into ProcessorResult.Exception) when a
// status-code-intolerant callback receives a non-2xx/3xx response.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// RaiseForStatus returns an *HTTPError if StatusCode is outside
// [200, 400), else nil — mirroring response.raise_for_status().
func (r *Response) RaiseForStatus() error {
	if r.StatusCode < 200 || r.StatusCode >= 400 {
		return &HTTPError{StatusCode: r.StatusCode}
	}
	return nil
}

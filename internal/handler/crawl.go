package handler

import (
	"net/url"

	"github.com/spider-crawler/spider/internal/crawltask"
)

// CrawlOption configures a task queued via Crawl.
type CrawlOption func(*crawltask.Task)

// WithCallback sets the target callback name (default DefaultCallback).
func WithCallback(name string) CrawlOption {
	return func(t *crawltask.Task) { t.Process = &crawltask.Process{Callback: name} }
}

// WithPriority sets the task's scheduling priority.
func WithPriority(priority int) CrawlOption {
	return func(t *crawltask.Task) {
		if t.Schedule == nil {
			t.Schedule = &crawltask.Schedule{}
		}
		t.Schedule.Priority = priority
	}
}

// WithExeTime delays the task until exetime (seconds since epoch).
func WithExeTime(exetime float64) CrawlOption {
	return func(t *crawltask.Task) {
		if t.Schedule == nil {
			t.Schedule = &crawltask.Schedule{}
		}
		t.Schedule.ExeTime = exetime
	}
}

// WithMethod sets the HTTP method; WithData defaults it to POST unless
// already set.
func WithMethod(method string) CrawlOption {
	return func(t *crawltask.Task) {
		if t.Fetch == nil {
			t.Fetch = &crawltask.Fetch{}
		}
		t.Fetch.Method = method
	}
}

// WithData form-encodes data as the request body and defaults the
// method to POST, mirroring pyspider's multipart/form fallback for
// crawl(url, data=...).
func WithData(data map[string]string) CrawlOption {
	return func(t *crawltask.Task) {
		if t.Fetch == nil {
			t.Fetch = &crawltask.Fetch{}
		}
		values := url.Values{}
		for k, v := range data {
			values.Set(k, v)
		}
		t.Fetch.Data = values.Encode()
		if t.Fetch.Method == "" {
			t.Fetch.Method = "POST"
		}
	}
}

// WithHeaders merges extra request headers.
func WithHeaders(headers map[string]string) CrawlOption {
	return func(t *crawltask.Task) {
		if t.Fetch == nil {
			t.Fetch = &crawltask.Fetch{}
		}
		if t.Fetch.Headers == nil {
			t.Fetch.Headers = make(map[string]string)
		}
		for k, v := range headers {
			t.Fetch.Headers[k] = v
		}
	}
}

// WithSave attaches arbitrary state echoed back on the response.
func WithSave(save interface{}) CrawlOption {
	return func(t *crawltask.Task) {
		if t.Fetch == nil {
			t.Fetch = &crawltask.Fetch{}
		}
		t.Fetch.Save = save
	}
}

// WithTaskID overrides the default md5(url) taskid.
func WithTaskID(taskid string) CrawlOption {
	return func(t *crawltask.Task) { t.TaskID = taskid }
}

// WithFetchType routes the task through the js/phantomjs render-fetch
// branch instead of a plain HTTP fetch.
func WithFetchType(fetchType string) CrawlOption {
	return func(t *crawltask.Task) {
		if t.Fetch == nil {
			t.Fetch = &crawltask.Fetch{}
		}
		t.Fetch.FetchType = fetchType
	}
}

// Crawl queues a new task to be followed (§4.3 "Capture channels"): the
// URL is percent-encoded (non-ASCII path components), a default taskid
// is derived from the canonicalized URL unless WithTaskID overrides it,
// and the callback defaults to DefaultCallback.
func (h *Harness) Crawl(rawURL string, opts ...CrawlOption) error {
	canon, err := crawltask.CanonicalizeURL(rawURL)
	if err != nil {
		return err
	}

	t := &crawltask.Task{
		Project: h.project,
		URL:     canon,
		Process: &crawltask.Process{Callback: DefaultCallback},
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.TaskID == "" {
		taskid, err := crawltask.DefaultTaskID(canon)
		if err != nil {
			return err
		}
		t.TaskID = taskid
	}

	h.mu.Lock()
	h.follows = append(h.follows, t)
	h.mu.Unlock()
	return nil
}

// SendMessage queues a cross-project message task whose save carries
// (project, msg) and whose callback is OnMessage, mirroring pyspider's
// send_message (§4.3).
func (h *Harness) SendMessage(project string, msg interface{}) error {
	const url = "data:,on_message"
	taskid, err := crawltask.DefaultTaskID(url)
	if err != nil {
		return err
	}

	t := &crawltask.Task{
		TaskID:  taskid,
		Project: project,
		URL:     url,
		Process: &crawltask.Process{Callback: "OnMessage"},
		Fetch:   &crawltask.Fetch{Save: []interface{}{project, msg}},
	}

	h.mu.Lock()
	h.messages = append(h.messages, t)
	h.mu.Unlock()
	return nil
}


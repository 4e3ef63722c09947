package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/queue"
)

func TestHTTPFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := New(4, queue.NewChannelQueue(8), queue.NewChannelQueue(8))
	task := &crawltask.Task{TaskID: "t1", Project: "demo", URL: srv.URL}

	result := f.httpFetch(context.Background(), task)
	if result.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", result.StatusCode)
	}
	if string(result.Content) != "hello world" {
		t.Fatalf("Content = %q, want %q", result.Content, "hello world")
	}
	if result.Headers["x-test"] != "yes" {
		t.Errorf("Headers[x-test] = %q, want yes", result.Headers["x-test"])
	}
}

func TestHTTPFetchStatusCodeTolerant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := New(4, queue.NewChannelQueue(8), queue.NewChannelQueue(8))
	task := &crawltask.Task{TaskID: "t2", Project: "demo", URL: srv.URL}

	result := f.httpFetch(context.Background(), task)
	if result.StatusCode != 403 {
		t.Fatalf("StatusCode = %d, want 403 (fetcher does not raise on HTTP status)", result.StatusCode)
	}
}

func TestHTTPFetchTransportErrorSynthesizes599(t *testing.T) {
	f := New(4, queue.NewChannelQueue(8), queue.NewChannelQueue(8))
	task := &crawltask.Task{TaskID: "t3", Project: "demo", URL: "http://127.0.0.1:1"}

	result := f.httpFetch(context.Background(), task)
	if result.StatusCode != 599 {
		t.Fatalf("StatusCode = %d, want 599", result.StatusCode)
	}
	if result.Error == "" {
		t.Error("expected non-empty Error on transport failure")
	}
}

func TestHTTPFetchDoesNotFollowRedirectsWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.Write([]byte("end"))
	}))
	defer srv.Close()

	no := false
	f := New(4, queue.NewChannelQueue(8), queue.NewChannelQueue(8))
	task := &crawltask.Task{
		TaskID:  "t4",
		Project: "demo",
		URL:     srv.URL + "/start",
		Fetch:   &crawltask.Fetch{AllowRedirects: &no},
	}

	result := f.httpFetch(context.Background(), task)
	if result.StatusCode != http.StatusFound {
		t.Fatalf("StatusCode = %d, want 302 when redirects disabled", result.StatusCode)
	}
}

func TestDataFetch(t *testing.T) {
	f := New(1, queue.NewChannelQueue(8), queue.NewChannelQueue(8))
	task := &crawltask.Task{TaskID: "d1", Project: "demo", URL: "data:text/plain;base64,aGVsbG8="}

	result := f.dataFetch(task)
	if result.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", result.StatusCode)
	}
	if string(result.Content) != "hello" {
		t.Fatalf("Content = %q, want hello", result.Content)
	}
	if result.Time != 0 {
		t.Errorf("Time = %v, want 0", result.Time)
	}
}

func TestRenderFetchNotEnabled(t *testing.T) {
	f := New(1, queue.NewChannelQueue(8), queue.NewChannelQueue(8))
	task := &crawltask.Task{
		TaskID:  "r1",
		Project: "demo",
		URL:     "http://example.com",
		Fetch:   &crawltask.Fetch{FetchType: "js"},
	}

	result := f.renderFetch(context.Background(), task)
	if result.StatusCode != 501 {
		t.Fatalf("StatusCode = %d, want 501", result.StatusCode)
	}
	if result.Error != "phantomjs is not enabled." {
		t.Errorf("Error = %q, want exact message", result.Error)
	}
}

func TestDispatchRoutesByScheme(t *testing.T) {
	f := New(2, queue.NewChannelQueue(8), queue.NewChannelQueue(8))

	var gotKind string
	f.callback = func(kind string, task *crawltask.Task, result *FetchResult) { gotKind = kind }

	task := &crawltask.Task{TaskID: "x1", Project: "demo", URL: "data:,hi"}
	f.dispatch(context.Background(), task)
	if gotKind != "data" {
		t.Errorf("kind = %q, want data", gotKind)
	}
}

func TestFreeSizeAndSize(t *testing.T) {
	f := New(2, queue.NewChannelQueue(8), queue.NewChannelQueue(8))
	if got := f.FreeSize(); got != 2 {
		t.Fatalf("FreeSize() = %d, want 2", got)
	}

	f.sem <- struct{}{}
	f.inflight = 1
	if got := f.FreeSize(); got != 1 {
		t.Fatalf("FreeSize() = %d, want 1", got)
	}
	if got := f.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1", got)
	}
}

func TestRunDispatchesFromInQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	in := queue.NewChannelQueue(8)
	out := queue.NewChannelQueue(8)
	f := New(2, in, out)

	in.TryPut(&crawltask.Task{TaskID: "run1", Project: "demo", URL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	item, err := out.Get(0)
	if err != nil {
		t.Fatalf("expected a result on the out-queue, got error: %v", err)
	}
	tr, ok := item.(*TaskResult)
	if !ok {
		t.Fatalf("out-queue item type = %T, want *TaskResult", item)
	}
	if tr.Result.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", tr.Result.StatusCode)
	}
}

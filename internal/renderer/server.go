package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/fetcher"
)

// Server is the local JS render backend (§6 render-backend protocol): an
// HTTP handler that accepts a JSON-serialized fetch descriptor and
// replies with a JSON fetcher.FetchResult, backed by a pool of headless
// Chromium contexts.
type Server struct {
	allocator context.Context
	cancel    context.CancelFunc
	pool      chan context.Context
	poolSize  int
	timeout   time.Duration
}

// NewServer starts poolSize headless Chromium contexts and returns a
// Server ready to handle render-fetch requests.
func NewServer(poolSize int, userAgent string, timeout time.Duration) (*Server, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	s := &Server{
		allocator: allocCtx,
		cancel:    cancel,
		pool:      make(chan context.Context, poolSize),
		poolSize:  poolSize,
		timeout:   timeout,
	}
	for i := 0; i < poolSize; i++ {
		browserCtx, _ := chromedp.NewContext(allocCtx)
		s.pool <- browserCtx
	}
	return s, nil
}

// Close tears down every browser context and the allocator.
func (s *Server) Close() { s.cancel() }

// ServeHTTP implements the render-backend protocol: POST body is the
// JSON fetch descriptor (url plus flattened fetch options, matching
// what fetcher.renderFetch sends); the reply body is the JSON
// FetchResult.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	desc := crawltask.FetchDescriptor{Fetch: &crawltask.Fetch{}}
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(&fetcher.FetchResult{
			StatusCode: 599,
			Error:      fmt.Sprintf("render backend: invalid request body: %v", err),
		})
		return
	}

	task := &crawltask.Task{URL: desc.URL, Fetch: desc.Fetch}
	result := s.render(r.Context(), task)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) render(ctx context.Context, task *crawltask.Task) *fetcher.FetchResult {
	browserCtx := <-s.pool
	defer func() { s.pool <- browserCtx }()

	timeoutCtx, cancel := context.WithTimeout(browserCtx, s.timeout)
	defer cancel()

	headers := make(map[string]string)
	statusCode := 0

	chromedp.ListenTarget(timeoutCtx, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument {
			return
		}
		for k, v := range e.Response.Headers {
			if str, ok := v.(string); ok {
				headers[k] = str
			}
		}
		statusCode = int(e.Response.Status)
	})

	var html, finalURL string
	start := time.Now()
	err := chromedp.Run(timeoutCtx,
		network.Enable(),
		chromedp.Navigate(task.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	elapsed := time.Since(start).Seconds()

	var save interface{}
	if task.Fetch != nil {
		save = task.Fetch.Save
	}

	if err != nil {
		return &fetcher.FetchResult{
			StatusCode: 599,
			OrigURL:    task.URL,
			URL:        task.URL,
			Headers:    map[string]string{},
			Cookies:    map[string]string{},
			Time:       elapsed,
			Save:       save,
			Error:      err.Error(),
		}
	}
	if statusCode == 0 {
		statusCode = 200
	}
	if finalURL == "" {
		finalURL = task.URL
	}

	return &fetcher.FetchResult{
		StatusCode: statusCode,
		OrigURL:    task.URL,
		URL:        finalURL,
		Headers:    headers,
		Content:    []byte(html),
		Cookies:    map[string]string{},
		Time:       elapsed,
		Save:       save,
	}
}

// Package fetcher implements the bounded-concurrency HTTP/data/JS-render
// fetch engine (§4.2): a cooperative event loop dispatching tasks off an
// in-queue into a pool of at most poolsize concurrent fetches, emitting
// (task, result) pairs onto an out-queue or into a callback.
package fetcher

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spider-crawler/spider/internal/counter"
	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/queue"
)

const (
	defaultUserAgent = "spider-crawler/1.0 (+https://github.com/spider-crawler/spider)"
	defaultTimeout   = 120 * time.Second
	tickInterval     = 100 * time.Millisecond
)

// ResultCallback is invoked exactly once per dispatched task with the
// fetch kind ("data", "http", or "phantomjs"), the originating task,
// and the result. When nil, results are placed on the out-queue instead.
type ResultCallback func(kind string, task *crawltask.Task, result *FetchResult)

// Fetcher is the bounded-concurrency fetch engine described in §4.2.
type Fetcher struct {
	poolsize int
	sem      chan struct{}
	inflight int32

	httpClient *http.Client
	transport  *http.Transport
	userAgent  string
	proxy      string // fetcher-wide default proxy "host:port", used when task.fetch.proxy is unset
	renderURL  string // JS/phantomjs render backend URL; empty means "not enabled"

	inQueue  queue.Queue
	outQueue queue.Queue
	callback ResultCallback

	counters5m *counter.Manager
	counters1h *counter.Manager

	quitting int32
	logger   *log.Logger
}

// Option configures a Fetcher at construction time.
type Option func(*Fetcher)

// WithUserAgent overrides the default User-Agent sent on every request.
func WithUserAgent(ua string) Option { return func(f *Fetcher) { f.userAgent = ua } }

// WithProxy sets a fetcher-wide default proxy ("host:port"), used when
// a task does not specify its own task.fetch.proxy.
func WithProxy(hostPort string) Option { return func(f *Fetcher) { f.proxy = hostPort } }

// WithRenderBackend sets the URL of the JS/phantomjs render proxy.
// Leaving it empty causes render-fetch tasks to synthesize a 501.
func WithRenderBackend(url string) Option { return func(f *Fetcher) { f.renderURL = url } }

// WithCallback registers a synchronous result callback; when unset,
// results are placed on the out-queue.
func WithCallback(cb ResultCallback) Option { return func(f *Fetcher) { f.callback = cb } }

// New creates a Fetcher bounded to poolsize concurrent in-flight
// fetches, reading tasks from inQueue and (absent a callback) writing
// (task, result) pairs to outQueue.
func New(poolsize int, inQueue, outQueue queue.Queue, opts ...Option) *Fetcher {
	if poolsize < 1 {
		poolsize = 1
	}
	transport := &http.Transport{
		MaxIdleConns:        poolsize * 2,
		MaxIdleConnsPerHost: poolsize,
		IdleConnTimeout:     90 * time.Second,
	}
	f := &Fetcher{
		poolsize:  poolsize,
		sem:       make(chan struct{}, poolsize),
		userAgent: defaultUserAgent,
		transport: transport,
		httpClient: &http.Client{
			Transport: transport,
		},
		inQueue:  inQueue,
		outQueue: outQueue,
		counters5m: counter.NewManager(func() *counter.TimeBaseAverageWindowCounter {
			return counter.NewTimeBaseAverageWindowCounter(30, 10*time.Second)
		}),
		counters1h: counter.NewManager(func() *counter.TimeBaseAverageWindowCounter {
			return counter.NewTimeBaseAverageWindowCounter(60, 60*time.Second)
		}),
		logger: log.New(os.Stderr, "fetcher: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FreeSize reports how many pool slots are currently unused.
func (f *Fetcher) FreeSize() int { return f.poolsize - int(atomic.LoadInt32(&f.inflight)) }

// Size reports how many fetches are currently in flight.
func (f *Fetcher) Size() int { return int(atomic.LoadInt32(&f.inflight)) }

// Quit requests a graceful shutdown: Run's loop stops dispatching new
// tasks and returns once already in-flight fetches drain.
func (f *Fetcher) Quit() { atomic.StoreInt32(&f.quitting, 1) }

func (f *Fetcher) quitRequested() bool { return atomic.LoadInt32(&f.quitting) != 0 }

// Run drives the cooperative event loop: every tick, while the
// out-queue has room and the pool has a free slot, pull one task
// off the in-queue (non-blocking) and dispatch it onto its own
// goroutine bounded by the pool semaphore. Returns when ctx is done or
// Quit is called and all in-flight fetches have drained.
func (f *Fetcher) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.quitRequested() {
				return
			}
			for !f.outQueue.Full() && f.FreeSize() > 0 {
				item, err := f.inQueue.Get(0)
				if err != nil {
					break
				}
				task, ok := item.(*crawltask.Task)
				if !ok {
					continue
				}
				f.sem <- struct{}{}
				atomic.AddInt32(&f.inflight, 1)
				wg.Add(1)
				go func(t *crawltask.Task) {
					defer wg.Done()
					defer func() {
						<-f.sem
						atomic.AddInt32(&f.inflight, -1)
					}()
					f.dispatch(ctx, t)
				}(task)
			}
		}
	}
}

// dispatch selects a fetch branch by URL scheme / fetch-type (§4.2) and
// emits its result.
func (f *Fetcher) dispatch(ctx context.Context, task *crawltask.Task) {
	var kind string
	var result *FetchResult

	switch {
	case strings.HasPrefix(task.URL, "data:"):
		kind = "data"
		result = f.dataFetch(task)
	case task.Fetch != nil && (task.Fetch.FetchType == "js" || task.Fetch.FetchType == "phantomjs"):
		kind = "phantomjs"
		result = f.renderFetch(ctx, task)
	default:
		kind = "http"
		result = f.httpFetch(ctx, task)
	}

	f.onResult(kind, task, result)
}

func (f *Fetcher) onResult(kind string, task *crawltask.Task, result *FetchResult) {
	f.recordCounters(task.Project, kind, result)

	if f.callback != nil {
		f.callback(kind, task, result)
		return
	}
	if err := f.outQueue.TryPut(&TaskResult{Task: task, Result: result}); err != nil {
		f.logger.Printf("out-queue full, dropping result for %s", task.TaskID)
	}
}

func (f *Fetcher) recordCounters(project, kind string, result *FetchResult) {
	bucketed := counter.BucketStatusCode(result.StatusCode)
	key := counter.Key{Project: project, Metric: fmt.Sprintf("%d", bucketed)}
	f.counters5m.Event(key, 1)
	f.counters1h.Event(key, 1)

	if kind == "http" && result.Time > 0 {
		speed := float64(len(result.Content)) / result.Time
		f.counters5m.Event(counter.Key{Project: project, Metric: "speed"}, speed)
		f.counters1h.Event(counter.Key{Project: project, Metric: "speed"}, speed)
		f.counters5m.Event(counter.Key{Project: project, Metric: "time"}, result.Time)
		f.counters1h.Event(counter.Key{Project: project, Metric: "time"}, result.Time)
	}
}

// TaskResult pairs a task with its fetch result for transit on the
// out-queue (§2 data flow: "Fetcher in-queue -> Fetcher -> Processor
// in-queue").
type TaskResult struct {
	Task   *crawltask.Task
	Result *FetchResult
}

// SyncFetch performs one fetch and blocks until it completes, used by
// RPC clients (§4.2 "Synchronous mode").
func (f *Fetcher) SyncFetch(ctx context.Context, task *crawltask.Task) *FetchResult {
	done := make(chan *FetchResult, 1)
	prev := f.callback
	f.callback = func(kind string, t *crawltask.Task, r *FetchResult) {
		if prev != nil {
			prev(kind, t, r)
		}
		select {
		case done <- r:
		default:
		}
	}
	defer func() { f.callback = prev }()

	f.sem <- struct{}{}
	atomic.AddInt32(&f.inflight, 1)
	go func() {
		defer func() {
			<-f.sem
			atomic.AddInt32(&f.inflight, -1)
		}()
		f.dispatch(ctx, task)
	}()

	return <-done
}

// Counter5m returns the 5-minute window metrics for a project.
func (f *Fetcher) Counter5m(project string) map[string]float64 { return f.counters5m.ToDict(project) }

// Counter1h returns the 1-hour window metrics for a project.
func (f *Fetcher) Counter1h(project string) map[string]float64 { return f.counters1h.ToDict(project) }

// Package scheduler implements the TaskQueue: a priority/time/processing
// three-heap queue with token-bucket rate limiting and lease-based
// reclamation, as described in §4.1.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultProcessingTimeout is the lease window a consumer has to call
// Done before a task is automatically reissued.
const DefaultProcessingTimeout = 600 * time.Second

// inQueueTask is the internal heap node: (taskid, priority, exetime).
// Ordering: if both exetime are zero, higher priority sorts first;
// otherwise the smaller exetime sorts first. An empty taskid marks a
// tombstoned processing-heap entry.
type inQueueTask struct {
	taskid    string
	priority  int
	exetime   float64
	heapIndex int
}

func less(a, b *inQueueTask) bool {
	if a.exetime == 0 && b.exetime == 0 {
		return a.priority > b.priority
	}
	return a.exetime < b.exetime
}

// taskHeap is a container/heap.Interface implementation shared by all
// three sub-queues, plus a taskid -> node side index for O(1)
// membership tests and in-place priority/exetime mutation.
type taskHeap struct {
	items []*inQueueTask
	index map[string]*inQueueTask
}

func newTaskHeap() *taskHeap {
	return &taskHeap{index: make(map[string]*inQueueTask)}
}

func (h *taskHeap) Len() int { return len(h.items) }

func (h *taskHeap) Less(i, j int) bool { return less(h.items[i], h.items[j]) }

func (h *taskHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].heapIndex = i
	h.items[j].heapIndex = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*inQueueTask)
	t.heapIndex = len(h.items)
	h.items = append(h.items, t)
}

func (h *taskHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return t
}

func (h *taskHeap) pop() *inQueueTask {
	return heap.Pop(h).(*inQueueTask)
}

func (h *taskHeap) push(t *inQueueTask) {
	heap.Push(h, t)
}

// TaskQueue is the scheduler's priority + delayed-execution queue.
type TaskQueue struct {
	mu                sync.Mutex
	priorityQueue     *taskHeap
	timeQueue         *taskHeap
	processing        *taskHeap
	bucket            *rate.Limiter
	processingTimeout time.Duration
}

// New creates a TaskQueue with the given token-bucket rate (tokens/sec,
// 0 means unlimited) and burst capacity, using the default processing
// timeout.
func New(tokenRate float64, burst int) *TaskQueue {
	return NewWithTimeout(tokenRate, burst, DefaultProcessingTimeout)
}

// NewWithTimeout is like New but allows overriding the lease window:
// cmd/spider passes the configured processing timeout, and tests use a
// short one to exercise reclamation without a long sleep.
func NewWithTimeout(tokenRate float64, burst int, processingTimeout time.Duration) *TaskQueue {
	q := &TaskQueue{
		priorityQueue:     newTaskHeap(),
		timeQueue:         newTaskHeap(),
		processing:        newTaskHeap(),
		processingTimeout: processingTimeout,
	}
	if tokenRate > 0 {
		if burst < 1 {
			burst = 1
		}
		q.bucket = rate.NewLimiter(rate.Limit(tokenRate), burst)
	}
	return q
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Put inserts or merges a task. If the taskid is already present in the
// priority queue, its priority is raised to the max of old/new. If
// present in the time queue, priority is raised and exetime is lowered
// to the min of old/new. Otherwise a new node is created, routed to the
// time queue if exetime is in the future, else to the priority queue.
// A task currently in processing is not deduplicated against.
func (q *TaskQueue) Put(taskid string, priority int, exetime float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := nowSeconds()

	if t, ok := q.priorityQueue.index[taskid]; ok {
		if priority > t.priority {
			t.priority = priority
		}
		heap.Fix(q.priorityQueue, t.heapIndex)
		return
	}

	if t, ok := q.timeQueue.index[taskid]; ok {
		if priority > t.priority {
			t.priority = priority
		}
		if exetime > 0 && exetime < t.exetime {
			t.exetime = exetime
		}
		heap.Fix(q.timeQueue, t.heapIndex)
		return
	}

	t := &inQueueTask{taskid: taskid, priority: priority, exetime: exetime}
	if exetime > now {
		q.timeQueue.push(t)
		q.timeQueue.index[taskid] = t
	} else {
		t.exetime = 0
		q.priorityQueue.push(t)
		q.priorityQueue.index[taskid] = t
	}
}

// Get pops the highest-priority runnable task and leases it: its
// exetime is set to now+processingTimeout and it is pushed onto the
// processing heap. Returns ok=false if the priority queue is empty or
// the token bucket has no tokens available. A token is only consumed
// once a task is actually available to hand out — an empty queue never
// drains the bucket, matching pyspider's peek-then-decrement order.
func (q *TaskQueue) Get() (taskid string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.priorityQueue.Len() == 0 {
		return "", false
	}

	if q.bucket != nil && !q.bucket.Allow() {
		return "", false
	}

	t := q.priorityQueue.pop()
	delete(q.priorityQueue.index, t.taskid)

	t.exetime = nowSeconds() + q.processingTimeout.Seconds()
	q.processing.push(t)
	q.processing.index[t.taskid] = t

	return t.taskid, true
}

// Done tombstones a leased task: present in processing entries are
// skipped on reclamation rather than eagerly removed, since heap
// removal is O(n) and tombstoning is O(log n) amortized.
func (q *TaskQueue) Done(taskid string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.processing.index[taskid]; ok {
		t.taskid = ""
		delete(q.processing.index, taskid)
	}
}

// CheckUpdate performs time->priority promotion (tasks whose exetime
// has arrived move to the priority queue) and lease reclamation (tasks
// whose processing lease has expired are reissued, unless tombstoned).
// Must be invoked periodically.
func (q *TaskQueue) CheckUpdate() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := nowSeconds()

	for q.timeQueue.Len() > 0 && q.timeQueue.items[0].exetime < now {
		t := q.timeQueue.pop()
		delete(q.timeQueue.index, t.taskid)
		t.exetime = 0
		q.priorityQueue.push(t)
		q.priorityQueue.index[t.taskid] = t
	}

	for q.processing.Len() > 0 && q.processing.items[0].exetime < now {
		t := q.processing.pop()
		if t.taskid == "" {
			continue
		}
		delete(q.processing.index, t.taskid)
		t.exetime = 0
		q.priorityQueue.push(t)
		q.priorityQueue.index[t.taskid] = t
	}
}

// Contains reports whether taskid is present in the priority queue, the
// time queue, or processing with a non-tombstoned entry.
func (q *TaskQueue) Contains(taskid string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.priorityQueue.index[taskid]; ok {
		return true
	}
	if _, ok := q.timeQueue.index[taskid]; ok {
		return true
	}
	if t, ok := q.processing.index[taskid]; ok {
		return t.taskid != ""
	}
	return false
}

// Len returns the sum of priority_queue and time_queue sizes;
// processing is not counted.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.priorityQueue.Len() + q.timeQueue.Len()
}

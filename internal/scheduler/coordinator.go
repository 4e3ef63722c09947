package scheduler

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/queue"
)

const coordinatorTick = 100 * time.Millisecond

// Coordinator is the scheduler-side glue the data flow describes:
// Submit stores an incoming (new or follow-up) task and admits its
// taskid into the TaskQueue; Run polls the queue and forwards leased
// tasks onto fetchOut for the Fetcher to pick up; Done releases a
// task's lease once the processor has handled its result.
type Coordinator struct {
	mu       sync.Mutex
	queue    *TaskQueue
	tasks    map[string]*crawltask.Task
	fetchOut queue.Queue
	logger   *log.Logger
}

// NewCoordinator creates a Coordinator backed by q, forwarding leased
// tasks onto fetchOut.
func NewCoordinator(q *TaskQueue, fetchOut queue.Queue) *Coordinator {
	return &Coordinator{
		queue:    q,
		tasks:    make(map[string]*crawltask.Task),
		fetchOut: fetchOut,
		logger:   log.New(os.Stderr, "scheduler: ", log.LstdFlags),
	}
}

// Submit stores task and admits it into the TaskQueue at its declared
// priority/exetime (zero values if task.Schedule is nil).
func (c *Coordinator) Submit(task *crawltask.Task) {
	var priority int
	var exetime float64
	if task.Schedule != nil {
		priority = task.Schedule.Priority
		exetime = task.Schedule.ExeTime
	}

	c.mu.Lock()
	c.tasks[task.TaskID] = task
	c.mu.Unlock()

	c.queue.Put(task.TaskID, priority, exetime)
}

// Done releases taskid's processing lease once its result has been
// handed off to the processor/result stage.
func (c *Coordinator) Done(taskid string) {
	c.queue.Done(taskid)
}

// Run polls the TaskQueue every tick, promoting due time-scheduled
// tasks and reclaiming expired leases (CheckUpdate), then drains
// whatever Get yields onto fetchOut until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(coordinatorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.queue.CheckUpdate()
			c.dispatchReady()
		}
	}
}

func (c *Coordinator) dispatchReady() {
	for {
		taskid, ok := c.queue.Get()
		if !ok {
			return
		}

		c.mu.Lock()
		task := c.tasks[taskid]
		c.mu.Unlock()
		if task == nil {
			c.logger.Printf("warning: leased unknown taskid %s", taskid)
			continue
		}

		if err := c.fetchOut.TryPut(task); err != nil {
			// fetcher in-queue is full; let the lease expire and the
			// task get reissued on the next CheckUpdate pass.
			c.logger.Printf("fetcher queue full, deferring %s", taskid)
			return
		}
	}
}

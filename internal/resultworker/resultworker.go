// Package resultworker drains processed results off a queue and
// persists them, logging malformed or failed items rather than
// crashing the pipeline.
package resultworker

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/queue"
)

const getTimeout = time.Second

// ResultDB is the persistence capability a ResultWorker saves into.
type ResultDB interface {
	Save(project, taskid, url string, result interface{}) error
}

// Item is what the processor enqueues for every task that produced a
// non-nil result: the originating task and the callback's return value.
type Item struct {
	Task   *crawltask.Task
	Result interface{}
}

// ResultWorker consumes Items from inQueue and saves them via db. One
// task at a time, cooperative shutdown via Quit.
type ResultWorker struct {
	db      ResultDB
	inQueue queue.Queue
	quit    int32
	logger  *log.Logger
}

// New creates a ResultWorker.
func New(db ResultDB, inQueue queue.Queue) *ResultWorker {
	return &ResultWorker{
		db:      db,
		inQueue: inQueue,
		logger:  log.New(os.Stderr, "result: ", log.LstdFlags),
	}
}

// Quit requests the run loop stop after its current timeout elapses.
func (w *ResultWorker) Quit() {
	atomic.StoreInt32(&w.quit, 1)
}

func (w *ResultWorker) quitRequested() bool {
	return atomic.LoadInt32(&w.quit) != 0
}

// Run polls inQueue until Quit is called, saving every item it gets
// and logging (never panicking on) malformed items or save failures.
func (w *ResultWorker) Run() {
	for !w.quitRequested() {
		raw, err := w.inQueue.Get(getTimeout)
		if err != nil {
			continue
		}

		item, ok := raw.(Item)
		if !ok || item.Task == nil {
			w.logger.Printf("warning: result UNKNOWN -> %.30v", raw)
			continue
		}

		if err := w.onResult(item); err != nil {
			w.logger.Printf("error: %v", err)
		}
	}
	w.logger.Printf("result_worker exiting...")
}

func (w *ResultWorker) onResult(item Item) error {
	if item.Result == nil {
		return nil
	}

	task := item.Task
	if task.TaskID == "" || task.Project == "" || task.URL == "" {
		w.logger.Printf("warning: result %s -> %.30v missing taskid/project/url", task.URL, item.Result)
		return fmt.Errorf("resultworker: task missing taskid/project/url")
	}

	w.logger.Printf("result %s:%s %s -> %.30v", task.Project, task.TaskID, task.URL, item.Result)
	return w.db.Save(task.Project, task.TaskID, task.URL, item.Result)
}

package resultworker

import (
	"sync"
	"testing"
	"time"

	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/queue"
)

type fakeResultDB struct {
	mu    sync.Mutex
	saved []savedResult
}

type savedResult struct {
	project, taskid, url string
	result                interface{}
}

func (f *fakeResultDB) Save(project, taskid, url string, result interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedResult{project, taskid, url, result})
	return nil
}

func (f *fakeResultDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func runBriefly(t *testing.T, w *ResultWorker) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	w.Quit()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ResultWorker.Run did not exit after Quit")
	}
}

func TestResultWorkerSavesWellFormedItem(t *testing.T) {
	db := &fakeResultDB{}
	q := queue.NewChannelQueue(4)
	w := New(db, q)

	task := &crawltask.Task{TaskID: "abc", Project: "demo", URL: "http://example.com"}
	if err := q.TryPut(Item{Task: task, Result: map[string]interface{}{"title": "hi"}}); err != nil {
		t.Fatalf("TryPut: %v", err)
	}

	runBriefly(t, w)

	if db.count() != 1 {
		t.Fatalf("count = %d, want 1", db.count())
	}
	got := db.saved[0]
	if got.project != "demo" || got.taskid != "abc" || got.url != "http://example.com" {
		t.Fatalf("saved = %+v, want demo/abc/http://example.com", got)
	}
}

func TestResultWorkerIgnoresNilResult(t *testing.T) {
	db := &fakeResultDB{}
	q := queue.NewChannelQueue(4)
	w := New(db, q)

	task := &crawltask.Task{TaskID: "abc", Project: "demo", URL: "http://example.com"}
	q.TryPut(Item{Task: task, Result: nil})

	runBriefly(t, w)

	if db.count() != 0 {
		t.Fatalf("count = %d, want 0 for a nil result", db.count())
	}
}

func TestResultWorkerSkipsMalformedTaskWithoutCrashing(t *testing.T) {
	db := &fakeResultDB{}
	q := queue.NewChannelQueue(4)
	w := New(db, q)

	task := &crawltask.Task{URL: "http://example.com"} // missing taskid/project
	q.TryPut(Item{Task: task, Result: "partial"})

	runBriefly(t, w)

	if db.count() != 0 {
		t.Fatalf("count = %d, want 0 for a malformed task", db.count())
	}
}

func TestResultWorkerIgnoresUnrecognizedQueueItem(t *testing.T) {
	db := &fakeResultDB{}
	q := queue.NewChannelQueue(4)
	w := New(db, q)

	q.TryPut("not an Item")

	runBriefly(t, w)

	if db.count() != 0 {
		t.Fatalf("count = %d, want 0 for a malformed queue item", db.count())
	}
}

package handler

import "github.com/spider-crawler/spider/internal/crawltask"

// ProcessorResult is everything a single harness invocation produced
// (§3): the callback's return value (or last yielded value), the new
// tasks it queued via Crawl/SendMessage, captured log lines, and any
// exception — captured rather than propagated, per the isolation
// contract (§4.3).
type ProcessorResult struct {
	Result    interface{}
	Follows   []*crawltask.Task
	Messages  []*crawltask.Task
	Logs      []string
	Exception error
	ExtInfo   map[string]interface{}
}

package handler

import (
	"fmt"

	"github.com/spider-crawler/spider/internal/crawltask"
)

// Run executes task.process.callback (default DefaultCallback) against
// resp on target (the concrete project handler instance embedding this
// Harness), and returns everything the invocation produced (§4.3).
//
// Exceptions — a missing callback, a status-code pre-check failure, a
// panic inside user code — are captured into ProcessorResult.Exception
// rather than propagated; stdout is always restored; follows/messages/
// logs collected before the failure are still returned (the isolation
// contract, §4.3/§7).
func (h *Harness) Run(target interface{}, task *crawltask.Task, resp *Response) *ProcessorResult {
	h.mu.Lock()
	h.reset()
	h.task = task
	h.mu.Unlock()

	callbackName := DefaultCallback
	if task.Process != nil && task.Process.Callback != "" {
		callbackName = task.Process.Callback
	}

	var result *ProcessorResult
	logs := captureStdout(func() {
		result = h.invokeCallback(target, callbackName, task, resp)
	})
	result.Logs = logs

	h.mu.Lock()
	result.Follows = h.follows
	result.Messages = h.messages
	result.ExtInfo = h.extinfo
	h.mu.Unlock()

	return result
}

func (h *Harness) invokeCallback(target interface{}, callbackName string, task *crawltask.Task, resp *Response) (result *ProcessorResult) {
	result = &ProcessorResult{}

	defer func() {
		if r := recover(); r != nil {
			result.Exception = fmt.Errorf("handler: panic in callback %q: %v", callbackName, r)
		}
	}()

	method, err := resolveCallback(target, callbackName)
	if err != nil {
		result.Exception = err
		return result
	}

	if !h.tolerant[callbackName] {
		if err := resp.RaiseForStatus(); err != nil {
			result.Exception = err
			return result
		}
	}

	values, err := invoke(method, resp, task)
	if err != nil {
		result.Exception = err
		return result
	}

	if len(values) > 0 {
		result.Result = values[len(values)-1]
	}
	return result
}

// OnMessage is the harness-level handler for cross-project messages
// queued by SendMessage: it unpacks resp.Save as (project, msg) and
// invokes the registered hook, if any (§4.3 "_on_message").
func (h *Harness) OnMessage(resp *Response) interface{} {
	pair, ok := resp.Save.([]interface{})
	if !ok || len(pair) != 2 {
		return nil
	}
	project, _ := pair[0].(string)
	if h.onMessageFn != nil {
		h.onMessageFn(project, pair[1])
	}
	return nil
}

// OnCronjob dispatches every registered cronjob whose period divides
// the tick carried in resp.Save (a map with a "tick" key), mirroring
// pyspider's _on_cronjob (§4.3, §8 scenario #3).
func (h *Harness) OnCronjob(resp *Response, task *crawltask.Task) interface{} {
	save, _ := resp.Save.(map[string]interface{})
	tickVal, _ := save["tick"]
	var tick int64
	switch v := tickVal.(type) {
	case int64:
		tick = v
	case int:
		tick = int64(v)
	case float64:
		tick = int64(v)
	}
	h.runCronjobs(tick)
	return nil
}

// OnGetInfo answers the scheduler's introspection request: resp.Save
// lists the requested attribute names (currently just "min_tick"); the
// reply is queued as a follow to "data:,on_get_info" whose fetch.save
// carries the requested values (§4.3 "_on_get_info", §8 scenario #7).
func (h *Harness) OnGetInfo(resp *Response, task *crawltask.Task) interface{} {
	requested, _ := resp.Save.([]interface{})
	out := make(map[string]interface{})
	for _, r := range requested {
		name, _ := r.(string)
		if name == "min_tick" {
			out["min_tick"] = h.MinTick()
		}
	}
	h.Crawl("data:,on_get_info", WithSave(out))
	return nil
}

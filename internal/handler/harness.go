package handler

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/spider-crawler/spider/internal/crawltask"
)

// DefaultCallback is the callback name used when a task's
// process.callback is unset. pyspider defaults to the Python dunder
// "__call__"; Go reflection cannot resolve unexported method names
// (identifiers starting with "_" are unexported), so the equivalent
// exported name "Call" is used instead — a project's handler type
// defines its own Call(resp *Response) method, which shadows the
// embedded Harness's no-op default of the same name.
const DefaultCallback = "Call"

// Harness is embedded by every project's handler type. It supplies
// Crawl/SendMessage/cronjob registration to user code and is the
// receiver walked by reflection to resolve task.process.callback
// (§4.3). One Harness is used synchronously, one task at a time.
type Harness struct {
	mu sync.Mutex

	project     string
	tolerant    map[string]bool
	cronjobs    []cronjob
	minTick     int64
	onMessageFn func(project string, msg interface{})

	// per-invocation capture state, reset at the start of Run.
	follows  []*crawltask.Task
	messages []*crawltask.Task
	task     *crawltask.Task
	extinfo  map[string]interface{}
}

// NewHarness creates a Harness for the named project.
func NewHarness(project string) *Harness {
	return &Harness{project: project}
}

// Call is the no-op default callback, shadowed by a project's own
// exported Call method (see DefaultCallback).
func (h *Harness) Call(resp *Response) interface{} { return nil }

// RegisterTolerant marks callback names as status-code-tolerant,
// equivalent to pyspider's @catch_status_code_error decorator (§4.3,
// §9): such callbacks run regardless of HTTP status.
func (h *Harness) RegisterTolerant(names ...string) {
	if h.tolerant == nil {
		h.tolerant = make(map[string]bool)
	}
	for _, n := range names {
		h.tolerant[n] = true
	}
}

// OnMessageHook registers the function invoked by OnMessage once a
// cross-project message arrives (the user-overridable on_message hook).
func (h *Harness) OnMessageHook(fn func(project string, msg interface{})) {
	h.onMessageFn = fn
}

func (h *Harness) reset() {
	h.follows = nil
	h.messages = nil
	h.extinfo = make(map[string]interface{})
}

// resolveCallback looks up an exported method by name on target (the
// concrete project handler instance, which embeds *Harness).
func resolveCallback(target interface{}, name string) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	method := v.MethodByName(name)
	if !method.IsValid() {
		return reflect.Value{}, fmt.Errorf("handler: no such callback %q", name)
	}
	return method, nil
}

// invoke calls method with (resp) or (resp, task) depending on its
// declared arity (§4.3 "argument binding"), and normalizes its return
// value into a slice of results: a callback returning a slice is
// treated as the generator-equivalent "produces zero or more results"
// contract (§9); any other return type produces exactly one result;
// no return value produces zero results.
func invoke(method reflect.Value, resp *Response, task *crawltask.Task) ([]interface{}, error) {
	mtype := method.Type()

	var args []reflect.Value
	switch mtype.NumIn() {
	case 1:
		args = []reflect.Value{reflect.ValueOf(resp)}
	case 2:
		args = []reflect.Value{reflect.ValueOf(resp), reflect.ValueOf(task)}
	default:
		return nil, fmt.Errorf("handler: callback must declare 1 or 2 parameters, got %d", mtype.NumIn())
	}

	outs := method.Call(args)
	if len(outs) == 0 {
		return nil, nil
	}

	ret := outs[0]
	if ret.Kind() == reflect.Slice {
		results := make([]interface{}, ret.Len())
		for i := 0; i < ret.Len(); i++ {
			results[i] = ret.Index(i).Interface()
		}
		return results, nil
	}
	if !ret.IsValid() || (ret.Kind() == reflect.Interface && ret.IsNil()) {
		return nil, nil
	}
	return []interface{}{ret.Interface()}, nil
}

package handler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/parser"
)

// demoHandler is a stand-in project handler exercising every harness
// capability under test.
type demoHandler struct {
	*Harness
	tick10Fired int
	tick60Fired int
}

func newDemoHandler() *demoHandler {
	d := &demoHandler{Harness: NewHarness("demo")}
	d.RegisterCronjob("every10", 0, 10, func(tick int64) { d.tick10Fired++ })
	d.RegisterCronjob("every60", 1, 0, func(tick int64) { d.tick60Fired++ })
	d.RegisterTolerant("StatusTolerant")
	return d
}

func (d *demoHandler) StatusTolerant(resp *Response) interface{} {
	return resp.StatusCode
}

func (d *demoHandler) Raises(resp *Response) interface{} {
	fmt.Println("info")
	fmt.Println("warning")
	fmt.Println("error")
	panic("boom")
}

func (d *demoHandler) IndexPage(resp *Response) interface{} {
	links, err := parser.ExtractLinks(resp.URL, resp.Content)
	if err != nil {
		return nil
	}
	for _, l := range links {
		d.Crawl(l.URL, WithCallback("Call"))
	}
	return nil
}

func TestCronjobDispatch(t *testing.T) {
	d := newDemoHandler()

	if got := d.MinTick(); got != 10 {
		t.Fatalf("MinTick() = %d, want 10 (gcd(10,60))", got)
	}

	resp := &Response{StatusCode: 200, Save: map[string]interface{}{"tick": int64(11)}}
	d.OnCronjob(resp, &crawltask.Task{})
	if d.tick10Fired != 0 || d.tick60Fired != 0 {
		t.Fatalf("tick=11 should fire nothing, got 10s=%d 60s=%d", d.tick10Fired, d.tick60Fired)
	}

	resp = &Response{StatusCode: 200, Save: map[string]interface{}{"tick": int64(10)}}
	d.OnCronjob(resp, &crawltask.Task{})
	if d.tick10Fired != 1 || d.tick60Fired != 0 {
		t.Fatalf("tick=10 should fire only the 10s job, got 10s=%d 60s=%d", d.tick10Fired, d.tick60Fired)
	}

	resp = &Response{StatusCode: 200, Save: map[string]interface{}{"tick": int64(60)}}
	d.OnCronjob(resp, &crawltask.Task{})
	if d.tick10Fired != 2 || d.tick60Fired != 1 {
		t.Fatalf("tick=60 should fire both jobs, got 10s=%d 60s=%d", d.tick10Fired, d.tick60Fired)
	}
}

func TestStatusCodeTolerantCallback(t *testing.T) {
	d := newDemoHandler()
	task := &crawltask.Task{TaskID: "t1", Project: "demo", Process: &crawltask.Process{Callback: "StatusTolerant"}}
	resp := &Response{StatusCode: 403}

	result := d.Run(d, task, resp)
	if result.Exception != nil {
		t.Fatalf("Exception = %v, want nil for a tolerant callback", result.Exception)
	}
	if result.Result != 403 {
		t.Fatalf("Result = %v, want 403", result.Result)
	}
}

func TestIntolerantCallbackRaisesOnBadStatus(t *testing.T) {
	d := newDemoHandler()
	task := &crawltask.Task{TaskID: "t2", Project: "demo", Process: &crawltask.Process{Callback: "Call"}}
	resp := &Response{StatusCode: 500}

	result := d.Run(d, task, resp)
	if result.Exception == nil {
		t.Fatal("expected an HTTPError for a non-tolerant callback on a 500 response")
	}
}

func TestRaiseExceptionCapturesLogsAndException(t *testing.T) {
	d := newDemoHandler()
	task := &crawltask.Task{TaskID: "t3", Project: "demo", Process: &crawltask.Process{Callback: "Raises"}}
	resp := &Response{StatusCode: 200}

	result := d.Run(d, task, resp)
	if result.Exception == nil {
		t.Fatal("expected a captured exception from the panicking callback")
	}
	joined := strings.Join(result.Logs, "\n")
	for _, want := range []string{"info", "warning", "error"} {
		if !strings.Contains(joined, want) {
			t.Errorf("logs = %q, want it to contain %q", joined, want)
		}
	}
}

func TestIndexPageProducesPercentEncodedChineseFollow(t *testing.T) {
	d := newDemoHandler()
	task := &crawltask.Task{TaskID: "t4", Project: "demo", Process: &crawltask.Process{Callback: "IndexPage"}}
	resp := &Response{
		StatusCode: 200,
		URL:        "http://binux.me/",
		Content:    []byte(`<a href="http://binux.me">one</a><a href="http://binux.me/中文">two</a>`),
	}

	result := d.Run(d, task, resp)
	if result.Exception != nil {
		t.Fatalf("unexpected exception: %v", result.Exception)
	}
	if len(result.Follows) != 2 {
		t.Fatalf("len(Follows) = %d, want 2", len(result.Follows))
	}
	if result.Follows[0].URL != "http://binux.me/" {
		t.Errorf("Follows[0].URL = %q, want http://binux.me/", result.Follows[0].URL)
	}
	if !strings.HasPrefix(result.Follows[1].URL, "http://binux.me/%") {
		t.Errorf("Follows[1].URL = %q, want percent-encoded Chinese path", result.Follows[1].URL)
	}
}

func TestGetInfoReportsMinTick(t *testing.T) {
	d := newDemoHandler()
	task := &crawltask.Task{TaskID: "t5", Project: "demo", Process: &crawltask.Process{Callback: "OnGetInfo"}}
	resp := &Response{StatusCode: 200, Save: []interface{}{"min_tick"}}

	result := d.Run(d, task, resp)
	if result.Exception != nil {
		t.Fatalf("unexpected exception: %v", result.Exception)
	}
	if len(result.Follows) != 1 {
		t.Fatalf("len(Follows) = %d, want 1", len(result.Follows))
	}
	follow := result.Follows[0]
	if follow.URL != "data:,on_get_info" {
		t.Errorf("follow URL = %q, want data:,on_get_info", follow.URL)
	}
	save, ok := follow.Fetch.Save.(map[string]interface{})
	if !ok {
		t.Fatalf("follow.Fetch.Save type = %T, want map[string]interface{}", follow.Fetch.Save)
	}
	if save["min_tick"] != int64(10) {
		t.Errorf("save[min_tick] = %v, want 10", save["min_tick"])
	}
}

func TestSendMessageQueuesCrossProjectTask(t *testing.T) {
	d := newDemoHandler()
	d.SendMessage("other-project", "hello")

	if len(d.messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(d.messages))
	}
	m := d.messages[0]
	if m.Project != "other-project" {
		t.Errorf("Project = %q, want other-project", m.Project)
	}
	if m.Process.Callback != "OnMessage" {
		t.Errorf("Callback = %q, want OnMessage", m.Process.Callback)
	}
}

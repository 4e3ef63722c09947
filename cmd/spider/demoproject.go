package main

import (
	"github.com/spider-crawler/spider/internal/handler"
	"github.com/spider-crawler/spider/internal/parser"
)

// demoProject is the single built-in project cmd/spider runs. pyspider
// loads a project's handler script dynamically at runtime; Go has no
// equivalent for arbitrary untrusted user code without reaching for
// something like the plugin package (fragile, platform-limited, and
// out of scope here), so this fixed handler demonstrates the pipeline
// end to end instead of a script loader.
type demoProject struct {
	*handler.Harness
}

func newDemoProject() *demoProject {
	d := &demoProject{Harness: handler.NewHarness("demo")}
	d.RegisterCronjob("report_min_tick", 1, 0, func(tick int64) {
		d.Crawl("data:,on_get_info", handler.WithSave([]interface{}{"min_tick"}))
	})
	return d
}

// Call is the default callback: it follows every link on the page not
// marked rel="nofollow" and reports how many links it found in total.
func (d *demoProject) Call(resp *handler.Response) interface{} {
	links, err := parser.ExtractLinks(resp.URL, resp.Content)
	if err != nil {
		return map[string]interface{}{"url": resp.URL, "status": resp.StatusCode, "error": err.Error()}
	}
	for _, l := range links {
		if l.NoFollow {
			continue
		}
		d.Crawl(l.URL, handler.WithCallback("Call"))
	}
	return map[string]interface{}{"url": resp.URL, "status": resp.StatusCode, "links": len(links)}
}

package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/spider-crawler/spider/internal/crawltask"
)

// renderFetch implements the JS/phantomjs render-fetch branch (§4.2):
// POST the fetch descriptor as JSON to the configured render proxy and
// parse the JSON reply as a FetchResult. With no proxy configured, it
// synthesizes a 501 without attempting any network call (§7).
func (f *Fetcher) renderFetch(ctx context.Context, task *crawltask.Task) *FetchResult {
	if f.renderURL == "" {
		var save interface{}
		if task.Fetch != nil {
			save = task.Fetch.Save
		}
		return &FetchResult{
			StatusCode: 501,
			OrigURL:    task.URL,
			URL:        task.URL,
			Headers:    map[string]string{},
			Cookies:    map[string]string{},
			Save:       save,
			Error:      "phantomjs is not enabled.",
		}
	}

	fetchCfg := task.Fetch
	if fetchCfg == nil {
		fetchCfg = &crawltask.Fetch{}
	}
	body, err := json.Marshal(&crawltask.FetchDescriptor{URL: task.URL, Fetch: fetchCfg})
	if err != nil {
		return f.renderError(task, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.renderURL, bytes.NewReader(body))
	if err != nil {
		return f.renderError(task, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return f.renderError(task, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return f.renderError(task, err)
	}

	var result FetchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Render backend protocol: any non-JSON body -> 599 (§6).
		return &FetchResult{
			StatusCode: 599,
			OrigURL:    task.URL,
			URL:        task.URL,
			Headers:    map[string]string{},
			Cookies:    map[string]string{},
			Error:      "render backend returned a non-JSON body: " + err.Error(),
		}
	}
	if result.Headers == nil {
		result.Headers = map[string]string{}
	}
	if result.Cookies == nil {
		result.Cookies = map[string]string{}
	}
	return &result
}

func (f *Fetcher) renderError(task *crawltask.Task, err error) *FetchResult {
	return &FetchResult{
		StatusCode: 599,
		OrigURL:    task.URL,
		URL:        task.URL,
		Headers:    map[string]string{},
		Cookies:    map[string]string{},
		Time:       0,
		Error:      err.Error(),
	}
}

package fetcher

import (
	"github.com/spider-crawler/spider/internal/crawltask"
	"github.com/spider-crawler/spider/internal/dataurl"
)

// dataFetch decodes a "data:" URL and synthesizes a result immediately,
// with no network round trip (§4.2 data-fetch branch).
func (f *Fetcher) dataFetch(task *crawltask.Task) *FetchResult {
	decoded, err := dataurl.Decode(task.URL)
	if err != nil {
		return &FetchResult{
			StatusCode: 599,
			OrigURL:    task.URL,
			URL:        task.URL,
			Headers:    map[string]string{},
			Cookies:    map[string]string{},
			Error:      err.Error(),
		}
	}

	var save interface{}
	if task.Fetch != nil {
		save = task.Fetch.Save
	}

	return &FetchResult{
		StatusCode: 200,
		OrigURL:    task.URL,
		URL:        task.URL,
		Headers:    map[string]string{},
		Content:    decoded.Data,
		Cookies:    map[string]string{},
		Time:       0,
		Save:       save,
	}
}

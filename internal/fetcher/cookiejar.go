package fetcher

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// newCookieSession builds a per-request cookie jar backed by a
// public-suffix-aware eTLD+1 list, grounded on pyspider's
// cookie_utils.CookieSession and seeded from task.fetch.cookies.
func newCookieSession(target *url.URL, seed map[string]string) (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	if len(seed) == 0 {
		return jar, nil
	}
	cookies := make([]*http.Cookie, 0, len(seed))
	for name, value := range seed {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	jar.SetCookies(target, cookies)
	return jar, nil
}

// cookiesToDict serializes every cookie the jar holds for target into a
// flat map, mirroring pyspider's session.to_dict().
func cookiesToDict(jar *cookiejar.Jar, target *url.URL) map[string]string {
	out := make(map[string]string)
	for _, c := range jar.Cookies(target) {
		out[c.Name] = c.Value
	}
	return out
}

// Package parser extracts anchor links from an HTML document, for
// project handlers that want to follow every link on an index page
// instead of hand-rolling their own HTML walk.
package parser

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Link is one <a href> found on a page, resolved against its base URL.
type Link struct {
	URL      string
	Text     string
	Rel      string
	NoFollow bool
}

// ExtractLinks walks content as HTML and returns every <a href> link,
// resolved against baseURL. javascript:, mailto:, tel: and bare
// fragment hrefs are skipped, matching what a crawl handler would want
// to follow.
func ExtractLinks(baseURL string, content []byte) ([]Link, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link, ok := parseAnchor(base, n); ok {
				links = append(links, link)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links, nil
}

func parseAnchor(base *url.URL, n *html.Node) (Link, bool) {
	href := getAttr(n, "href")
	if href == "" || strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "#") {
		return Link{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Link{}, false
	}

	rel := strings.ToLower(getAttr(n, "rel"))
	return Link{
		URL:      base.ResolveReference(ref).String(),
		Text:     strings.TrimSpace(textContent(n)),
		Rel:      rel,
		NoFollow: strings.Contains(rel, "nofollow"),
	}, true
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf bytes.Buffer
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return buf.String()
}

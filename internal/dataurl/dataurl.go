// Package dataurl decodes RFC 2397 "data:" URLs for the fetcher's
// data-fetch branch.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Result is a decoded data URL.
type Result struct {
	MediaType string
	Data      []byte
}

// Decode parses a "data:[<mediatype>][;base64],<data>" URL.
func Decode(raw string) (*Result, error) {
	if !strings.HasPrefix(raw, "data:") {
		return nil, fmt.Errorf("dataurl: not a data URL")
	}
	rest := raw[len("data:"):]

	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, fmt.Errorf("dataurl: missing comma separator")
	}
	meta := rest[:comma]
	payload := rest[comma+1:]

	isBase64 := false
	mediaType := "text/plain;charset=US-ASCII"
	if meta != "" {
		parts := strings.Split(meta, ";")
		if strings.EqualFold(parts[len(parts)-1], "base64") {
			isBase64 = true
			parts = parts[:len(parts)-1]
		}
		if len(parts) > 0 && strings.Join(parts, ";") != "" {
			mediaType = strings.Join(parts, ";")
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("dataurl: base64 decode: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.QueryUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("dataurl: percent decode: %w", err)
		}
		data = []byte(unescaped)
	}

	return &Result{MediaType: mediaType, Data: data}, nil
}

package handlers

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"
)

// HTTPFetcher loads input assets from an HTTP root instead of the local file
// system. Groups whose name starts with http:// or https:// route here when
// composed into FileSettings.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher returns a fetcher with sane batch-job defaults: a generous
// timeout and a couple of retries for flaky mirrors.
func NewHTTPFetcher() *HTTPFetcher {
	client := resty.New().
		SetTimeout(2 * time.Minute).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	return &HTTPFetcher{client: client}
}

// Fetch downloads group/file and decodes it by extension: .json into a gabs
// container, .csv/.tsv into a Table, anything else into the raw string.
func (f *HTTPFetcher) Fetch(group, file string) (any, error) {
	url := strings.TrimSuffix(group, "/") + "/" + file

	resp, err := f.client.R().Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetching %s: status %s", url, resp.Status())
	}

	body := resp.Body()
	switch strings.ToLower(path.Ext(file)) {
	case ".json":
		c, err := gabs.ParseJSON(body)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", url, err)
		}
		return c, nil
	case ".csv":
		return ReadTable(bytes.NewReader(body), ',')
	case ".tsv", ".txt":
		return ReadTable(bytes.NewReader(body), '\t')
	default:
		return string(body), nil
	}
}

// Exists probes group/file with a HEAD request. This backs the existence
// gate for remote assets.
func (f *HTTPFetcher) Exists(group, file string) bool {
	url := strings.TrimSuffix(group, "/") + "/" + file
	resp, err := f.client.R().Head(url)
	return err == nil && resp.IsSuccess()
}

// isRemoteGroup reports whether a manifest group names an HTTP root.
func isRemoteGroup(group string) bool {
	return strings.HasPrefix(group, "http://") || strings.HasPrefix(group, "https://")
}

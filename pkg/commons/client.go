package commons

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"anitgo/pkg/request"
)

// thumbWidth is the width requested for gallery thumbnails.
const thumbWidth = 640

// imageInfoBatch is the MediaWiki API limit on titles per request.
const imageInfoBatch = 50

// Client talks to the Wikimedia Commons action API for category
// listings and per-file metadata.
type Client struct {
	request  *request.Client
	Endpoint string
	PageSize int
	logger   *slog.Logger
}

// ImageInfo is the metadata we keep for one Commons file.
type ImageInfo struct {
	Filename     string
	URL          string
	ThumbURL     string
	Photographer string
	License      string
}

// New creates a Commons API client.
func New(r *request.Client, endpoint string, pageSize int, logger *slog.Logger) *Client {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Client{
		request:  r,
		Endpoint: endpoint,
		PageSize: pageSize,
		logger:   logger,
	}
}

// ListCategoryImages returns the file titles in a category, following
// API continuation until the listing is exhausted.
func (c *Client) ListCategoryImages(ctx context.Context, category string) ([]string, error) {
	if !strings.HasPrefix(category, "Category:") {
		category = "Category:" + category
	}

	var titles []string
	cont := ""
	for {
		q := url.Values{}
		q.Set("action", "query")
		q.Set("list", "categorymembers")
		q.Set("cmtitle", category)
		q.Set("cmtype", "file")
		q.Set("cmlimit", fmt.Sprintf("%d", c.PageSize))
		q.Set("format", "json")
		if cont != "" {
			q.Set("cmcontinue", cont)
		}

		body, err := c.request.Get(ctx, c.Endpoint+"?"+q.Encode())
		if err != nil {
			return nil, fmt.Errorf("list category %q: %w", category, err)
		}

		var resp struct {
			Continue struct {
				CMContinue string `json:"cmcontinue"`
			} `json:"continue"`
			Query struct {
				CategoryMembers []struct {
					Title string `json:"title"`
				} `json:"categorymembers"`
			} `json:"query"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode category listing: %w", err)
		}

		for _, m := range resp.Query.CategoryMembers {
			titles = append(titles, m.Title)
		}

		if resp.Continue.CMContinue == "" {
			return titles, nil
		}
		cont = resp.Continue.CMContinue
	}
}

// GetImageInfo fetches URL, thumbnail and attribution metadata for a
// set of file titles, batching to the API limit.
func (c *Client) GetImageInfo(ctx context.Context, titles []string) (map[string]ImageInfo, error) {
	out := make(map[string]ImageInfo, len(titles))

	for start := 0; start < len(titles); start += imageInfoBatch {
		end := start + imageInfoBatch
		if end > len(titles) {
			end = len(titles)
		}
		if err := c.fetchBatch(ctx, titles[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, titles []string, out map[string]ImageInfo) error {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("titles", strings.Join(titles, "|"))
	q.Set("prop", "imageinfo")
	q.Set("iiprop", "url|extmetadata")
	q.Set("iiurlwidth", fmt.Sprintf("%d", thumbWidth))
	q.Set("format", "json")

	body, err := c.request.Get(ctx, c.Endpoint+"?"+q.Encode())
	if err != nil {
		return fmt.Errorf("fetch imageinfo: %w", err)
	}

	var resp struct {
		Query struct {
			Pages map[string]struct {
				Title     string `json:"title"`
				ImageInfo []struct {
					URL         string `json:"url"`
					ThumbURL    string `json:"thumburl"`
					ExtMetadata map[string]struct {
						Value string `json:"value"`
					} `json:"extmetadata"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode imageinfo: %w", err)
	}

	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) == 0 {
			continue
		}
		ii := page.ImageInfo[0]
		info := ImageInfo{
			Filename: page.Title,
			URL:      ii.URL,
			ThumbURL: ii.ThumbURL,
		}
		if m, ok := ii.ExtMetadata["Artist"]; ok {
			info.Photographer = stripTags(m.Value)
		}
		if m, ok := ii.ExtMetadata["LicenseShortName"]; ok {
			info.License = m.Value
		}
		out[page.Title] = info
	}
	return nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags flattens the HTML markup Commons embeds in attribution
// fields down to plain text.
func stripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

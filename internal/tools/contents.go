package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hession/exatool/internal/exa"
)

const (
	ContentsToolName = "exa_contents"

	defaultLivecrawl   = "never"
	defaultSubpages    = 1
	defaultReturnLinks = 1
	maxSubpages        = 10
	maxReturnLinks     = 100
)

var livecrawlOptions = []string{"never", "fallback", "always", "auto"}

// ContentsParams are the validated parameters of exa_contents.
type ContentsParams struct {
	URLs             []string
	Livecrawl        *string
	FullPageText     *bool
	AIPageSummary    *bool
	NumberOfSubpages *int
	ReturnLinks      *int
}

// NewContentsTool creates the exa_contents tool.
func NewContentsTool(up Upstream) Tool {
	minSub, maxSub := intRange(0, maxSubpages)
	minLinks, maxLinks := intRange(0, maxReturnLinks)
	return &descriptor[ContentsParams, *exa.ContentsRequest]{
		name:        ContentsToolName,
		description: "Fetch the contents of web pages with Exa. Accepts several URLs and returns one entry per URL in the order given.",
		params: []ParameterDef{
			{Name: "urls", Type: "string", Description: "Comma-separated URLs, or a JSON array of URLs", Required: true},
			{Name: "livecrawl", Type: "string", Description: "When to crawl the live page instead of the cache", Enum: livecrawlOptions, Default: defaultLivecrawl},
			{Name: "full_page_text", Type: "boolean", Description: "Include the full page text", Default: false},
			{Name: "ai_page_summary", Type: "boolean", Description: "Include an AI-generated summary of each page", Default: false},
			{Name: "number_of_subpages", Type: "integer", Description: "Number of linked subpages to crawl", Default: defaultSubpages, Minimum: minSub, Maximum: maxSub},
			{Name: "return_links", Type: "integer", Description: "Number of links to return per page", Default: defaultReturnLinks, Minimum: minLinks, Maximum: maxLinks},
		},
		upstream: up,
		validate: validateContents,
		build:    buildContents,
		call: func(ctx context.Context, up Upstream, req *exa.ContentsRequest) (json.RawMessage, error) {
			return up.Contents(ctx, req)
		},
		normalize: normalizeContents,
	}
}

func validateContents(args Args) (ContentsParams, error) {
	c := check(args)
	p := ContentsParams{
		URLs:             c.requiredList("urls"),
		Livecrawl:        c.optionalEnum("livecrawl", livecrawlOptions),
		FullPageText:     c.optionalBool("full_page_text"),
		AIPageSummary:    c.optionalBool("ai_page_summary"),
		NumberOfSubpages: c.optionalInt("number_of_subpages", 0, maxSubpages),
		ReturnLinks:      c.optionalInt("return_links", 0, maxReturnLinks),
	}
	return p, c.Err()
}

func buildContents(p ContentsParams) *exa.ContentsRequest {
	ids := make([]string, 0, len(p.URLs))
	for _, url := range p.URLs {
		ids = append(ids, withScheme(url))
	}
	req := &exa.ContentsRequest{
		IDs:       ids,
		Livecrawl: stringOr(p.Livecrawl, defaultLivecrawl),
		Text:      boolOr(p.FullPageText, false),
		Summary:   boolOr(p.AIPageSummary, false),
		Subpages:  intOr(p.NumberOfSubpages, defaultSubpages),
	}
	if links := intOr(p.ReturnLinks, defaultReturnLinks); links > 0 {
		req.Extras = &exa.Extras{Links: links}
	}
	return req
}

// normalizeContents emits one item per requested URL, in request order,
// under the URL as the caller wrote it. The service has returned results
// both as an array and as an object keyed by URL; array entries are matched
// by url first, then by id, trying each form in lookupKeys.
func normalizeContents(p ContentsParams, raw json.RawMessage) (*Result, error) {
	var resp exa.ContentsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &NormalizationError{Tool: ContentsToolName, Message: "body is not a JSON object", Err: err}
	}

	results := bytes.TrimSpace(resp.Results)
	if len(results) == 0 || bytes.Equal(results, []byte("null")) {
		return nil, &NormalizationError{Tool: ContentsToolName, Field: "results", Message: "missing"}
	}

	byURL := make(map[string]exa.Document)
	byID := make(map[string]exa.Document)
	switch results[0] {
	case '[':
		var docs []exa.Document
		if err := json.Unmarshal(results, &docs); err != nil {
			return nil, &NormalizationError{Tool: ContentsToolName, Field: "results", Message: "malformed array", Err: err}
		}
		for _, doc := range docs {
			if doc.URL != nil && *doc.URL != "" {
				if _, seen := byURL[*doc.URL]; !seen {
					byURL[*doc.URL] = doc
				}
			}
			if doc.ID != "" {
				if _, seen := byID[doc.ID]; !seen {
					byID[doc.ID] = doc
				}
			}
		}
	case '{':
		var keyed map[string]exa.Document
		if err := json.Unmarshal(results, &keyed); err != nil {
			return nil, &NormalizationError{Tool: ContentsToolName, Field: "results", Message: "malformed object", Err: err}
		}
		for url, doc := range keyed {
			byURL[url] = doc
		}
	default:
		return nil, &NormalizationError{Tool: ContentsToolName, Field: "results", Message: "must be an array or an object"}
	}

	statuses := make(map[string]exa.ContentStatus, len(resp.Statuses))
	for _, st := range resp.Statuses {
		statuses[st.ID] = st
	}

	items := make([]ResultItem, 0, len(p.URLs))
	for _, url := range p.URLs {
		keys := lookupKeys(url)
		doc, ok := find(byURL, keys)
		if !ok {
			doc, ok = find(byID, keys)
		}
		if !ok {
			msg := missingContentMessage(statuses, keys)
			items = append(items, ResultItem{URL: url, Error: &msg})
			continue
		}
		item := itemFromDocument(doc)
		item.URL = url
		items = append(items, item)
	}

	return &Result{
		Tool:      ContentsToolName,
		RequestID: resp.RequestID,
		Items:     items,
	}, nil
}

// withScheme prefixes https:// to a URL given without a scheme.
func withScheme(url string) string {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return url
	}
	return "https://" + url
}

// lookupKeys lists the forms under which the service may echo a requested
// URL: as sent by the caller, with the scheme added, and with or without a
// trailing slash.
func lookupKeys(url string) []string {
	canonical := withScheme(url)
	keys := []string{url}
	if canonical != url {
		keys = append(keys, canonical)
	}
	if strings.HasSuffix(canonical, "/") {
		return append(keys, strings.TrimSuffix(canonical, "/"))
	}
	return append(keys, canonical+"/")
}

func find[V any](m map[string]V, keys []string) (V, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func missingContentMessage(statuses map[string]exa.ContentStatus, keys []string) string {
	st, ok := find(statuses, keys)
	if !ok {
		return "no content returned"
	}
	if st.Error != nil {
		if st.Error.HTTPStatusCode != 0 {
			return fmt.Sprintf("%s (HTTP %d)", st.Error.Tag, st.Error.HTTPStatusCode)
		}
		if st.Error.Tag != "" {
			return st.Error.Tag
		}
	}
	if st.Status != "" && st.Status != "success" {
		return st.Status
	}
	return "no content returned"
}

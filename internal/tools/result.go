package tools

import (
	"encoding/json"
	"strings"

	"github.com/hession/exatool/internal/exa"
)

// Result is the normalized output of one tool invocation. Absent optional
// data stays nil so it is omitted from JSON, while present-but-empty values
// are still emitted.
type Result struct {
	Tool             string       `json:"tool"`
	RequestID        string       `json:"request_id,omitempty"`
	AutopromptString *string      `json:"autoprompt_string,omitempty"`
	Items            []ResultItem `json:"results,omitzero"`
	Answer           *Answer      `json:"answer,omitempty"`
}

// ResultItem is one page.
type ResultItem struct {
	URL           string       `json:"url"`
	ID            string       `json:"id,omitempty"`
	Title         *string      `json:"title,omitempty"`
	Text          *string      `json:"text,omitempty"`
	Highlights    []string     `json:"highlights,omitzero"`
	Summary       *string      `json:"summary,omitempty"`
	PublishedDate *string      `json:"published_date,omitempty"`
	Author        *string      `json:"author,omitempty"`
	Score         *float64     `json:"score,omitempty"`
	Image         *string      `json:"image,omitempty"`
	Links         []Link       `json:"links,omitzero"`
	Subpages      []ResultItem `json:"subpages,omitzero"`
	Error         *string      `json:"error,omitempty"`
}

// Link is an outbound link found on a page.
type Link struct {
	URL   string  `json:"url"`
	Title *string `json:"title,omitempty"`
}

// Answer is the output of exa_answer.
type Answer struct {
	Text      string       `json:"text"`
	Citations []ResultItem `json:"citations"`
}

// itemFromDocument maps a service document onto a ResultItem. The caller
// decides whether a missing URL is acceptable.
func itemFromDocument(doc exa.Document) ResultItem {
	item := ResultItem{
		ID:            doc.ID,
		Title:         doc.Title,
		Text:          doc.Text,
		Highlights:    doc.Highlights,
		Summary:       doc.Summary,
		PublishedDate: doc.PublishedDate,
		Author:        doc.Author,
		Score:         doc.Score,
		Image:         doc.Image,
	}
	if doc.URL != nil {
		item.URL = *doc.URL
	}

	raw := doc.Links
	if len(raw) == 0 && doc.Extras != nil {
		raw = doc.Extras.Links
	}
	item.Links = parseLinks(raw)

	if doc.Subpages != nil {
		item.Subpages = make([]ResultItem, 0, len(doc.Subpages))
		for _, sub := range doc.Subpages {
			item.Subpages = append(item.Subpages, itemFromDocument(sub))
		}
	}
	return item
}

// parseLinks accepts links as plain URL strings or as {url, title} objects.
// Entries it cannot read are skipped.
func parseLinks(raw json.RawMessage) []Link {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	links := make([]Link, 0, len(entries))
	for _, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				links = append(links, Link{URL: s})
			}
			continue
		}
		var obj struct {
			URL   string  `json:"url"`
			Title *string `json:"title"`
		}
		if err := json.Unmarshal(entry, &obj); err == nil && obj.URL != "" {
			links = append(links, Link{URL: obj.URL, Title: obj.Title})
		}
	}
	return links
}

package tools

import (
	"context"
	"encoding/json"

	"github.com/hession/exatool/internal/exa"
)

const (
	SearchToolName = "exa_search"

	defaultNumResults = 10
	maxNumResults     = 100
	maxPhraseWords    = 5
)

var (
	searchTypes = []string{"neural", "keyword", "auto"}
	categories  = []string{
		"company",
		"research paper",
		"news",
		"pdf",
		"github",
		"tweet",
		"personal site",
		"linkedin profile",
		"financial report",
	}
)

// SearchParams are the validated parameters of exa_search. Nil means the
// caller left the field out.
type SearchParams struct {
	Query              string
	SearchType         *string
	NumResults         *int
	IncludeDomains     []string
	ExcludeDomains     []string
	StartPublishedDate *string
	EndPublishedDate   *string
	UseAutoprompt      *bool
	TextContents       *bool
	HighlightResults   *bool
	Category           *string
	IncludeText        *string
	ExcludeText        *string
}

// NewSearchTool creates the exa_search tool.
func NewSearchTool(up Upstream) Tool {
	minN, maxN := intRange(1, maxNumResults)
	return &descriptor[SearchParams, *exa.SearchRequest]{
		name:        SearchToolName,
		description: "Search the web with Exa. Neural search understands the meaning of the query; keyword search matches terms. Returns ranked pages with optional text and highlights.",
		params: []ParameterDef{
			{Name: "query", Type: "string", Description: "The search query", Required: true},
			{Name: "search_type", Type: "string", Description: "neural, keyword or auto", Enum: searchTypes, Default: "neural"},
			{Name: "num_results", Type: "integer", Description: "Maximum number of results", Default: defaultNumResults, Minimum: minN, Maximum: maxN},
			{Name: "include_domains", Type: "string", Description: "Comma-separated domains to restrict results to"},
			{Name: "exclude_domains", Type: "string", Description: "Comma-separated domains to leave out"},
			{Name: "start_published_date", Type: "string", Description: "Only pages published on or after this date (YYYY-MM-DD)"},
			{Name: "end_published_date", Type: "string", Description: "Only pages published on or before this date (YYYY-MM-DD)"},
			{Name: "use_autoprompt", Type: "boolean", Description: "Let Exa rewrite the query for better results", Default: true},
			{Name: "text_contents", Type: "boolean", Description: "Include the full text of each result", Default: false},
			{Name: "highlight_results", Type: "boolean", Description: "Include relevant snippets from each result", Default: false},
			{Name: "category", Type: "string", Description: "Restrict results to one kind of page", Enum: categories},
			{Name: "includeText", Type: "string", Description: "Text that must appear in results (up to 5 words)"},
			{Name: "excludeText", Type: "string", Description: "Text that must not appear in results (up to 5 words)"},
		},
		upstream:  up,
		validate:  validateSearch,
		build:     buildSearch,
		call:      func(ctx context.Context, up Upstream, req *exa.SearchRequest) (json.RawMessage, error) { return up.Search(ctx, req) },
		normalize: func(_ SearchParams, raw json.RawMessage) (*Result, error) { return normalizeResults(SearchToolName, raw) },
	}
}

func validateSearch(args Args) (SearchParams, error) {
	c := check(args)
	p := SearchParams{
		Query:              c.requiredString("query"),
		SearchType:         c.optionalEnum("search_type", searchTypes),
		NumResults:         c.optionalInt("num_results", 1, maxNumResults),
		IncludeDomains:     c.optionalList("include_domains"),
		ExcludeDomains:     c.optionalList("exclude_domains"),
		StartPublishedDate: c.optionalDate("start_published_date"),
		EndPublishedDate:   c.optionalDate("end_published_date"),
		UseAutoprompt:      c.optionalBool("use_autoprompt"),
		TextContents:       c.optionalBool("text_contents"),
		HighlightResults:   c.optionalBool("highlight_results"),
		Category:           c.optionalEnum("category", categories),
		IncludeText:        c.optionalPhrase("includeText", maxPhraseWords),
		ExcludeText:        c.optionalPhrase("excludeText", maxPhraseWords),
	}
	return p, c.Err()
}

func buildSearch(p SearchParams) *exa.SearchRequest {
	req := &exa.SearchRequest{
		Query:              p.Query,
		NumResults:         intOr(p.NumResults, defaultNumResults),
		UseAutoprompt:      boolOr(p.UseAutoprompt, true),
		IncludeDomains:     p.IncludeDomains,
		ExcludeDomains:     p.ExcludeDomains,
		StartPublishedDate: stringOr(p.StartPublishedDate, ""),
		EndPublishedDate:   stringOr(p.EndPublishedDate, ""),
		Category:           stringOr(p.Category, ""),
	}
	// auto is expressed by leaving the type out.
	if t := stringOr(p.SearchType, "neural"); t != "auto" {
		req.Type = t
	}
	if p.IncludeText != nil {
		req.IncludeText = []string{*p.IncludeText}
	}
	if p.ExcludeText != nil {
		req.ExcludeText = []string{*p.ExcludeText}
	}
	text, highlights := boolOr(p.TextContents, false), boolOr(p.HighlightResults, false)
	if text || highlights {
		req.Contents = &exa.ContentsOptions{Text: text, Highlights: highlights}
	}
	return req
}

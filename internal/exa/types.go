package exa

import "encoding/json"

// Endpoint paths, relative to the base URL.
const (
	EndpointSearch      = "/search"
	EndpointAnswer      = "/answer"
	EndpointFindSimilar = "/findSimilar"
	EndpointContents    = "/contents"
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query              string           `json:"query"`
	NumResults         int              `json:"numResults"`
	UseAutoprompt      bool             `json:"useAutoprompt"`
	Type               string           `json:"type,omitempty"` // empty lets the service pick
	IncludeDomains     []string         `json:"includeDomains,omitempty"`
	ExcludeDomains     []string         `json:"excludeDomains,omitempty"`
	StartPublishedDate string           `json:"startPublishedDate,omitempty"`
	EndPublishedDate   string           `json:"endPublishedDate,omitempty"`
	Category           string           `json:"category,omitempty"`
	IncludeText        []string         `json:"includeText,omitempty"`
	ExcludeText        []string         `json:"excludeText,omitempty"`
	Contents           *ContentsOptions `json:"contents,omitempty"`
}

// ContentsOptions asks search-style endpoints to attach page content.
type ContentsOptions struct {
	Text       bool `json:"text,omitempty"`
	Highlights bool `json:"highlights,omitempty"`
}

// AnswerRequest is the body of POST /answer.
type AnswerRequest struct {
	Query string `json:"query"`
	Text  bool   `json:"text"`
	Model string `json:"model,omitempty"` // omitted for the default model
}

// FindSimilarRequest is the body of POST /findSimilar.
type FindSimilarRequest struct {
	URL        string           `json:"url"`
	NumResults int              `json:"numResults"`
	Contents   *ContentsOptions `json:"contents,omitempty"`
}

// ContentsRequest is the body of POST /contents.
type ContentsRequest struct {
	IDs       []string `json:"ids"`
	Livecrawl string   `json:"livecrawl"`
	Text      bool     `json:"text,omitempty"`
	Summary   bool     `json:"summary,omitempty"`
	Subpages  int      `json:"subpages,omitempty"`
	Extras    *Extras  `json:"extras,omitempty"`
}

// Extras requests additional per-page data.
type Extras struct {
	Links int `json:"links"`
}

// Document is one page as the service describes it in any response.
// Pointer and slice fields stay nil when the service omitted them.
type Document struct {
	ID            string          `json:"id"`
	URL           *string         `json:"url"`
	Title         *string         `json:"title"`
	PublishedDate *string         `json:"publishedDate"`
	Author        *string         `json:"author"`
	Score         *float64        `json:"score"`
	Text          *string         `json:"text"`
	Highlights    []string        `json:"highlights"`
	Summary       *string         `json:"summary"`
	Image         *string         `json:"image"`
	Subpages      []Document      `json:"subpages"`
	Links         json.RawMessage `json:"links"`
	Extras        *struct {
		Links json.RawMessage `json:"links"`
	} `json:"extras"`
}

// SearchResponse is returned by /search and /findSimilar.
type SearchResponse struct {
	RequestID        string     `json:"requestId"`
	AutopromptString *string    `json:"autopromptString"`
	Results          []Document `json:"results"`
}

// AnswerResponse is returned by /answer. Older deployments name the
// citation list "sources".
type AnswerResponse struct {
	RequestID string     `json:"requestId"`
	Answer    *string    `json:"answer"`
	Citations []Document `json:"citations"`
	Sources   []Document `json:"sources"`
}

// ContentsResponse is returned by /contents. Results is kept raw because the
// service has shipped it both as an array and as an object keyed by URL.
type ContentsResponse struct {
	RequestID string          `json:"requestId"`
	Results   json.RawMessage `json:"results"`
	Statuses  []ContentStatus `json:"statuses"`
}

// ContentStatus reports the per-URL outcome of a contents request.
type ContentStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Tag            string `json:"tag"`
		HTTPStatusCode int    `json:"httpStatusCode"`
	} `json:"error"`
}

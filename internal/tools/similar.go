package tools

import (
	"context"
	"encoding/json"

	"github.com/hession/exatool/internal/exa"
)

const SimilarToolName = "exa_similar"

// SimilarParams are the validated parameters of exa_similar.
type SimilarParams struct {
	URL        string
	NumResults *int
	Text       *bool
}

// NewSimilarTool creates the exa_similar tool.
func NewSimilarTool(up Upstream) Tool {
	minN, maxN := intRange(1, maxNumResults)
	return &descriptor[SimilarParams, *exa.FindSimilarRequest]{
		name:        SimilarToolName,
		description: "Find pages similar to a given URL with Exa.",
		params: []ParameterDef{
			{Name: "url", Type: "string", Description: "The page to find similar pages for", Required: true},
			{Name: "num_results", Type: "integer", Description: "Maximum number of results", Default: defaultNumResults, Minimum: minN, Maximum: maxN},
			{Name: "text", Type: "boolean", Description: "Include the full text of each result", Default: false},
		},
		upstream: up,
		validate: validateSimilar,
		build:    buildSimilar,
		call: func(ctx context.Context, up Upstream, req *exa.FindSimilarRequest) (json.RawMessage, error) {
			return up.FindSimilar(ctx, req)
		},
		normalize: func(_ SimilarParams, raw json.RawMessage) (*Result, error) { return normalizeResults(SimilarToolName, raw) },
	}
}

func validateSimilar(args Args) (SimilarParams, error) {
	c := check(args)
	p := SimilarParams{
		URL:        c.requiredString("url"),
		NumResults: c.optionalInt("num_results", 1, maxNumResults),
		Text:       c.optionalBool("text"),
	}
	return p, c.Err()
}

func buildSimilar(p SimilarParams) *exa.FindSimilarRequest {
	req := &exa.FindSimilarRequest{
		URL:        p.URL,
		NumResults: intOr(p.NumResults, defaultNumResults),
	}
	if boolOr(p.Text, false) {
		req.Contents = &exa.ContentsOptions{Text: true}
	}
	return req
}

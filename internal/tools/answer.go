package tools

import (
	"context"
	"encoding/json"

	"github.com/hession/exatool/internal/exa"
)

const (
	AnswerToolName = "exa_answer"

	defaultAnswerModel = "exa"
)

var answerModels = []string{"exa", "exa-pro"}

// AnswerParams are the validated parameters of exa_answer.
type AnswerParams struct {
	Query string
	Text  *bool
	Model *string
}

// NewAnswerTool creates the exa_answer tool.
func NewAnswerTool(up Upstream) Tool {
	return &descriptor[AnswerParams, *exa.AnswerRequest]{
		name:        AnswerToolName,
		description: "Answer a question with Exa. Returns a generated answer together with the pages it cites.",
		params: []ParameterDef{
			{Name: "query", Type: "string", Description: "The question to answer", Required: true},
			{Name: "text", Type: "boolean", Description: "Include the full text of cited pages", Default: false},
			{Name: "model", Type: "string", Description: "exa or exa-pro", Enum: answerModels, Default: defaultAnswerModel},
		},
		upstream:  up,
		validate:  validateAnswer,
		build:     buildAnswer,
		call:      func(ctx context.Context, up Upstream, req *exa.AnswerRequest) (json.RawMessage, error) { return up.Answer(ctx, req) },
		normalize: normalizeAnswer,
	}
}

func validateAnswer(args Args) (AnswerParams, error) {
	c := check(args)
	p := AnswerParams{
		Query: c.requiredString("query"),
		Text:  c.optionalBool("text"),
		Model: c.optionalEnum("model", answerModels),
	}
	return p, c.Err()
}

func buildAnswer(p AnswerParams) *exa.AnswerRequest {
	req := &exa.AnswerRequest{
		Query: p.Query,
		Text:  boolOr(p.Text, false),
	}
	if m := stringOr(p.Model, defaultAnswerModel); m != defaultAnswerModel {
		req.Model = m
	}
	return req
}

func normalizeAnswer(_ AnswerParams, raw json.RawMessage) (*Result, error) {
	var resp exa.AnswerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &NormalizationError{Tool: AnswerToolName, Message: "body is not a JSON object", Err: err}
	}
	if resp.Answer == nil {
		return nil, &NormalizationError{Tool: AnswerToolName, Field: "answer", Message: "missing"}
	}

	docs := resp.Citations
	if docs == nil {
		docs = resp.Sources
	}
	citations := make([]ResultItem, 0, len(docs))
	for _, doc := range docs {
		citations = append(citations, itemFromDocument(doc))
	}

	return &Result{
		Tool:      AnswerToolName,
		RequestID: resp.RequestID,
		Answer:    &Answer{Text: *resp.Answer, Citations: citations},
	}, nil
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hession/exatool/internal/exa"
)

// Upstream is the search service as the tools see it. *exa.Client
// implements it.
type Upstream interface {
	Search(ctx context.Context, req *exa.SearchRequest) (json.RawMessage, error)
	Answer(ctx context.Context, req *exa.AnswerRequest) (json.RawMessage, error)
	FindSimilar(ctx context.Context, req *exa.FindSimilarRequest) (json.RawMessage, error)
	Contents(ctx context.Context, req *exa.ContentsRequest) (json.RawMessage, error)
}

// Stage is a step of one invocation.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageBuilding
	StageCalling
	StageNormalizing
	StageSucceeded
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageValidating:
		return "validating"
	case StageBuilding:
		return "building"
	case StageCalling:
		return "calling"
	case StageNormalizing:
		return "normalizing"
	case StageSucceeded:
		return "succeeded"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailedStage reports which stage produced err. Building cannot fail, so
// unrecognized errors are attributed to the call.
func FailedStage(err error) Stage {
	var verr *ValidationError
	var nerr *NormalizationError
	var nf *ErrToolNotFound
	switch {
	case err == nil:
		return StageSucceeded
	case errors.As(err, &nf):
		return StageIdle
	case errors.As(err, &verr):
		return StageValidating
	case errors.As(err, &nerr):
		return StageNormalizing
	default:
		return StageCalling
	}
}

// descriptor wires the four stages of one tool. P is the validated
// parameter struct and Q the upstream payload.
type descriptor[P, Q any] struct {
	name        string
	description string
	params      []ParameterDef
	upstream    Upstream

	validate  func(Args) (P, error)
	build     func(P) Q
	call      func(context.Context, Upstream, Q) (json.RawMessage, error)
	normalize func(P, json.RawMessage) (*Result, error)
}

func (d *descriptor[P, Q]) Name() string {
	return d.name
}

func (d *descriptor[P, Q]) Description() string {
	return d.description
}

func (d *descriptor[P, Q]) Parameters() []ParameterDef {
	return d.params
}

// Execute runs validate, build, call and normalize in order. The first
// failure ends the invocation and nothing partial is returned.
func (d *descriptor[P, Q]) Execute(ctx context.Context, args Args) (*Result, error) {
	params, err := d.validate(args)
	if err != nil {
		return nil, err
	}

	payload := d.build(params)

	raw, err := d.call(ctx, d.upstream, payload)
	if err != nil {
		return nil, err
	}

	result, err := d.normalize(params, raw)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// normalizeResults handles the results list shared by search and similar.
func normalizeResults(tool string, raw json.RawMessage) (*Result, error) {
	var resp exa.SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &NormalizationError{Tool: tool, Message: "body is not a JSON object", Err: err}
	}
	if resp.Results == nil {
		return nil, &NormalizationError{Tool: tool, Field: "results", Message: "missing"}
	}

	items := make([]ResultItem, 0, len(resp.Results))
	for i, doc := range resp.Results {
		if doc.URL == nil || *doc.URL == "" {
			return nil, &NormalizationError{Tool: tool, Field: fmt.Sprintf("results[%d].url", i), Message: "missing"}
		}
		items = append(items, itemFromDocument(doc))
	}

	return &Result{
		Tool:             tool,
		RequestID:        resp.RequestID,
		AutopromptString: resp.AutopromptString,
		Items:            items,
	}, nil
}

package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hession/exatool/internal/exa"
	"github.com/hession/exatool/internal/logger"
)

// ToolRequest is one invocation as a host hands it over.
type ToolRequest struct {
	Name   string
	Params Args
}

// Invocation is the metadata kept about one finished dispatch. It never
// carries parameters or results.
type Invocation struct {
	ID        string
	Tool      string
	Status    string // "succeeded" | "failed"
	Stage     Stage  // last stage reached
	ErrorKind string
	ErrorCode string
	Duration  time.Duration
	Items     int
	StartedAt time.Time
}

// Recorder stores invocation metadata.
type Recorder interface {
	RecordInvocation(inv Invocation) error
}

// Registry tool registry
type Registry struct {
	tools        map[string]Tool
	order        []string
	descriptions map[string]string
	logger       *logger.Logger
	recorder     Recorder
	mu           sync.RWMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for dispatch logging. Without it the
// package default logger is used.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithRecorder records every dispatch in rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// NewRegistry creates a new tool registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:        make(map[string]Tool),
		descriptions: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register registers a tool
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already exists", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get gets a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// List lists all tools in registration order
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// SetDescriptions replaces tool descriptions shown to hosts. Names that are
// not registered and empty texts are ignored.
func (r *Registry) SetDescriptions(texts map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, text := range texts {
		if _, exists := r.tools[name]; exists && text != "" {
			r.descriptions[name] = text
		}
	}
}

// Description returns the description hosts should see for a tool.
func (r *Registry) Description(tool Tool) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if text, ok := r.descriptions[tool.Name()]; ok {
		return text
	}
	return tool.Description()
}

// Execute executes a tool by name
func (r *Registry) Execute(ctx context.Context, name string, args Args) (*Result, error) {
	return r.Dispatch(ctx, ToolRequest{Name: name, Params: args})
}

// Dispatch runs one invocation end to end. Every call is logged and, when a
// recorder is configured, recorded; recording failures are only logged.
func (r *Registry) Dispatch(ctx context.Context, req ToolRequest) (*Result, error) {
	inv := Invocation{
		ID:        uuid.New().String(),
		Tool:      req.Name,
		StartedAt: time.Now(),
	}
	log := r.log().With("invocation", inv.ID, "tool", req.Name)

	var result *Result
	tool, exists := r.Get(req.Name)
	err := error(&ErrToolNotFound{Name: req.Name})
	if exists {
		log.Debug("dispatching with %d params", len(req.Params))
		result, err = tool.Execute(ctx, req.Params)
	}

	inv.Duration = time.Since(inv.StartedAt)
	r.finish(log, &inv, result, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Registry) finish(log *logger.Entry, inv *Invocation, result *Result, err error) {
	if err == nil {
		inv.Status = "succeeded"
		inv.Stage = StageSucceeded
		inv.Items = countItems(result)
		log.Info("succeeded in %s with %d items", inv.Duration.Round(time.Millisecond), inv.Items)
	} else {
		outcome := Outcome(err)
		inv.Status = "failed"
		inv.Stage = FailedStage(err)
		inv.ErrorKind = outcome.Kind
		inv.ErrorCode = outcome.Code

		failed := log.With("stage", inv.Stage, "kind", outcome.Kind)
		var nerr *NormalizationError
		var terr *exa.TransportError
		switch {
		case errors.As(err, &nerr):
			failed.Error("upstream response violated its contract: %v", err)
		case errors.As(err, &terr) && terr.Kind == exa.ErrCanceled:
			failed.Info("canceled after %s", inv.Duration.Round(time.Millisecond))
		case errors.As(err, &terr):
			failed.Warn("failed after %s: %v", inv.Duration.Round(time.Millisecond), err)
		default:
			failed.Info("rejected: %v", err)
		}
	}

	if r.recorder == nil {
		return
	}
	if rerr := r.recorder.RecordInvocation(*inv); rerr != nil {
		log.Warn("failed to record invocation: %v", rerr)
	}
}

func (r *Registry) log() *logger.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logger.GetDefault()
}

func countItems(result *Result) int {
	if result == nil {
		return 0
	}
	if result.Answer != nil {
		return len(result.Answer.Citations)
	}
	return len(result.Items)
}

// ToolSchema tool schema (for Function Calling)
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema function schema
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Schemas returns the schema of every tool in registration order
func (r *Registry) Schemas() []ToolSchema {
	tools := r.List()
	schemas := make([]ToolSchema, 0, len(tools))
	for _, tool := range tools {
		schemas = append(schemas, ToolSchema{
			Type: "function",
			Function: FunctionSchema{
				Name:        tool.Name(),
				Description: r.Description(tool),
				Parameters:  InputSchema(tool),
			},
		})
	}
	return schemas
}

// InputSchema builds the JSON schema object describing a tool's parameters.
func InputSchema(tool Tool) map[string]any {
	return buildParameterSchema(tool.Parameters())
}

// buildParameterSchema builds parameter schema
func buildParameterSchema(params []ParameterDef) map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	for _, param := range params {
		prop := map[string]any{
			"type":        param.Type,
			"description": param.Description,
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		if param.Minimum != nil {
			prop["minimum"] = *param.Minimum
		}
		if param.Maximum != nil {
			prop["maximum"] = *param.Maximum
		}
		properties[param.Name] = prop

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// NewDefaultRegistry creates a registry holding the four Exa tools
func NewDefaultRegistry(up Upstream, opts ...Option) *Registry {
	registry := NewRegistry(opts...)

	tools := []Tool{
		NewSearchTool(up),
		NewAnswerTool(up),
		NewSimilarTool(up),
		NewContentsTool(up),
	}

	for _, tool := range tools {
		_ = registry.Register(tool) // names are distinct
	}

	return registry
}

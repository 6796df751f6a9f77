package tools

import "context"

// Tool tool interface
type Tool interface {
	Name() string                                            // Tool name
	Description() string                                     // Tool description (for hosts)
	Parameters() []ParameterDef                              // Parameter definitions
	Execute(ctx context.Context, args Args) (*Result, error) // Validate, build, call, normalize
}

// ParameterDef parameter definition
type ParameterDef struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "string" | "integer" | "boolean"
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
}

func intRange(min, max int) (*int, *int) {
	return &min, &max
}

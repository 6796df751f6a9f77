package cli

import (
	"fmt"
	"strings"
	"unicode"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/hession/exatool/internal/tools"
)

// ParseLine turns a shell line into a tool request. Two forms are accepted:
//
//	exa_search query="state of go generics" num_results=5
//	exa_search {query: "state of go generics", num_results: 5}
//
// Values of the key=value form stay strings; the tools coerce them. A key
// given more than once becomes a list.
func ParseLine(line string) (tools.ToolRequest, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return tools.ToolRequest{}, fmt.Errorf("empty input")
	}

	name, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		name, rest = line[:i], strings.TrimSpace(line[i:])
	}

	var tokens []string
	if strings.HasPrefix(rest, "{") {
		tokens = []string{rest}
	} else {
		var err error
		if tokens, err = tokenize(rest); err != nil {
			return tools.ToolRequest{}, err
		}
	}

	args, err := ParseArgs(tokens)
	if err != nil {
		return tools.ToolRequest{}, err
	}
	return tools.ToolRequest{Name: name, Params: args}, nil
}

// ParseArgs builds tool arguments from already split tokens: either a single
// JSON5 object or key=value pairs.
func ParseArgs(tokens []string) (tools.Args, error) {
	args := tools.Args{}
	if len(tokens) == 1 && strings.HasPrefix(strings.TrimSpace(tokens[0]), "{") {
		if err := json5.Unmarshal([]byte(tokens[0]), &args); err != nil {
			return nil, fmt.Errorf("invalid argument object: %w", err)
		}
		if args == nil {
			args = tools.Args{}
		}
		return args, nil
	}

	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", tok)
		}
		switch prev := args[key].(type) {
		case nil:
			args[key] = value
		case string:
			args[key] = []string{prev, value}
		case []string:
			args[key] = append(prev, value)
		}
	}
	return args, nil
}

// tokenize splits on unquoted whitespace. Single quotes are literal; inside
// double quotes a backslash escapes the next character.
func tokenize(s string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		inToken bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '"' && r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 || escaped {
		return nil, fmt.Errorf("unterminated quote")
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/c-bata/go-prompt"

	"github.com/hession/exatool/internal/exa"
	"github.com/hession/exatool/internal/tools"
	"github.com/hession/exatool/internal/usage"
)

func TestVersion(t *testing.T) {
	if Version != "0.1.0" {
		t.Errorf("Expected Version to be '0.1.0', got '%s'", Version)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		tool     string
		expected tools.Args
	}{
		{
			name:     "bare tool",
			line:     "exa_search",
			tool:     "exa_search",
			expected: tools.Args{},
		},
		{
			name:     "key value pairs",
			line:     `exa_search query="go generics" num_results=5`,
			tool:     "exa_search",
			expected: tools.Args{"query": "go generics", "num_results": "5"},
		},
		{
			name:     "single quotes are literal",
			line:     `exa_answer query='say "hi"'`,
			tool:     "exa_answer",
			expected: tools.Args{"query": `say "hi"`},
		},
		{
			name:     "escaped quote",
			line:     `exa_answer query="a \"quoted\" word"`,
			tool:     "exa_answer",
			expected: tools.Args{"query": `a "quoted" word`},
		},
		{
			name:     "repeated key becomes list",
			line:     "exa_contents urls=https://a urls=https://b urls=https://c",
			tool:     "exa_contents",
			expected: tools.Args{"urls": []string{"https://a", "https://b", "https://c"}},
		},
		{
			name:     "value containing equals",
			line:     "exa_similar url=https://x.test/?a=b",
			tool:     "exa_similar",
			expected: tools.Args{"url": "https://x.test/?a=b"},
		},
		{
			name:     "tab after tool name",
			line:     "exa_search\tquery=go\tnum_results=3",
			tool:     "exa_search",
			expected: tools.Args{"query": "go", "num_results": "3"},
		},
		{
			name:     "empty value",
			line:     "exa_search query=",
			tool:     "exa_search",
			expected: tools.Args{"query": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine(%q) error: %v", tt.line, err)
			}
			if req.Name != tt.tool {
				t.Errorf("Expected tool %s, got %s", tt.tool, req.Name)
			}
			if !reflect.DeepEqual(req.Params, tt.expected) {
				t.Errorf("ParseLine(%q) params = %#v, want %#v", tt.line, req.Params, tt.expected)
			}
		})
	}
}

func TestParseLine_JSON5(t *testing.T) {
	req, err := ParseLine(`exa_search {query: "go", num_results: 3, include_domains: ["go.dev"]}`)
	if err != nil {
		t.Fatalf("ParseLine error: %v", err)
	}
	if req.Params["query"] != "go" {
		t.Errorf("Expected query go, got %v", req.Params["query"])
	}
	if fmt.Sprint(req.Params["num_results"]) != "3" {
		t.Errorf("Expected num_results 3, got %#v", req.Params["num_results"])
	}
	if domains, ok := req.Params["include_domains"].([]any); !ok || len(domains) != 1 {
		t.Errorf("Expected one include domain, got %#v", req.Params["include_domains"])
	}
}

func TestParseLine_Errors(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		`exa_search query="unterminated`,
		"exa_search golang",
		"exa_search =value",
		"exa_search {query: }",
	} {
		if _, err := ParseLine(line); err == nil {
			t.Errorf("ParseLine(%q) should fail", line)
		}
	}
}

func TestTruncateForDisplay(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"short text", "Hello", 10, "Hello"},
		{"exact length", "Hello", 5, "Hello"},
		{"truncate", "Hello World", 5, "Hello..."},
		{"with newlines", "Hello\nWorld", 20, "Hello World"},
		{"with carriage return", "Hello\r\nWorld", 20, "Hello World"},
		{"with leading/trailing spaces", "  Hello  ", 20, "Hello"},
		{"multibyte", "héllo wörld", 5, "héllo..."},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateForDisplay(tt.text, tt.maxLen)
			if got != tt.expected {
				t.Errorf("truncateForDisplay(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.expected {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}

func TestCommandSuggestion(t *testing.T) {
	suggestions := GetCommandSuggestions()
	seen := make(map[string]bool)
	for _, s := range suggestions {
		if !strings.HasPrefix(s.Text, "/") {
			t.Errorf("Command %q should start with /", s.Text)
		}
		if s.Description == "" {
			t.Errorf("Command %q has no description", s.Text)
		}
		seen[s.Text] = true
	}
	for _, want := range []string{"/help", "/tools", "/usage", "/exit"} {
		if !seen[want] {
			t.Errorf("Missing command suggestion %s", want)
		}
	}
}

type shellUpstream struct {
	search *exa.SearchRequest
}

func (u *shellUpstream) Search(_ context.Context, req *exa.SearchRequest) (json.RawMessage, error) {
	u.search = req
	return json.RawMessage(`{"results":[{"url":"https://go.dev","title":"Go"}]}`), nil
}

func (u *shellUpstream) Answer(context.Context, *exa.AnswerRequest) (json.RawMessage, error) {
	return nil, &exa.TransportError{Kind: exa.ErrUnavailable, Endpoint: exa.EndpointAnswer, Status: 503, Attempts: 3}
}

func (u *shellUpstream) FindSimilar(context.Context, *exa.FindSimilarRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"results":[]}`), nil
}

func (u *shellUpstream) Contents(context.Context, *exa.ContentsRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"results":[]}`), nil
}

func newTestShell(t *testing.T, store usage.Store) (*Shell, *shellUpstream, *bytes.Buffer) {
	t.Helper()
	up := &shellUpstream{}
	var out bytes.Buffer
	opts := []tools.Option{}
	if store != nil {
		opts = append(opts, tools.WithRecorder(store))
	}
	registry := tools.NewDefaultRegistry(up, opts...)
	return NewShell(context.Background(), registry, Options{Store: store, Out: &out}), up, &out
}

func TestShell_CallTool(t *testing.T) {
	shell, up, out := newTestShell(t, nil)

	shell.Execute(`exa_search query="go" num_results=2 search_type=keyword`)

	if up.search == nil || up.search.NumResults != 2 || up.search.Type != "keyword" {
		t.Fatalf("Arguments did not reach the upstream: %+v", up.search)
	}
	text := out.String()
	for _, want := range []string{"Calling tool: exa_search", "## Exa Search Results", "[Go](https://go.dev)", "Done in"} {
		if !strings.Contains(text, want) {
			t.Errorf("Output missing %q:\n%s", want, text)
		}
	}
}

func TestShell_JSONOutput(t *testing.T) {
	shell, _, out := newTestShell(t, nil)

	shell.Execute("/json")
	out.Reset()
	shell.Execute("exa_search query=go")

	if !strings.Contains(out.String(), `"tool": "exa_search"`) {
		t.Errorf("Expected JSON output, got:\n%s", out.String())
	}
}

func TestShell_Errors(t *testing.T) {
	shell, _, out := newTestShell(t, nil)

	tests := []struct {
		line string
		want string
	}{
		{"exa_search num_results=500 query=go", "[validation/out_of_range]"},
		{"exa_answer query=q", "[transport/unavailable]"},
		{"exa_unknown query=q", "[not_found]"},
		{`exa_search query="open`, "unterminated quote"},
		{"/nope", "Unknown command"},
	}

	for _, tt := range tests {
		out.Reset()
		shell.Execute(tt.line)
		if !strings.Contains(out.String(), tt.want) {
			t.Errorf("%s: expected output to contain %q, got:\n%s", tt.line, tt.want, out.String())
		}
	}
}

func TestShell_Commands(t *testing.T) {
	shell, _, out := newTestShell(t, nil)

	shell.Execute("/tools")
	for _, name := range []string{"exa_search", "exa_answer", "exa_similar", "exa_contents"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("/tools should list %s", name)
		}
	}

	out.Reset()
	shell.Execute("/tools exa_contents")
	if !strings.Contains(out.String(), "livecrawl") || !strings.Contains(out.String(), "one of") {
		t.Errorf("/tools exa_contents should describe parameters, got:\n%s", out.String())
	}

	out.Reset()
	shell.Execute("/usage")
	if !strings.Contains(out.String(), "disabled") {
		t.Errorf("/usage without a store should report it is disabled, got: %s", out.String())
	}

	if shell.shouldExit("/help", true) {
		t.Error("Shell should not exit before /exit")
	}
	shell.Execute("/exit")
	if !shell.shouldExit("/exit", true) {
		t.Error("Shell should exit after /exit")
	}
}

func TestShell_Usage(t *testing.T) {
	store, err := usage.NewSQLiteStore(t.TempDir() + "/usage.db")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	shell, _, out := newTestShell(t, store)
	shell.Execute("exa_search query=go")
	shell.Execute("exa_answer query=q")

	out.Reset()
	shell.Execute("/usage")
	if !strings.Contains(out.String(), "exa_search") || !strings.Contains(out.String(), "exa_answer") {
		t.Errorf("Summary should list both tools, got:\n%s", out.String())
	}

	out.Reset()
	shell.Execute("/usage recent 1")
	if !strings.Contains(out.String(), "transport/unavailable") {
		t.Errorf("Latest invocation should be the failed answer, got:\n%s", out.String())
	}

	out.Reset()
	shell.Execute("/usage recent zero")
	if !strings.Contains(out.String(), "/usage recent [count]") {
		t.Errorf("Bad count should print usage, got:\n%s", out.String())
	}
}

func completeText(shell *Shell, text string) []string {
	b := prompt.NewBuffer()
	b.InsertText(text, false, true)
	var out []string
	for _, s := range shell.Complete(*b.Document()) {
		out = append(out, s.Text)
	}
	return out
}

func TestShell_Complete(t *testing.T) {
	shell, _, _ := newTestShell(t, nil)

	if got := completeText(shell, ""); len(got) != 0 {
		t.Errorf("Empty input should not suggest, got %v", got)
	}

	got := completeText(shell, "exa_s")
	if !reflect.DeepEqual(got, []string{"exa_search", "exa_similar"}) {
		t.Errorf("Tool completion = %v", got)
	}

	got = completeText(shell, "/us")
	if len(got) == 0 || got[0] != "/usage" {
		t.Errorf("Command completion = %v", got)
	}

	got = completeText(shell, "exa_similar ")
	if !reflect.DeepEqual(got, []string{"url=", "num_results=", "text="}) {
		t.Errorf("Parameter completion = %v", got)
	}

	got = completeText(shell, "exa_similar url=https://x num")
	if !reflect.DeepEqual(got, []string{"num_results="}) {
		t.Errorf("Prefix parameter completion = %v", got)
	}

	got = completeText(shell, "exa_contents livecrawl=")
	if !reflect.DeepEqual(got, []string{"livecrawl=never", "livecrawl=fallback", "livecrawl=always", "livecrawl=auto"}) {
		t.Errorf("Enum completion = %v", got)
	}

	if got := completeText(shell, "exa_search {query"); len(got) != 0 {
		t.Errorf("JSON input should not suggest, got %v", got)
	}
}

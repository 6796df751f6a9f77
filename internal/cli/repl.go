package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"

	"github.com/hession/exatool/internal/config"
	"github.com/hession/exatool/internal/tools"
	"github.com/hession/exatool/internal/usage"
)

const (
	Version = "0.1.0"

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Options configures the interactive shell
type Options struct {
	Config *config.Config
	Store  usage.Store // nil when the usage ledger is disabled
	Out    io.Writer   // defaults to stdout
}

// Shell runs shell lines against a tool registry
type Shell struct {
	ctx      context.Context
	registry *tools.Registry
	cfg      *config.Config
	usage    *UsageCommands
	out      io.Writer
	jsonOut  bool
	exiting  bool
}

// NewShell creates a shell bound to the registry
func NewShell(ctx context.Context, registry *tools.Registry, opts Options) *Shell {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Shell{
		ctx:      ctx,
		registry: registry,
		cfg:      opts.Config,
		usage:    NewUsageCommands(opts.Store),
		out:      out,
	}
}

// Run starts the CLI interactive interface and returns on /exit or Ctrl+D
func Run(ctx context.Context, registry *tools.Registry, opts Options) error {
	shell := NewShell(ctx, registry, opts)
	shell.printWelcome()

	p := prompt.New(
		shell.Execute,
		shell.Complete,
		prompt.OptionTitle("exatool"),
		prompt.OptionPrefix("exa> "),
		prompt.OptionPrefixTextColor(prompt.Cyan),
		prompt.OptionMaxSuggestion(8),
		prompt.OptionSetExitCheckerOnInput(shell.shouldExit),
	)
	p.Run()

	if !shell.exiting {
		fmt.Fprintf(shell.out, "%sGoodbye! 👋%s\n", colorCyan, colorReset)
	}
	return nil
}

// PromptAPIKey asks for the Exa API key and saves it to config.yaml
func PromptAPIKey(cfg *config.Config) error {
	fmt.Printf("%s⚠️  Exa API Key not configured%s\n", colorYellow, colorReset)
	fmt.Printf("%sSet %s, add it to %s, or enter it now.%s\n\n", colorGray, config.APIKeyEnv, ".secrets", colorReset)

	apiKey := strings.TrimSpace(prompt.Input("Please enter your Exa API Key: ", func(prompt.Document) []prompt.Suggest { return nil }))
	if apiKey == "" {
		return fmt.Errorf("API Key cannot be empty")
	}

	cfg.Exa.APIKey = apiKey
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n%s✅ API Key saved%s\n\n", colorGreen, colorReset)
	return nil
}

// printWelcome prints welcome message
func (s *Shell) printWelcome() {
	fmt.Fprintf(s.out, "\n%s🔎 exatool v%s%s - Exa search from your terminal\n", colorCyan, Version, colorReset)
	fmt.Fprintf(s.out, "%sType /help for help, /tools for the tool list, /exit to quit%s\n", colorGray, colorReset)
	if s.cfg != nil && !s.cfg.IsAPIKeyConfigured() {
		fmt.Fprintf(s.out, "%s⚠️  No API key configured: calls will be rejected by Exa%s\n", colorYellow, colorReset)
	}
	fmt.Fprintln(s.out)
}

// Execute handles one submitted line
func (s *Shell) Execute(line string) {
	input := strings.TrimSpace(line)
	if input == "" {
		return
	}

	if strings.HasPrefix(input, "/") {
		s.handleCommand(input)
		return
	}
	s.callTool(input)
}

func (s *Shell) shouldExit(_ string, breakline bool) bool {
	return breakline && s.exiting
}

// callTool parses the line, dispatches it and prints the result
func (s *Shell) callTool(input string) {
	req, err := ParseLine(input)
	if err != nil {
		fmt.Fprintf(s.out, "%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}

	s.toolCallOutput(req)

	// Ctrl+C cancels the running call instead of killing the shell.
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt)
	defer stop()

	start := time.Now()
	result, err := s.registry.Dispatch(ctx, req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		s.printError(err)
		return
	}

	if s.jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(s.out, "%s❌ Failed to encode result: %v%s\n", colorRed, err, colorReset)
			return
		}
		fmt.Fprintln(s.out, string(data))
	} else {
		fmt.Fprintln(s.out, result.Markdown())
	}
	fmt.Fprintf(s.out, "%s   Status: ✅ Done in %s%s\n\n", colorGreen, elapsed, colorReset)
}

// toolCallOutput prints the call header
func (s *Shell) toolCallOutput(req tools.ToolRequest) {
	fmt.Fprintf(s.out, "\n%s🔧 Calling tool: %s%s\n", colorYellow, req.Name, colorReset)
	if len(req.Params) > 0 {
		fmt.Fprintf(s.out, "%s   Args: %s%s\n", colorGray, formatArgs(req.Params), colorReset)
	}
	fmt.Fprintln(s.out)
}

func (s *Shell) printError(err error) {
	outcome := tools.Outcome(err)
	label := outcome.Kind
	if outcome.Code != "" {
		label += "/" + outcome.Code
	}
	fmt.Fprintf(s.out, "%s   Status: ❌ Failed [%s] %s%s\n", colorRed, label, outcome.Message, colorReset)
	if outcome.Kind == tools.KindNotFound {
		fmt.Fprintln(s.out, "Type /tools for available tools")
	}
	fmt.Fprintln(s.out)
}

// handleCommand handles built-in commands
func (s *Shell) handleCommand(cmd string) {
	if handled, output := s.usage.HandleCommand(cmd); handled {
		fmt.Fprintln(s.out, output)
		return
	}

	parts := strings.Fields(cmd)
	command := strings.ToLower(parts[0])

	switch command {
	case "/help":
		s.printHelp()

	case "/tools":
		if len(parts) > 1 {
			s.printTool(parts[1])
		} else {
			s.printTools()
		}

	case "/json":
		s.jsonOut = !s.jsonOut
		if s.jsonOut {
			fmt.Fprintf(s.out, "%s✅ Results are printed as JSON%s\n", colorGreen, colorReset)
		} else {
			fmt.Fprintf(s.out, "%s✅ Results are printed as Markdown%s\n", colorGreen, colorReset)
		}

	case "/config":
		cfg := s.cfg
		if cfg == nil {
			loaded, err := config.Load()
			if err != nil {
				fmt.Fprintf(s.out, "%s❌ Failed to load config: %v%s\n", colorRed, err, colorReset)
				return
			}
			cfg = loaded
		}
		fmt.Fprintln(s.out, cfg.String())

	case "/exit", "/quit", "/q":
		fmt.Fprintf(s.out, "%sGoodbye! 👋%s\n", colorCyan, colorReset)
		s.exiting = true

	default:
		fmt.Fprintf(s.out, "%s❓ Unknown command: %s%s\n", colorYellow, cmd, colorReset)
		fmt.Fprintln(s.out, "Type /help for available commands")
	}
}

// printHelp prints help information
func (s *Shell) printHelp() {
	fmt.Fprintf(s.out, `
%s📚 exatool Help%s

%sBuilt-in Commands:%s
  /help                 - Show this help message
  /tools [name]         - List tools, or show one tool's parameters
  /json                 - Toggle between Markdown and JSON output
  /usage                - Show per-tool usage
  /usage recent [count] - Show latest invocations
  /usage prune [days]   - Delete old invocations
  /config               - Show current configuration
  /exit                 - Exit program

%sCalling Tools:%s
  <tool> key=value ...    Quote values with spaces: query="go generics"
  <tool> {key: value}     JSON5 object
  Repeat a key or use commas for lists: include_domains=go.dev,github.com

%sInput Tips:%s
  • Press Tab to complete tool and parameter names
  • Use Up/Down arrow keys to browse command history
  • Press Ctrl+C during a call to cancel it
  • Press Ctrl+D on an empty line to quit

%sExamples:%s
  exa_search query="rust vs go for cli tools" num_results=5 start_published_date=2024-01-01
  exa_answer query="What is the latest Go release?" text=true
  exa_similar url=https://go.dev/blog/ num_results=3
  exa_contents urls=https://go.dev,https://pkg.go.dev ai_page_summary=true

`, colorCyan, colorReset, colorYellow, colorReset, colorYellow, colorReset, colorYellow, colorReset, colorYellow, colorReset)
}

func (s *Shell) printTools() {
	fmt.Fprintf(s.out, "\n%s🧰 Available Tools:%s\n", colorYellow, colorReset)
	for _, tool := range s.registry.List() {
		fmt.Fprintf(s.out, "  %s%-13s%s %s\n", colorBlue, tool.Name(), colorReset,
			truncateForDisplay(s.registry.Description(tool), 80))
	}
	fmt.Fprintf(s.out, "%sType /tools <name> for parameters%s\n\n", colorGray, colorReset)
}

func (s *Shell) printTool(name string) {
	tool, ok := s.registry.Get(name)
	if !ok {
		fmt.Fprintf(s.out, "%s❓ Unknown tool: %s%s\n", colorYellow, name, colorReset)
		return
	}

	fmt.Fprintf(s.out, "\n%s%s%s\n%s\n\n", colorCyan, tool.Name(), colorReset, s.registry.Description(tool))
	for _, p := range tool.Parameters() {
		marker := " "
		if p.Required {
			marker = "*"
		}
		fmt.Fprintf(s.out, " %s %s%-24s%s %-8s %s\n", marker, colorBlue, p.Name, colorReset, p.Type, truncateForDisplay(p.Description, 70))

		var extra []string
		if len(p.Enum) > 0 {
			extra = append(extra, "one of "+strings.Join(p.Enum, ", "))
		}
		if p.Minimum != nil && p.Maximum != nil {
			extra = append(extra, fmt.Sprintf("range %d-%d", *p.Minimum, *p.Maximum))
		}
		if p.Default != nil {
			extra = append(extra, fmt.Sprintf("default %v", p.Default))
		}
		if len(extra) > 0 {
			fmt.Fprintf(s.out, "   %s%-24s %s%s\n", colorGray, "", strings.Join(extra, "; "), colorReset)
		}
	}
	fmt.Fprintf(s.out, "%s* required%s\n\n", colorGray, colorReset)
}

// Complete suggests commands, tool names, parameter names and enum values
func (s *Shell) Complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	if strings.TrimSpace(before) == "" {
		return nil
	}

	if strings.HasPrefix(before, "/") {
		var suggestions []prompt.Suggest
		for _, c := range GetCommandSuggestions() {
			suggestions = append(suggestions, prompt.Suggest{Text: c.Text, Description: c.Description})
		}
		return prompt.FilterHasPrefix(suggestions, before, true)
	}

	name, rest, hasArgs := strings.Cut(before, " ")
	if !hasArgs {
		var suggestions []prompt.Suggest
		for _, tool := range s.registry.List() {
			suggestions = append(suggestions, prompt.Suggest{
				Text:        tool.Name(),
				Description: truncateForDisplay(s.registry.Description(tool), 60),
			})
		}
		return prompt.FilterHasPrefix(suggestions, name, true)
	}

	tool, ok := s.registry.Get(name)
	if !ok || strings.HasPrefix(strings.TrimSpace(rest), "{") {
		return nil
	}

	word := d.GetWordBeforeCursor()
	if key, _, isValue := strings.Cut(word, "="); isValue {
		return prompt.FilterHasPrefix(enumSuggestions(tool, key), word, false)
	}

	given := make(map[string]bool)
	for _, field := range strings.Fields(rest) {
		if key, _, ok := strings.Cut(field, "="); ok {
			given[key] = true
		}
	}

	var suggestions []prompt.Suggest
	for _, p := range tool.Parameters() {
		if given[p.Name] {
			continue
		}
		desc := p.Type
		if p.Required {
			desc += ", required"
		}
		suggestions = append(suggestions, prompt.Suggest{Text: p.Name + "=", Description: desc})
	}
	return prompt.FilterHasPrefix(suggestions, word, true)
}

func enumSuggestions(tool tools.Tool, key string) []prompt.Suggest {
	for _, p := range tool.Parameters() {
		if p.Name != key {
			continue
		}
		values := p.Enum
		if p.Type == "boolean" {
			values = []string{"true", "false"}
		}
		suggestions := make([]prompt.Suggest, 0, len(values))
		for _, v := range values {
			suggestions = append(suggestions, prompt.Suggest{Text: key + "=" + v})
		}
		return suggestions
	}
	return nil
}

// formatArgs renders arguments sorted by key for the call header
func formatArgs(args tools.Args) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return truncateForDisplay(strings.Join(parts, " "), 120)
}

package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hession/exatool/internal/usage"
)

// UsageCommands handles the /usage shell commands
type UsageCommands struct {
	store usage.Store
}

// NewUsageCommands creates the /usage command handler. A nil store reports
// that the ledger is disabled.
func NewUsageCommands(store usage.Store) *UsageCommands {
	return &UsageCommands{store: store}
}

// HandleCommand handles usage related commands.
// Returns: (whether the command was handled, output)
func (c *UsageCommands) HandleCommand(cmd string) (bool, string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 || strings.ToLower(parts[0]) != "/usage" {
		return false, ""
	}
	if c.store == nil {
		return true, "⚠️  Usage ledger is disabled (usage.enabled: false)"
	}

	args := parts[1:]
	if len(args) == 0 {
		return true, c.summary()
	}

	switch strings.ToLower(args[0]) {
	case "summary", "stats":
		return true, c.summary()
	case "recent":
		limit := 10
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return true, "❌ Usage: /usage recent [count]"
			}
			limit = n
		}
		return true, c.recent(limit)
	case "prune":
		days := 30
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return true, "❌ Usage: /usage prune [days]"
			}
			days = n
		}
		return true, c.prune(days)
	default:
		return true, c.help()
	}
}

func (c *UsageCommands) summary() string {
	summaries, err := c.store.Summary()
	if err != nil {
		return fmt.Sprintf("❌ Failed to read usage: %v", err)
	}
	return FormatSummary(summaries)
}

func (c *UsageCommands) recent(limit int) string {
	records, err := c.store.Recent(limit)
	if err != nil {
		return fmt.Sprintf("❌ Failed to read usage: %v", err)
	}
	return FormatRecent(records, time.Now())
}

func (c *UsageCommands) prune(days int) string {
	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := c.store.Prune(cutoff)
	if err != nil {
		return fmt.Sprintf("❌ Failed to prune usage: %v", err)
	}
	return fmt.Sprintf("✅ Removed %d invocations older than %d days", n, days)
}

func (c *UsageCommands) help() string {
	return `📊 Usage commands:
  /usage                - Per-tool call summary
  /usage recent [count] - Latest invocations (default 10)
  /usage prune [days]   - Delete invocations older than N days (default 30)`
}

// FormatSummary renders per-tool usage as a table
func FormatSummary(summaries []*usage.ToolSummary) string {
	if len(summaries) == 0 {
		return "📊 No invocations recorded yet"
	}

	var sb strings.Builder
	sb.WriteString("📊 Tool usage\n\n")
	sb.WriteString(fmt.Sprintf("  %-14s %7s %9s %9s %8s\n", "TOOL", "CALLS", "FAILURES", "AVG", "RESULTS"))
	for _, s := range summaries {
		avg := time.Duration(s.AvgDurationMS * float64(time.Millisecond))
		sb.WriteString(fmt.Sprintf("  %-14s %7d %9d %9s %8d\n",
			s.Tool, s.Calls, s.Failures, avg.Round(time.Millisecond), s.Items))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatRecent renders recent invocations, newest first
func FormatRecent(records []*usage.Record, now time.Time) string {
	if len(records) == 0 {
		return "📊 No invocations recorded yet"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 Latest %d invocations\n\n", len(records)))
	for _, r := range records {
		status := "✅"
		detail := fmt.Sprintf("%d results", r.Items)
		if r.Status != "succeeded" {
			status = "❌"
			detail = fmt.Sprintf("%s/%s at %s", r.ErrorKind, r.ErrorCode, r.Stage)
		}
		sb.WriteString(fmt.Sprintf("  %s %s  %-13s %6dms  %s  (%s ago)\n",
			status, shortID(r.ID), r.Tool, r.DurationMS, detail, FormatDuration(now.Sub(r.CreatedAt))))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateForDisplay flattens text to one line and cuts it at maxLen runes
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// CommandSuggestion command suggestion
type CommandSuggestion struct {
	Text        string
	Description string
}

// GetCommandSuggestions returns the built-in shell commands (for completion)
func GetCommandSuggestions() []CommandSuggestion {
	return []CommandSuggestion{
		{Text: "/help", Description: "Show help"},
		{Text: "/tools", Description: "List tools and their parameters"},
		{Text: "/json", Description: "Toggle JSON output"},
		{Text: "/usage", Description: "Show per-tool usage"},
		{Text: "/usage recent", Description: "Show latest invocations"},
		{Text: "/usage prune", Description: "Delete old invocations"},
		{Text: "/config", Description: "Show current configuration"},
		{Text: "/exit", Description: "Exit program"},
	}
}

// FormatDuration formats a time span in its largest whole unit
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

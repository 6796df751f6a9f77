package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hession/exatool/internal/cli"
	"github.com/hession/exatool/internal/config"
	"github.com/hession/exatool/internal/exa"
	"github.com/hession/exatool/internal/logger"
	"github.com/hession/exatool/internal/mcpserver"
	"github.com/hession/exatool/internal/tools"
	"github.com/hession/exatool/internal/usage"
)

var (
	version = "0.1.0"
)

func main() {
	// SIGINT is left to the shell, which uses it to cancel a running call.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the components shared by all subcommands
type app struct {
	cfg      *config.Config
	registry *tools.Registry
	store    usage.Store
}

// openApp loads configuration and wires logger, Exa client, usage ledger and
// tool registry.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newApp(cfg)
}

func newApp(cfg *config.Config) (*app, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		LogDir:     config.LogDir(),
		Level:      level,
		MaxDays:    cfg.Log.MaxDays,
		ConsoleOut: cfg.Log.Console,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logConfigInfo(cfg)

	client := exa.New(exa.Options{
		APIKey:           cfg.Exa.APIKey,
		BaseURL:          cfg.Exa.BaseURL,
		UserAgent:        cfg.Exa.UserAgent,
		Timeout:          cfg.Exa.Timeout(),
		LivecrawlTimeout: cfg.Exa.LivecrawlTimeout(),
		MaxRetries:       cfg.Exa.MaxRetries,
		Backoff:          cfg.Exa.RetryBackoff(),
		Logger:           logger.GetDefault(),
	})

	a := &app{cfg: cfg}
	opts := []tools.Option{tools.WithLogger(logger.GetDefault())}
	if cfg.Usage.Enabled {
		store, err := usage.NewSQLiteStore(cfg.Usage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open usage ledger: %w", err)
		}
		a.store = store
		opts = append(opts, tools.WithRecorder(store))
	}

	a.registry = tools.NewDefaultRegistry(client, opts...)

	texts, err := config.LoadToolTexts()
	if err != nil {
		logger.Warn("Failed to load tool texts, using built-in descriptions: %v", err)
	} else {
		a.registry.SetDescriptions(texts.ForLanguage())
	}

	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("Failed to close usage ledger: %v", err)
		}
	}
	logger.Close()
}

// logConfigInfo logs the effective configuration without the API key
func logConfigInfo(cfg *config.Config) {
	keyStatus := "not configured"
	if cfg.IsAPIKeyConfigured() {
		keyStatus = "configured"
	}
	logger.Info("Config: base_url=%s timeout=%ds livecrawl_timeout=%ds max_retries=%d backoff=%dms api_key=%s",
		cfg.Exa.BaseURL, cfg.Exa.TimeoutSeconds, cfg.Exa.LivecrawlTimeoutSeconds,
		cfg.Exa.MaxRetries, cfg.Exa.RetryBackoffMS, keyStatus)
	if cfg.Usage.Enabled {
		logger.Info("Usage ledger: %s", cfg.Usage.DBPath)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "exatool",
		Short: "exatool - Exa semantic search from the terminal and over MCP",
		Long: `exatool exposes the Exa search API as four tools:

  • exa_search   - Semantic or keyword web search with filters
  • exa_answer   - A direct answer with cited sources
  • exa_similar  - Pages similar to a given URL
  • exa_contents - Full text, summaries and links of given pages

Run without arguments for an interactive shell, or use "serve" to expose
the tools to an MCP host over stdio.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.IsAPIKeyConfigured() {
				if err := cli.PromptAPIKey(cfg); err != nil {
					return err
				}
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return cli.Run(cmd.Context(), a.registry, cli.Options{Config: cfg, Store: a.store})
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")

	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newUsageCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// call subcommand
func newCallCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "call <tool> [key=value ... | '{json5}']",
		Short: "Run one tool and print the result",
		Example: `  exatool call exa_search query="go generics" num_results=5
  exatool call exa_contents '{urls: ["https://go.dev"], ai_page_summary: true}' --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := cli.ParseArgs(args[1:])
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := a.registry.Dispatch(ctx, tools.ToolRequest{Name: args[0], Params: params})
			if err != nil {
				if asJSON {
					_ = writeJSON(cmd.OutOrStdout(), tools.Outcome(err))
				}
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Markdown())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the normalized result as JSON")
	return cmd
}

// serve subcommand
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools to an MCP host over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.IsAPIKeyConfigured() {
				logger.Warn("No Exa API key configured; set %s or add it to .secrets", config.APIKeyEnv)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger.Info("MCP server starting on stdio")
			err = mcpserver.Serve(ctx, a.registry, mcpserver.Options{Version: version, Logger: logger.GetDefault()})
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("mcp server stopped: %w", err)
			}
			logger.Info("MCP server stopped")
			return nil
		},
	}
}

// schema subcommand
func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the function-calling schemas of all tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := tools.NewDefaultRegistry(nil)
			if texts, err := config.LoadToolTexts(); err == nil {
				registry.SetDescriptions(texts.ForLanguage())
			}
			return writeJSON(cmd.OutOrStdout(), registry.Schemas())
		},
	}
}

// verify subcommand
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the API key and endpoint work",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.IsAPIKeyConfigured() {
				return fmt.Errorf("no Exa API key configured: set %s or run exatool once to enter it", config.APIKeyEnv)
			}

			start := time.Now()
			_, err = a.registry.Dispatch(cmd.Context(), tools.ToolRequest{
				Name:   tools.SearchToolName,
				Params: tools.Args{"query": "test", "num_results": 1},
			})
			if err != nil {
				outcome := tools.Outcome(err)
				return fmt.Errorf("verification failed [%s/%s]: %s", outcome.Kind, outcome.Code, outcome.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Exa API reachable at %s (%s)\n", a.cfg.Exa.BaseURL, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

// usage subcommand
func newUsageCmd() *cobra.Command {
	var (
		limit     int
		pruneDays int
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the invocation ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store == nil {
				return fmt.Errorf("usage ledger is disabled (usage.enabled: false)")
			}

			out := cmd.OutOrStdout()
			if pruneDays > 0 {
				n, err := a.store.Prune(time.Now().AddDate(0, 0, -pruneDays))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✅ Removed %d invocations older than %d days\n\n", n, pruneDays)
			}

			summaries, err := a.store.Summary()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSummary(summaries))

			if limit > 0 {
				records, err := a.store.Recent(limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, cli.FormatRecent(records, time.Now()))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent invocations to list (0 to hide)")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "delete invocations older than this many days first")
	return cmd
}

// config subcommand
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "\nConfig file path: %s\n", path)
			return nil
		},
	}
}

// version subcommand
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "exatool v%s\n", version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

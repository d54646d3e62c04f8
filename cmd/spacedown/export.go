package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacedown/spacedown/internal/config"
	"github.com/spacedown/spacedown/internal/confluence"
	"github.com/spacedown/spacedown/internal/database"
	"github.com/spacedown/spacedown/internal/export"
	"github.com/spacedown/spacedown/internal/log"
	"github.com/spacedown/spacedown/internal/model"
	"github.com/spacedown/spacedown/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a Confluence space to a Markdown directory tree",
		Long: `Export fetches every page of a Confluence space and writes it to disk.

Each page becomes a directory named after its title, nested to mirror the
page hierarchy. The directory holds index.md (YAML frontmatter plus the
page body converted to Markdown) and an attachments/ directory with the
page's files. An INDEX.md at the export root links every exported page.

Examples:
  # Export the DOCS space
  spacedown export --url https://example.atlassian.net/wiki --space DOCS \
    --username user@example.com --token <api-token>

  # Export into a specific directory
  spacedown export --space DOCS --output ./docs-export

  # Only pages modified on or after June 1st 2024
  spacedown export --space DOCS --since 2024-06-01

  # Read connection settings from a config file
  spacedown export --space DOCS -c .spacedown.yaml

Configuration file (.spacedown.yaml) example:
  url: https://example.atlassian.net/wiki
  username: user@example.com
  token: my-api-token
  spaces:
    DOCS:
      output: ./docs-export
      since: "2024-01-01"`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	// Connection flags
	cmd.Flags().StringP("url", "u", "",
		"Confluence site URL (e.g., https://example.atlassian.net/wiki)")
	cmd.Flags().StringP("space", "s", "",
		"Key of the space to export (e.g., DOCS)")
	cmd.Flags().String("username", "",
		"Account used for basic authentication (usually an email address)")
	cmd.Flags().String("token", "",
		"API token paired with --username")

	// Export behavior flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory the export tree is written into")
	cmd.Flags().String("since", "",
		"Only export pages modified on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of concurrent API requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for each request")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .spacedown.yaml in current or home directory)")

	// Summary flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Write the run summary to the specified file instead of stdout")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the export history database")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	// Build config from flags and the optional config file
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration before any network request
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with credential redaction
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runExport(ctx, cfg, logger)
}

// buildConfig creates a Config from cobra command flags and the optional
// configuration file. Flags take precedence over file values; per-space
// file settings take precedence over global defaults.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.BaseURL, err = cmd.Flags().GetString("url")
	if err != nil {
		return nil, err
	}

	cfg.SpaceKey, err = cmd.Flags().GetString("space")
	if err != nil {
		return nil, err
	}

	cfg.Username, err = cmd.Flags().GetString("username")
	if err != nil {
		return nil, err
	}

	cfg.APIToken, err = cmd.Flags().GetString("token")
	if err != nil {
		return nil, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	sinceValue, err := cmd.Flags().GetString("since")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Load connection settings and per-space overrides from the config file.
	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SpaceConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SpaceConfigs = &config.File{
			Spaces: make(map[string]config.SpaceConfig),
		}
	}

	// Connection settings from the file fill in flags the user omitted
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.SpaceConfigs.URL
	}
	if cfg.Username == "" {
		cfg.Username = cfg.SpaceConfigs.Username
	}
	if cfg.APIToken == "" {
		cfg.APIToken = cfg.SpaceConfigs.Token
	}

	// Per-space settings apply where the corresponding flag was not given
	if cfg.SpaceKey != "" {
		spaceCfg := cfg.SpaceConfigs.GetSpaceConfig(cfg.SpaceKey)
		if spaceCfg.Output != "" && !cmd.Flags().Changed("output") {
			cfg.OutputDir = spaceCfg.Output
		}
		if spaceCfg.Since != "" && sinceValue == "" {
			sinceValue = spaceCfg.Since
		}
		if spaceCfg.Concurrency != 0 && !cmd.Flags().Changed("concurrency") {
			cfg.Concurrency = spaceCfg.Concurrency
		}
	}

	// A malformed date must fail here, before any fetch begins
	if sinceValue != "" {
		since, err := config.ParseSinceDate(sinceValue)
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q: %w", sinceValue, err)
		}
		cfg.Since = &since
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	cfg.DBDir = config.XDGDataDir()

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runExport executes the export.
func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting export",
		"space", cfg.SpaceKey,
		"url", cfg.BaseURL,
		"output", cfg.OutputDir,
		"concurrency", cfg.Concurrency,
		"saveHistory", cfg.SaveHistory,
	)

	// Open the history database if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveHistory {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Info("history database opened", "dir", cfg.DBDir)
	}

	client, err := confluence.NewClient(
		cfg.NormalizedBaseURL(), cfg.Username, cfg.APIToken, cfg.Timeout,
		confluence.WithUserAgent(cfg.UserAgent),
		confluence.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create Confluence client: %w", err)
	}

	exportReport := model.NewExportReport(cfg.NormalizedBaseURL(), cfg.SpaceKey, cfg.OutputDir)
	run := export.NewRun(exportReport)

	p := export.NewExportPipeline(client, cfg, export.WithLogger(logger))

	fmt.Printf("Exporting space %s...\n", cfg.SpaceKey)
	startTime := time.Now()

	execErr := p.Execute(ctx, run)
	exportReport.Finish(execErr)

	if execErr == nil {
		elapsed := time.Since(startTime)
		fmt.Printf("Export completed in %s\n\n", elapsed.Round(time.Millisecond))
	}

	// The summary is printed for aborted runs too: it says how far the run
	// got before the fatal error.
	if err := outputReport(cfg, exportReport); err != nil {
		logger.Error("summary output failed", "space", cfg.SpaceKey, "error", err)
	}

	if err := saveExportReport(ctx, db, exportReport, logger); err != nil {
		logger.Error("failed to save export run", "space", cfg.SpaceKey, "error", err)
	}

	return execErr
}

// outputReport writes the run summary in the requested format.
func outputReport(cfg *config.Config, exportReport *model.ExportReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create summary directory: %w", err)
			}
		}

		// Create/overwrite the summary file with owner-only permissions:
		// the report embeds site URLs and page titles
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create summary file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(exportReport)
	return err
}

// saveExportReport stores the finished run in the history database.
// If db is nil, this function is a no-op.
func saveExportReport(ctx context.Context, db *database.HistoryDB, exportReport *model.ExportReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	runID, err := db.SaveRun(ctx, exportReport)
	if err != nil {
		return fmt.Errorf("failed to save export run: %w", err)
	}

	logger.Info("export run saved to history", "space", exportReport.SpaceKey, "runID", runID)
	return nil
}

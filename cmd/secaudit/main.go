package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/secaudit/secaudit/internal/alert"
	"github.com/secaudit/secaudit/internal/baseline"
	"github.com/secaudit/secaudit/internal/gitx"
	"github.com/secaudit/secaudit/internal/logging"
	"github.com/secaudit/secaudit/internal/output"
	"github.com/secaudit/secaudit/internal/scanner"
)

var (
	version = "dev" // Set by ldflags

	configPath    string
	outputType    string
	outputFile    string
	failOn        string
	includeExt    []string
	ignoreDirs    []string
	maxFileSize   int64
	threads       int
	timeout       time.Duration
	since         string
	noBaseline    bool
	webhookURL    string
	webhookSecret string
	debugMode     bool
)

// exitWith is a function so tests can intercept the exit code.
var exitWith = func(code int) {
	os.Exit(code)
}

var rootCmd = &cobra.Command{
	Use:     "secaudit",
	Short:   "Security scanner for JavaScript/Node.js projects",
	Long:    `secaudit scans a source tree for leaked secrets and insecure coding patterns and reports findings with severities, suitable for local use and CI gating.`,
	Version: version,
}

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan a project directory for security issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		cfg, err := scanner.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := logging.New(debugMode)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipeline := scanner.NewPipeline(cfg, scanner.DefaultDetectors(cfg), log)
		if since != "" {
			changed, err := gitx.ChangedFiles(root, since)
			if err != nil {
				return err
			}
			log.Debugw("restricting scan to changed files", "since", since, "files", len(changed))
			pipeline.RestrictTo(changed)
		}

		result, err := pipeline.Run(ctx, root)
		if err != nil {
			return err
		}

		if !cfg.NoBaseline {
			bl, err := baseline.Load(root)
			if err != nil {
				return err
			}
			result.Issues = bl.Filter(result.Issues)
		}

		if cfg.WebhookURL != "" && len(result.Issues) > 0 {
			wh := alert.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret)
			if err := wh.Send(alert.NewPayload(result)); err != nil {
				log.Warnw("failed to send webhook", "error", err)
			}
		}

		var w io.Writer = os.Stdout
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := output.WriteResult(result, output.Format(outputType), w); err != nil {
			return err
		}

		exitWith(scanner.Gate(result, cfg.FailOnSeverity()))
		return nil
	},
}

// applyFlags merges explicitly set flags over the loaded config; flags
// take precedence over both file and environment.
func applyFlags(cmd *cobra.Command, cfg *scanner.Config) {
	if cmd.Flags().Changed("fail-on") {
		cfg.FailOn = failOn
	}
	if cmd.Flags().Changed("include-ext") {
		cfg.IncludeExt = includeExt
	}
	if cmd.Flags().Changed("ignore") {
		cfg.IgnoreDirs = ignoreDirs
	}
	if cmd.Flags().Changed("max-file-size") {
		cfg.MaxFileSize = maxFileSize
	}
	if cmd.Flags().Changed("threads") {
		cfg.Threads = threads
	}
	if cmd.Flags().Changed("no-baseline") {
		cfg.NoBaseline = noBaseline
	}
	if cmd.Flags().Changed("webhook-url") {
		cfg.WebhookURL = webhookURL
	}
	if cmd.Flags().Changed("webhook-secret") {
		cfg.WebhookSecret = webhookSecret
	}
	cfg.Timeout = timeout
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage baseline suppressions",
	Long:  `Add or list issue fingerprints in the baseline suppression file.`,
}

var baselineAddCmd = &cobra.Command{
	Use:   "add <fingerprint>",
	Short: "Suppress an issue by fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bl, err := baseline.Load(".")
		if err != nil {
			return err
		}
		if err := bl.AddFingerprint(args[0]); err != nil {
			return err
		}
		if err := bl.Save("."); err != nil {
			return err
		}
		fmt.Println("Added fingerprint to baseline")
		return nil
	},
}

var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List baseline suppressions",
	RunE: func(cmd *cobra.Command, args []string) error {
		bl, err := baseline.Load(".")
		if err != nil {
			return err
		}
		for _, e := range bl.Entries {
			fmt.Printf("%s  %s:%d  %s\n", e.Fingerprint, e.FilePath, e.Line, e.RuleID)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&configPath, "config", "c", scanner.DefaultConfigFile, "path to configuration file")
	scanCmd.Flags().StringVarP(&outputType, "type", "t", "console", "output format (console, json, sarif)")
	scanCmd.Flags().StringVarP(&outputFile, "out", "o", "", "output file (default: stdout)")
	scanCmd.Flags().StringVar(&failOn, "fail-on", "", "fail with a non-zero exit when issues at or above this severity exist (HIGH, MEDIUM, LOW)")
	scanCmd.Flags().StringSliceVar(&includeExt, "include-ext", nil, "file extensions to scan")
	scanCmd.Flags().StringSliceVar(&ignoreDirs, "ignore", nil, "directory names or globs to skip")
	scanCmd.Flags().Int64Var(&maxFileSize, "max-file-size", 0, "maximum file size in bytes to scan")
	scanCmd.Flags().IntVar(&threads, "threads", 4, "number of concurrent scanning workers")
	scanCmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the scan after this duration (0 = no limit)")
	scanCmd.Flags().StringVar(&since, "since", "", "scan only files changed since this git revision")
	scanCmd.Flags().BoolVar(&noBaseline, "no-baseline", false, "ignore baseline suppressions")
	scanCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "webhook URL to notify on findings")
	scanCmd.Flags().StringVar(&webhookSecret, "webhook-secret", "", "webhook HMAC signing secret")
	scanCmd.Flags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	baselineCmd.AddCommand(baselineAddCmd)
	baselineCmd.AddCommand(baselineListCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(baselineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		exitWith(scanner.ExitError)
	}
}

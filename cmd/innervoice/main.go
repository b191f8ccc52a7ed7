package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yhanli/innervoice/internal/api"
	"github.com/yhanli/innervoice/internal/checkpoint"
	"github.com/yhanli/innervoice/internal/config"
	"github.com/yhanli/innervoice/internal/dataset"
	"github.com/yhanli/innervoice/internal/logging"
	"github.com/yhanli/innervoice/internal/metrics"
	"github.com/yhanli/innervoice/internal/narrative"
	"github.com/yhanli/innervoice/internal/orchestrator"
	"github.com/yhanli/innervoice/pkg/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "innervoice",
		Short: "InnerVoice - Affirmation Narrative Generator",
		Long: `InnerVoice batch-generates first-person inner monologues from
affirmation sentences. Each sentence goes through a two-stage exchange
with a language model: a draft, then a critique pass that refines it.
Finished narratives accumulate in a CSV table; failed sentences land in
a retry table and completed row indices in a checkpoint file, so an
interrupted batch picks up where it left off.

Run without a subcommand for the interactive mode menu.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		RunE:    runInteractive,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Full run: filter the source table, write the cache, generate everything pending",
		RunE:  withApp(func(ctx context.Context, a *app) error { return a.runFull(ctx) }),
	}

	retryCmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry the sentences in the failure table, leaving the checkpoint untouched",
		RunE:  withApp(func(ctx context.Context, a *app) error { return a.runRetry(ctx) }),
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted run from the cached table and checkpoint",
		RunE:  withApp(func(ctx context.Context, a *app) error { return a.runResume(ctx) }),
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(resumeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a run mode needs, wired once per invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logFile *os.File
	sink    *dataset.Sink
	store   *checkpoint.Store
	orch    *orchestrator.Orchestrator
}

func newApp() (*app, error) {
	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger, logFile, err := logging.Setup(cfg.Files.Log, logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	logger.Info("InnerVoice starting",
		"version", Version,
		"config", configPath,
		"model", cfg.Model.ModelName,
		"endpoint", cfg.Model.BaseURL)

	collector := metrics.NewCollector(logger)
	apiKey := secrets.GetAPIKey(cfg.Model.BaseURL)
	client := api.NewClient(cfg.Model, apiKey, collector, logger)
	generator := narrative.New(client, cfg, collector, logger)
	store := checkpoint.NewStore(cfg.Files.Checkpoint, logger)
	sink := dataset.NewSink(cfg.Files.Output, cfg.Files.Failures, logger)
	orch := orchestrator.New(generator, store, cfg, collector, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		logFile: logFile,
		sink:    sink,
		store:   store,
		orch:    orch,
	}, nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Sync()
		_ = a.logFile.Close()
	}
}

// startMetricsListener exposes the Prometheus endpoint when an address
// is configured. It lives for the duration of the run context.
func (a *app) startMetricsListener(ctx context.Context) {
	if a.cfg.Metrics.ListenAddress == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, a.cfg.Metrics.ListenAddress, a.logger); err != nil {
			a.logger.Error("Metrics listener failed", "error", err)
		}
	}()
}

// withApp wires an app and a signal-aware context around one run mode.
func withApp(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a.startMetricsListener(ctx)

		return fn(ctx, a)
	}
}

// runInteractive shows the mode menu and runs the chosen mode once.
// Invalid input prints a hint and ends the invocation; nothing loops.
func runInteractive(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.startMetricsListener(ctx)

	color.New(color.Bold).Fprintf(os.Stdout, "Select a run mode:\n")
	fmt.Println("  0. Exit")
	fmt.Println("  1. Full run from the source table")
	fmt.Printf("  2. Retry failed sentences (reads %s)\n", a.cfg.Files.Failures)
	fmt.Println("  3. Resume from cache and checkpoint")
	fmt.Print("Enter 0, 1, 2 or 3: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read selection: %w", err)
	}

	switch choice := strings.TrimSpace(line); choice {
	case "0":
		return nil
	case "1":
		return a.runFull(ctx)
	case "2":
		return a.runRetry(ctx)
	case "3":
		return a.runResume(ctx)
	default:
		color.New(color.FgRed).Fprintf(os.Stdout, "Invalid selection %q - enter 0, 1, 2 or 3.\n", choice)
		return nil
	}
}

// runFull is mode 1: load and filter the source table, stage it as the
// cache for later resumption, and generate everything not yet
// checkpointed.
func (a *app) runFull(ctx context.Context) error {
	if a.cfg.Source.Path == "" {
		return fmt.Errorf("source.path must be set in the configuration for a full run")
	}

	table, err := dataset.LoadSource(a.cfg.Source, a.logger)
	if err != nil {
		return err
	}

	if err := table.Write(a.cfg.Files.Cache); err != nil {
		return fmt.Errorf("failed to write cache table: %w", err)
	}

	sentences, err := table.Column(a.cfg.Source.SentenceColumn)
	if err != nil {
		return err
	}
	fmt.Printf("Selected %s sentences for generation\n", humanize.Comma(int64(len(sentences))))

	records, failures, runErr := a.orch.Run(ctx, sentences, 0, false)
	return a.finishRun(records, failures, runErr)
}

// runRetry is mode 2: feed the previous run's failures back through
// the pipeline. The checkpoint is bypassed so this pass can neither
// skip nor pollute the main resumption state.
func (a *app) runRetry(ctx context.Context) error {
	if !a.sink.FailureTableExists() {
		color.New(color.FgGreen).Fprintf(os.Stdout, "No failure table at %s - nothing to retry.\n", a.cfg.Files.Failures)
		return nil
	}

	sentences, err := a.sink.LoadFailureSentences()
	if err != nil {
		return fmt.Errorf("failed to load failure table: %w", err)
	}
	fmt.Printf("Retrying %s failed sentences\n", humanize.Comma(int64(len(sentences))))

	records, failures, runErr := a.orch.Run(ctx, sentences, 0, true)
	return a.finishRun(records, failures, runErr)
}

// runResume is mode 3: pick up an interrupted full run from the cached
// table, skipping everything the checkpoint already records.
func (a *app) runResume(ctx context.Context) error {
	if _, err := os.Stat(a.cfg.Files.Cache); os.IsNotExist(err) {
		color.New(color.FgRed).Fprintf(os.Stdout, "No cache table at %s - run a full generation first.\n", a.cfg.Files.Cache)
		return nil
	}

	table, err := dataset.ReadTable(a.cfg.Files.Cache)
	if err != nil {
		return fmt.Errorf("failed to load cache table: %w", err)
	}

	sentences, err := table.Column(a.cfg.Source.SentenceColumn)
	if err != nil {
		return err
	}

	completed, err := a.store.Load()
	if err != nil {
		return err
	}
	if allCompleted(sentences, 0, completed) {
		color.New(color.FgGreen).Fprintf(os.Stdout, "All sentences already processed - nothing to resume.\n")
		return nil
	}

	records, failures, runErr := a.orch.Run(ctx, sentences, 0, false)
	return a.finishRun(records, failures, runErr)
}

// finishRun persists both result tables before surfacing any run
// error, so a failed checkpoint write cannot lose generated text.
func (a *app) finishRun(records []models.Record, failures []models.Failure, runErr error) error {
	if err := a.sink.AppendRecords(records); err != nil {
		return err
	}
	if err := a.sink.WriteFailures(failures); err != nil {
		return err
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			a.logger.Warn("Run interrupted, resume with mode 3 once ready")
			return fmt.Errorf("run interrupted (resume from the checkpoint with mode 3)")
		}
		return runErr
	}

	a.printSummary()
	return nil
}

func (a *app) printSummary() {
	stats := a.orch.GetStats()
	if stats == nil {
		return
	}

	fmt.Println()
	color.New(color.FgGreen).Fprintf(os.Stdout, "Narratives generated: %s\n", humanize.Comma(int64(stats.SuccessCount)))
	if stats.FailureCount > 0 {
		color.New(color.FgYellow).Fprintf(os.Stdout, "Failed sentences: %s (saved to %s for retry)\n",
			humanize.Comma(int64(stats.FailureCount)), a.cfg.Files.Failures)
	}
	if stats.SkippedTasks > 0 {
		fmt.Printf("Skipped (already completed): %s\n", humanize.Comma(int64(stats.SkippedTasks)))
	}
	fmt.Printf("Elapsed: %s\n", stats.TotalDuration.Round(time.Second))
}

// allCompleted reports whether every sentence index is already in the
// completed set. An empty sentence list counts as complete.
func allCompleted(sentences []string, startIndex int, completed map[int]bool) bool {
	for i := range sentences {
		if !completed[i+startIndex] {
			return false
		}
	}
	return true
}

// loadEnvFile loads KEY=VALUE pairs from a file into the environment.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}

	return nil
}

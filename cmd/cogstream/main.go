// Package main provides the entry point for the cogstream pipeline.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasterd/cogstream/internal/app"
	"github.com/rasterd/cogstream/internal/config"
	"github.com/rasterd/cogstream/internal/ports/input"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cogstream",
	Short: "cogstream - batch NetCDF to Cloud Optimized GeoTIFF pipeline",
	Long: `cogstream converts indexed raster datasets to Cloud Optimized GeoTIFFs
and ships them to object storage.

The pipeline runs as three cooperating commands:
  worklist   compute the source files still needing conversion
  convert    convert source files into per-dataset COG directories
  upload     watch the staging area and sync finished datasets to S3

Features:
  - Per-product conversion policies (templates, bands, resampling)
  - Multi-slice NetCDF time handling
  - Resumable staging layout (skip work that already exists)
  - Remote inventory diffing for incremental runs
  - Prometheus metrics`,
}

var worklistCmd = &cobra.Command{
	Use:   "worklist",
	Short: "List source files still needing conversion",
	Long: `Worklist queries the catalog index for a product's source files and
prints one path per line, ready to pipe into convert. With --diff-remote the
remote store's inventory is subtracted first; --deep opens each remaining
file to compare per-slice instead of per-file.`,
	RunE: runWorklist,
}

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert source files into staged COG datasets",
	Long: `Convert turns each source file into one dataset directory per time
slice: a metadata document plus one COG per band. Finished datasets are
promoted to the upload staging area. Source files are taken from the
arguments, or from stdin when none are given.`,
	RunE: runConvert,
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Watch the staging area and upload finished datasets",
	Long: `Upload polls the staging area and syncs each finished dataset to the
destination recorded at conversion time. The watcher exits once no dataset
has reached a terminal state for the idle timeout.`,
	RunE: runUpload,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("cogstream %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("output-dir", "", "staging area root directory")

	// Request flags shared by worklist and convert
	for _, cmd := range []*cobra.Command{worklistCmd, convertCmd} {
		cmd.Flags().String("product", "", "product name")
		cmd.Flags().Int("year", 0, "restrict to a year")
		cmd.Flags().Int("month", 0, "restrict to a month (requires --year)")
		_ = cmd.MarkFlagRequired("product")
	}
	worklistCmd.Flags().Bool("diff-remote", false, "subtract datasets already in the remote store")
	worklistCmd.Flags().Bool("deep", false, "open files to compare per time slice")

	convertCmd.Flags().Int("workers", 0, "parallel conversion workers")

	uploadCmd.Flags().Bool("retain", false, "keep uploaded datasets instead of deleting them")
	uploadCmd.Flags().Bool("event-wake", false, "scan immediately when a dataset arrives")
	uploadCmd.Flags().Bool("ops", false, "serve health, status and metrics over HTTP")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("output.dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag("conversion.workers", convertCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("upload.retain", uploadCmd.Flags().Lookup("retain"))
	_ = viper.BindPFlag("upload.event_wake", uploadCmd.Flags().Lookup("event-wake"))
	_ = viper.BindPFlag("ops.enabled", uploadCmd.Flags().Lookup("ops"))

	rootCmd.AddCommand(worklistCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads configuration and builds the application.
func setup() (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	application, err := app.New(cfg, logger, version)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return application, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runWorklist(cmd *cobra.Command, _ []string) error {
	application, err := setup()
	if err != nil {
		return err
	}

	product, _ := cmd.Flags().GetString("product")
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	diffRemote, _ := cmd.Flags().GetBool("diff-remote")
	deep, _ := cmd.Flags().GetBool("deep")

	ctx, cancel := signalContext()
	defer cancel()

	paths, err := application.Worklist(ctx, input.WorklistRequest{
		Product:    product,
		Year:       year,
		Month:      month,
		DiffRemote: diffRemote,
		Deep:       deep,
	})
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Println(path)
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	application, err := setup()
	if err != nil {
		return err
	}

	product, _ := cmd.Flags().GetString("product")
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")

	files := args
	if len(files) == 0 {
		files, err = readFileList(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading file list from stdin: %w", err)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files given")
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := application.Convert(ctx, input.ConvertRequest{
		Product: product,
		Files:   files,
		Year:    year,
		Month:   month,
	})
	if err != nil {
		return err
	}

	fmt.Printf("converted %d of %d files, %d datasets staged\n",
		result.Converted, result.Total, result.DatasetsStaged)
	if result.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%d files failed:\n", result.Failed)
		for _, path := range result.FailedFiles {
			fmt.Fprintf(os.Stderr, "  %s\n", path)
		}
	}
	return nil
}

func runUpload(_ *cobra.Command, _ []string) error {
	application, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := application.Upload(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// readFileList reads newline-separated paths, skipping blanks.
func readFileList(r *os.File) ([]string, error) {
	var files []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			files = append(files, line)
		}
	}
	return files, scanner.Err()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	// Logs go to stderr so worklist output pipes cleanly into convert.
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

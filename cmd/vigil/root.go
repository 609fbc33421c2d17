package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "LLM quality-risk observability service",
	Long: `vigil answers prompts with a configured model, scores every exchange for
hallucination risk from self-confidence, hedging and verbosity signals, and
ships metrics and a log event per request to the telemetry sink.

Deployment settings come from the environment (MODEL_API_KEY, SINK,
DATADOG_API_KEY, ...). Evaluation tuning comes from an optional YAML file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cmd.SetContext(clog.WithLogger(cmd.Context(), newLogger(logLevel)))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "evaluation config file (overrides VIGIL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) *clog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return clog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

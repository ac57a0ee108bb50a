package main

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/panshare/quarkshare/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagListenAddr string
	flagVerbose    bool
	flagJSONLogs   bool
)

// newRootCmd builds the fully-assembled root command. Called once from
// main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quarkshare",
		Short:   "Quark drive transfer-and-share API server",
		Long:    "An HTTP API that transfers Quark drive share links into your own storage and republishes them under fresh share links.",
		Version: version,
		// Silence Cobra's default error/usage printing, handled in main.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "force JSON log output")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadConfig resolves the effective configuration: defaults, then the
// config file (flag or QUARKSHARE_CONFIG), then environment overrides.
func loadConfig() (*config.Config, error) {
	path := flagConfigPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}

	return config.LoadOrDefault(path)
}

// newLogger builds the process logger per config and flags: text when
// stderr is a terminal, JSON otherwise, unless the config pins a
// format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	useJSON := flagJSONLogs || cfg.LogFormat == "json"
	if cfg.LogFormat == "auto" && !flagJSONLogs {
		useJSON = !isatty.IsTerminal(os.Stderr.Fd())
	}

	if useJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

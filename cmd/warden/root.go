package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/config"
	"github.com/devblac/warden/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
	rootCmd  = &cobra.Command{
		Use:   "warden",
		Short: "Two-chain bridge relayer: watches bridge events and settles them on the counterpart chain",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $LOG_LEVEL or info")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		validateCmd,
		relayCmd,
		reconcileCmd,
		stateCmd,
		exportCmd,
	)
}

// Execute runs the root command tree.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// exitCode maps an error class to the process exit status.
func exitCode(err error) int {
	switch bridge.Classify(err) {
	case bridge.KindNone:
		return 0
	case bridge.KindConfig:
		return 2
	case bridge.KindPermanent:
		return 3
	default:
		return 1
	}
}

func level() string {
	if logLevel != "" {
		return logLevel
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		return v
	}
	return "info"
}

// newLogger builds the console logger, fanning out to the audit log when
// global.audit_log is set. The returned closer is never nil.
func newLogger(cfg *config.Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	if cfg == nil || cfg.Global.AuditLog == "" {
		return logging.NewWriter(console, level()), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.Resolve(cfg.Global.AuditLog), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, bridge.ConfigErrorf("open audit log: %v", err)
	}
	return logging.WithAudit(level(), console, f), f, nil
}

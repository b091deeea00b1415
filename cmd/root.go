// Package cmd implements the i3pm command line interface. Every command
// except `daemon` talks to the running daemon over its JSON-RPC socket.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	viperlib "github.com/spf13/viper"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/paths"
	"github.com/vpittamp/i3pm/internal/rpc"
)

// Exit codes shared by all subcommands.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitSIGINT = 130
)

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool
	jsonFlag  bool

	viper = viperlib.New()
)

var rootCmd = &cobra.Command{
	Use:     "i3pm",
	Short:   "Project-aware window manager control plane for Sway/i3",
	Long: `i3pm watches compositor events, classifies windows by project
membership, enforces workspace placement under project switching, and
exposes everything over a local JSON-RPC socket.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/i3pm/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also: I3PM_DEBUG=1)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false,
		"print machine-readable JSON output")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("event_ring_capacity", defaults.EventRingCapacity)
	viper.SetDefault("history_capacity", defaults.HistoryCapacity)
	viper.SetDefault("auto_save_keep", defaults.AutoSaveKeep)
	viper.SetDefault("badge_min_clear_age", defaults.BadgeMinClearAge)
	viper.SetDefault("launch_timeout", defaults.LaunchTimeout)
	viper.SetDefault("correlation_window", defaults.CorrelationWindow)
	viper.SetDefault("terminal.preferred", defaults.Terminal.Preferred)
	viper.SetDefault("terminal.fallback", defaults.Terminal.Fallback)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(paths.DaemonConfigDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viperlib.ConfigFileNotFoundError
		if errors.As(err, &configNotFound) {
			defaultPath := filepath.Join(paths.DaemonConfigDir(), "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// initLogging enables the debug log when requested.
func initLogging(prefix string) func() {
	debug := os.Getenv("I3PM_DEBUG") != "" || debugFlag
	if !debug {
		return func() {}
	}
	logPath := os.Getenv("I3PM_LOG")
	if logPath == "" {
		logPath = filepath.Join(paths.DaemonConfigDir(), prefix+".log")
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		return func() {}
	}
	log.Info(log.CatConfig, "logging enabled", "path", logPath)
	return cleanup
}

// dialDaemon connects to the daemon socket with a short timeout.
func dialDaemon(ctx context.Context) (*rpc.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rpc.Dial(dialCtx, paths.DaemonSocket())
}

// printError renders a daemon error with its suggestion, or a JSON object
// in --json mode.
func printError(err error) {
	if jsonFlag {
		printJSON(map[string]any{"error": errorPayload(err)})
		return
	}
	if de, ok := errdefs.AsDaemonError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s\n", de.Message)
		if de.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", de.Suggestion)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func errorPayload(err error) map[string]any {
	if de, ok := errdefs.AsDaemonError(err); ok {
		payload := map[string]any{"code": de.Code, "message": de.Message}
		if de.Suggestion != "" {
			payload["suggestion"] = de.Suggestion
		}
		if de.Context != nil {
			payload["context"] = de.Context
		}
		return payload
	}
	return map[string]any{"code": rpc.CodeInternalError, "message": err.Error()}
}

// Execute runs the CLI and returns the process exit code: 0 on success,
// 1 on IPC/validation errors, 130 on SIGINT.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return exitSIGINT
		}
		printError(err)
		return exitError
	}
	return exitOK
}

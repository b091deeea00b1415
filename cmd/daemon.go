package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpittamp/i3pm/internal/daemon"
	"github.com/vpittamp/i3pm/internal/paths"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the i3pm control plane daemon",
	Long: `Run the control plane daemon: it subscribes to compositor events,
maintains the window/project model, and serves the JSON-RPC API on
` + "`$XDG_RUNTIME_DIR/" + paths.SocketName + "`" + ` for CLIs and status bars.

Example:
  i3pm daemon            # run in the foreground
  i3pm daemon --debug    # with debug logging`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	cleanup := initLogging("daemon")
	defer cleanup()

	d, err := daemon.New(daemon.Options{Config: cfg})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()

	fmt.Printf("i3pm daemon started, socket %s\n", paths.DaemonSocket())

	select {
	case sig := <-sigCh:
		fmt.Printf("\nreceived %s, shutting down...\n", sig)
		cancel()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	d.Shutdown(shutdownCtx)

	fmt.Println("daemon stopped")
	return nil
}

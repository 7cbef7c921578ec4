// ABOUTME: Watch command for the bloom CLI
// ABOUTME: Runs the live session dashboard TUI

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bloomapp/bloom/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch session and device activity live",
	Long: `Open a live dashboard showing the session state, the device identity and
a log of lifecycle events as they happen. Session restoration runs in the
background while the dashboard is up.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runWatch(ctx)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatch starts the dashboard and returns exit code
func runWatch(ctx context.Context) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer app.Close()

	// Subscribe before kicking off restoration so its events land in the log.
	w := tui.NewWatch(app.session, app.device, app.bus, app.queue.Backend())
	defer w.Close()

	app.session.Initialize(ctx)

	if err := tui.Run(w); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

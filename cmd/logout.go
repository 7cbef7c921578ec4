// ABOUTME: Logout command for the bloom CLI
// ABOUTME: Deletes the stored credential and clears persisted session metadata

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bloomapp/bloom/internal/models"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of the media server",
	Long: `Delete the stored access token for the current account and clear the
persisted session metadata. Works offline; no server round-trip is made.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogout(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

// runLogout executes the logout and returns an exit code
func runLogout(ctx context.Context, w io.Writer) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer app.Close()

	if app.cfg.Session() == (models.SessionMeta{}) {
		fmt.Fprintln(w, "Not logged in.")
		return 0
	}

	app.session.Logout(ctx)
	fmt.Fprintln(w, "Logged out.")
	return 0
}

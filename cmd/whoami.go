// ABOUTME: Whoami command for the bloom CLI
// ABOUTME: Restores the persisted session and reports the authenticated user

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Long: `Restore the persisted session, validate it against the server, and print
the authenticated user. Exits non-zero when no valid session exists.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runWhoami(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

// runWhoami executes the lookup and returns an exit code
func runWhoami(ctx context.Context, w io.Writer) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer app.Close()

	if err := app.restore(ctx); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	session := app.session.Session()
	if !session.IsAuthenticated() {
		fmt.Fprintln(w, "Not logged in.")
		return 1
	}

	fmt.Fprintf(w, "%s on %s\n", session.Username, session.ServerURL)
	return 0
}

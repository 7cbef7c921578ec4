// ABOUTME: Login command for the bloom CLI
// ABOUTME: Authenticates against a media server and persists the session

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a media server",
	Long: `Authenticate against a media server and persist the session.

The access token goes into the platform secret store; only non-secret
session metadata is written to the config file. Values missing from flags
and environment are prompted for interactively.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogin(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted when omitted)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted; the prompt is masked)")
	rootCmd.AddCommand(loginCmd)
}

// runLogin executes the login flow and returns an exit code
func runLogin(ctx context.Context, w io.Writer) int {
	server := GetServerURL()
	username := loginUsername
	password := loginPassword

	if server == "" || username == "" || password == "" {
		if err := promptLogin(&server, &username, &password); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer app.Close()

	if err := app.session.Authenticate(ctx, server, username, password); err != nil {
		fmt.Fprintln(w, err)
		return 1
	}

	session := app.session.Session()
	fmt.Fprintf(w, "Logged in as %s on %s\n", session.Username, session.ServerURL)
	if !app.queue.Available() {
		fmt.Fprintln(w, "Warning: no secret store available, the session will not survive this run.")
	}
	return 0
}

func promptLogin(server, username, password *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Placeholder("https://media.example.com").
				Value(server).
				Validate(validateRequired("server URL")),
			huh.NewInput().
				Title("Username").
				Value(username).
				Validate(validateRequired("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(validateRequired("password")),
		).Title("Log in"),
	).WithTheme(huh.ThemeBase())

	return form.Run()
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

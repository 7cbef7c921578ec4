// ABOUTME: Status command for the bloom CLI
// ABOUTME: Shows session state, device identity and secret store health

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bloomapp/bloom/internal/secrets"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and device status",
	Long: `Display the current session state, the device identity and its rotation
policy, and the secret store backend in use. The persisted session is
restored and validated first, so the reported state reflects the server.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runStatus(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusInfo is the machine-readable status snapshot
type statusInfo struct {
	State                string   `json:"state"`
	ServerURL            string   `json:"server_url,omitempty"`
	UserID               string   `json:"user_id,omitempty"`
	Username             string   `json:"username,omitempty"`
	TokenPresent         bool     `json:"token_present"`
	DeviceID             string   `json:"device_id"`
	AutoRotation         bool     `json:"auto_rotation"`
	RotationIntervalDays int      `json:"rotation_interval_days"`
	LastRotation         string   `json:"last_rotation,omitempty"`
	StoreBackend         string   `json:"store_backend"`
	StoreAvailable       bool     `json:"store_available"`
	StoredAccounts       []string `json:"stored_accounts,omitempty"`
}

// runStatus executes the status check and returns exit code
func runStatus(ctx context.Context, w io.Writer) int {
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

	info := collectStatus(app)

	if IsJSONOutput() {
		fmt.Fprintln(w, formatStatusJSON(info))
	} else {
		fmt.Fprintln(w, formatStatusHuman(info))
	}

	if info.State != "authenticated" {
		return 1
	}
	return 0
}

// collectStatus gathers the status snapshot from the wired components
func collectStatus(app *app) *statusInfo {
	session := app.session.Session()
	rotation := app.device.Rotation()

	info := &statusInfo{
		State:                app.session.State().String(),
		ServerURL:            session.ServerURL,
		UserID:               session.UserID,
		Username:             session.Username,
		TokenPresent:         session.AccessToken != "",
		DeviceID:             app.device.DeviceID(),
		AutoRotation:         rotation.AutoRotation,
		RotationIntervalDays: rotation.IntervalDays,
		StoreBackend:         app.queue.Backend(),
		StoreAvailable:       app.queue.Available(),
	}
	if !rotation.LastRotation.IsZero() {
		info.LastRotation = rotation.LastRotation.Format("2006-01-02")
	}

	// Account keys are diagnostics, not secrets; the keys name accounts, the
	// tokens stay in the store.
	if app.queue.Available() {
		err := app.queue.Do(func(s secrets.Store) error {
			accounts, err := s.ListAccounts(secrets.ServiceName)
			if err != nil {
				return err
			}
			info.StoredAccounts = accounts
			return nil
		})
		if err != nil {
			slog.Warn("Could not enumerate stored accounts", "error", err)
		}
	}
	return info
}

// formatStatusHuman formats the status snapshot for human readability
func formatStatusHuman(info *statusInfo) string {
	token := "absent"
	if info.TokenPresent {
		token = "present"
	}
	store := "unavailable"
	if info.StoreAvailable {
		store = "available"
	}
	rotation := "manual"
	if info.AutoRotation {
		rotation = fmt.Sprintf("every %d days", info.RotationIntervalDays)
	}
	if info.LastRotation != "" {
		rotation += fmt.Sprintf(", last %s", info.LastRotation)
	}

	return fmt.Sprintf(`Session:   %s
Server:    %s
User:      %s
Token:     %s

Device:    %s
Rotation:  %s
Store:     %s [%s]`,
		info.State,
		orDash(info.ServerURL),
		orDash(info.Username),
		token,
		info.DeviceID,
		rotation,
		info.StoreBackend, store)
}

// formatStatusJSON formats the status snapshot as JSON
func formatStatusJSON(info *statusInfo) string {
	data, _ := json.MarshalIndent(info, "", "  ")
	return string(data)
}

// orDash substitutes a dash for empty values in human output
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

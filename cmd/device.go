// ABOUTME: Device commands for the bloom CLI
// ABOUTME: Shows, rotates and configures the device identity

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bloomapp/bloom/internal/models"
)

var (
	deviceRotationInterval int
	deviceAutoRotation     bool
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage the device identity",
	Long: `Inspect and manage the device identifier this client presents to the
server, including its rotation schedule.`,
}

var deviceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the device identity and rotation policy",
	Run: func(cmd *cobra.Command, args []string) {
		exitCode := runDeviceShow(os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var deviceRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate the device identifier now",
	Long: `Generate a new device identifier and migrate the stored session token to
it. The persisted session is restored first so the migration knows which
account the token belongs to.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runDeviceRotate(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var deviceSetRotationCmd = &cobra.Command{
	Use:   "set-rotation",
	Short: "Configure automatic device rotation",
	Long: `Set the rotation interval in days (0-365, 0 disables time-based rotation)
and toggle automatic rotation. Enabling auto-rotation re-evaluates the
policy immediately, so an overdue device id rotates right away.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitCode := runDeviceSetRotation(os.Stdout,
			cmd.Flags().Changed("interval"), cmd.Flags().Changed("auto"))
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	deviceSetRotationCmd.Flags().IntVar(&deviceRotationInterval, "interval", 30, "rotation interval in days (0-365)")
	deviceSetRotationCmd.Flags().BoolVar(&deviceAutoRotation, "auto", false, "enable automatic rotation")

	deviceCmd.AddCommand(deviceShowCmd)
	deviceCmd.AddCommand(deviceRotateCmd)
	deviceCmd.AddCommand(deviceSetRotationCmd)
	rootCmd.AddCommand(deviceCmd)
}

// deviceInfo is the machine-readable device snapshot
type deviceInfo struct {
	DeviceID             string `json:"device_id"`
	AutoRotation         bool   `json:"auto_rotation"`
	RotationIntervalDays int    `json:"rotation_interval_days"`
	LastRotation         string `json:"last_rotation,omitempty"`
}

// runDeviceShow prints the device identity and returns exit code
func runDeviceShow(w io.Writer) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer app.Close()

	rotation := app.device.Rotation()
	info := &deviceInfo{
		DeviceID:             app.device.DeviceID(),
		AutoRotation:         rotation.AutoRotation,
		RotationIntervalDays: rotation.IntervalDays,
	}
	if !rotation.LastRotation.IsZero() {
		info.LastRotation = rotation.LastRotation.Format("2006-01-02")
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Fprintln(w, string(data))
	} else {
		fmt.Fprintf(w, "Device:    %s\nRotation:  %s\n", info.DeviceID, formatRotationSettings(rotation))
	}
	return 0
}

// runDeviceRotate rotates the device id and returns exit code
func runDeviceRotate(ctx context.Context, w io.Writer) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer app.Close()

	// Restore before rotating so the token migration knows the account.
	if err := app.restore(ctx); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	oldID := app.device.DeviceID()
	if err := app.device.Rotate(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	fmt.Fprintf(w, "Rotated device identity: %s -> %s\n", oldID, app.device.DeviceID())
	return 0
}

// runDeviceSetRotation applies the changed rotation flags and returns exit code
func runDeviceSetRotation(w io.Writer, setInterval, setAuto bool) int {
	if !setInterval && !setAuto {
		fmt.Fprintln(w, "Nothing to change. Specify --interval and/or --auto.")
		return 1
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer app.Close()

	if setInterval {
		if err := app.device.SetRotationInterval(deviceRotationInterval); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	}
	if setAuto {
		if err := app.device.SetAutoRotation(deviceAutoRotation); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	}

	fmt.Fprintf(w, "Device:    %s\nRotation:  %s\n", app.device.DeviceID(), formatRotationSettings(app.device.Rotation()))
	return 0
}

// formatRotationSettings renders rotation settings for human output
func formatRotationSettings(r models.RotationSettings) string {
	s := "manual"
	if r.AutoRotation {
		s = fmt.Sprintf("every %d days", r.IntervalDays)
	}
	if !r.LastRotation.IsZero() {
		s += fmt.Sprintf(", last %s", r.LastRotation.Format("2006-01-02"))
	}
	return s
}

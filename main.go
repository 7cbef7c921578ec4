// ABOUTME: Entry point for the bloom CLI
// ABOUTME: Command-line client for Jellyfin-compatible media servers

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/bloomapp/bloom/cmd"
)

func main() {
	// Optional .env so BLOOM_* settings can live next to the binary.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

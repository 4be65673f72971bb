package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "dashgate",
	Short: "dashgate is the admin dashboard gateway",
	Long: `The server-side gateway of the admin dashboard: CSRF token guard,
session cookie management, and an authenticated proxy to the backend API.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

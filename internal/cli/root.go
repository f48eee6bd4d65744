// Package cli implements the streakd command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "streakd",
	Short: "streakd: streak scoring microservice",
	Long: `streakd tracks and validates user engagement streaks.

Per user and per activity type it keeps a continuous streak of qualifying
daily actions, enforcing deadline and grace-period rules and exposing a
tier classification over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/streakforge/streakd/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streakd API server",
	Long:  `Start the streak scoring HTTP API.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if serveHost != "" {
		d.Cfg.Set("api.host", serveHost)
	}
	if servePort > 0 {
		d.Cfg.Set("api.port", int64(servePort))
	}

	return d.Serve(context.Background())
}

package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/streakforge/streakd/internal/config"
	"github.com/streakforge/streakd/internal/health"
)

func init() {
	statusCmd.Flags().StringVar(&statusHost, "host", "", "Server host (overrides config)")
	statusCmd.Flags().IntVar(&statusPort, "port", 0, "Server port (overrides config)")
	rootCmd.AddCommand(statusCmd)
}

var (
	statusHost string
	statusPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running streakd server's health",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	host := cfg.String("api.host", "127.0.0.1")
	if statusHost != "" {
		host = statusHost
	}
	port := cfg.Int("api.port", 8420)
	if statusPort > 0 {
		port = statusPort
	}

	base := fmt.Sprintf("http://%s:%d", host, port)
	client := &http.Client{Timeout: 5 * time.Second}
	st, err := fetchStatus(client, base)
	if err != nil {
		return fmt.Errorf("streakd server not reachable at %s: %w", base, err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SERVER\t%s\n", base)
	fmt.Fprintf(w, "VERSION\t%s\n", st.Version)
	fmt.Fprintf(w, "STATUS\t%s\n", st.Overall)
	if err := w.Flush(); err != nil {
		return err
	}
	if len(st.Checks) == 0 {
		return nil
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tHEALTHY\tERROR")
	for _, c := range st.Checks {
		msg := c.Error
		if msg == "" {
			msg = "-"
		}
		fmt.Fprintf(w, "%s\t%t\t%s\n", c.Name, c.Healthy, msg)
	}
	return w.Flush()
}

type serverStatus struct {
	Version string
	Overall string
	Checks  []health.Status
}

// fetchStatus queries a running server's /version and /health endpoints.
// A degraded server answers /health with 503 and a JSON body; that is
// still a successful fetch.
func fetchStatus(client *http.Client, base string) (*serverStatus, error) {
	var st serverStatus

	resp, err := client.Get(base + "/version")
	if err != nil {
		return nil, err
	}
	var version struct {
		ServiceAPIVersion string `json:"service_api_version"`
	}
	err = json.NewDecoder(resp.Body).Decode(&version)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	st.Version = version.ServiceAPIVersion

	resp, err = client.Get(base + "/health")
	if err != nil {
		return nil, err
	}
	var h struct {
		Status string          `json:"status"`
		Checks []health.Status `json:"checks"`
	}
	err = json.NewDecoder(resp.Body).Decode(&h)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	st.Overall = h.Status
	st.Checks = h.Checks
	return &st, nil
}

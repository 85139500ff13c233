package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	queueStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// queueStats mirrors the GET /api/v1/queues response entry.
type queueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// newStatsCommand creates the 'reverie stats' command, a thin client of the
// running service's queue stats endpoint.
func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics from a running Reverie server",
		RunE:  runStats,
	}

	cmd.Flags().String("server", "http://127.0.0.1:8080", "Base URL of the running server")
	cmd.Flags().Bool("json", false, "Output statistics in JSON format")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server")
	outputJSON, _ := cmd.Flags().GetBool("json")

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, serverURL+"/api/v1/queues", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("query server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query server: status %s", resp.Status)
	}

	var stats map[string]queueStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if outputJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printQueueStats(stats)
	return nil
}

func printQueueStats(stats map[string]queueStats) {
	fmt.Println(titleStyle.Render("Reverie Queues"))
	fmt.Println()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := stats[name]
		fmt.Println(queueStyle.Render(name))
		fmt.Printf("  Pending:    %d\n", s.Pending)
		fmt.Printf("  Processing: %d\n", s.Processing)
		fmt.Printf("  %s\n", color.GreenString("Completed:  %d", s.Completed))
		if s.Failed > 0 {
			fmt.Printf("  %s\n", color.RedString("Failed:     %d", s.Failed))
		} else {
			fmt.Printf("  Failed:     %d\n", s.Failed)
		}
		fmt.Println(subtleStyle.Render(fmt.Sprintf("  total %d", s.Total)))
		fmt.Println()
	}
}

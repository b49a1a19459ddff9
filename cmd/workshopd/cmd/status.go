package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/scheduler"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue length, per-role utilization, and the current bottleneck",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(apiAddr + "/status")
	if err != nil {
		return fmt.Errorf("reach workshopd at %s: %w", apiAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workshopd returned %s", resp.Status)
	}

	var snap scheduler.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	fmt.Printf("Queue length:    %d\n", snap.Metrics.QueueLength)
	fmt.Printf("Success rate:    %.0f%%\n", snap.Metrics.SuccessRate*100)
	fmt.Printf("Throughput:      %.1f/hr\n", snap.Metrics.Throughput)
	if snap.Metrics.BottleneckRole != "" {
		fmt.Printf("Bottleneck:      %s\n", snap.Metrics.BottleneckRole)
	}

	roles := make([]model.AgentRole, 0, len(snap.Capacity))
	for role := range snap.Capacity {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROLE\tACTIVE\tCAPACITY")
	for _, role := range roles {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", role, snap.Active[role], snap.Capacity[role])
	}
	return w.Flush()
}

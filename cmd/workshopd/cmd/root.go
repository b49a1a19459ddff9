package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	apiAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "workshopd",
	Short: "Multi-agent task scheduling and supervision daemon",
	Long: `workshopd schedules tasks across a fixed pool of role-specialized
agents, retries failed attempts with adaptive backoff, and escalates an
agent to a human supervisor when it gets stuck.

Examples:
  workshopd serve --config workshopd.yaml
  workshopd status
  workshopd queue add --role implementer --title "fix the flaky test"`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to workshopd.yaml (defaults built in if omitted)")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://localhost:8080", "address of a running workshopd's HTTP API")
}

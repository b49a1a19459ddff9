package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/johnhkchen/dfcoder/internal/model"
)

var (
	queueRole        string
	queueTitle       string
	queueDescription string
	queuePriority    string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Add tasks to the task queue",
}

var queueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue a new task for a role",
	RunE:  runQueueAdd,
}

func init() {
	queueAddCmd.Flags().StringVar(&queueRole, "role", "", "agent role: scaffolder, implementer, debugger, tester (required)")
	queueAddCmd.Flags().StringVar(&queueTitle, "title", "", "short task title")
	queueAddCmd.Flags().StringVar(&queueDescription, "description", "", "task description")
	queueAddCmd.Flags().StringVar(&queuePriority, "priority", "normal", "priority: low, normal, high, critical")
	_ = queueAddCmd.MarkFlagRequired("role")

	queueCmd.AddCommand(queueAddCmd)
	rootCmd.AddCommand(queueCmd)
}

func parsePriority(s string) (model.TaskPriority, error) {
	switch s {
	case "low":
		return model.PriorityLow, nil
	case "normal":
		return model.PriorityNormal, nil
	case "high":
		return model.PriorityHigh, nil
	case "critical":
		return model.PriorityCritical, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	priority, err := parsePriority(queuePriority)
	if err != nil {
		return err
	}

	body, err := json.Marshal(struct {
		ID          string             `json:"id"`
		Title       string             `json:"title"`
		Description string             `json:"description"`
		Role        model.AgentRole    `json:"role"`
		Priority    model.TaskPriority `json:"priority"`
	}{
		ID:          uuid.NewString(),
		Title:       queueTitle,
		Description: queueDescription,
		Role:        model.AgentRole(queueRole),
		Priority:    priority,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(apiAddr+"/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reach workshopd at %s: %w", apiAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("workshopd returned %s: %s", resp.Status, apiErr.Error)
	}

	var task model.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}
	fmt.Printf("queued task %s (%s, priority %s)\n", task.ID, task.Role, queuePriority)
	return nil
}

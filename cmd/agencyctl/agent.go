package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage the agent pool",
	}
	cmd.AddCommand(newAgentListCommand())
	cmd.AddCommand(newAgentRegisterCommand())
	cmd.AddCommand(newAgentShowCommand())
	cmd.AddCommand(newAgentStatusCommand())
	cmd.AddCommand(newAgentDeregisterCommand())
	cmd.AddCommand(newAgentAssignmentsCommand())
	return cmd
}

func newAgentListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.get("/api/v1/agents", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func newAgentRegisterCommand() *cobra.Command {
	var (
		id        string
		name      string
		agentType string
		tools     string
		domains   string
		maxTasks  int
	)
	cmd := &cobra.Command{
		Use:     "register",
		Short:   "Register a new agent",
		Example: `  agencyctl agent register --name=scraper-1 --type=browser --tools=navigate,extract,click --max-tasks=3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			body := map[string]interface{}{
				"id":   id,
				"name": name,
				"type": agentType,
				"capabilities": map[string]interface{}{
					"tools":                splitList(tools),
					"domains":              splitList(domains),
					"max_concurrent_tasks": maxTasks,
					"quality":              0.5,
					"reliability":          0.5,
				},
			}
			data, err := client.post("/api/v1/agents", body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Agent ID (generated when empty)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Agent name")
	cmd.Flags().StringVarP(&agentType, "type", "t", "general", "Agent type: browser, research, workflow, general")
	cmd.Flags().StringVar(&tools, "tools", "", "Tool capabilities (comma-separated)")
	cmd.Flags().StringVar(&domains, "domains", "", "Domain capabilities (comma-separated)")
	cmd.Flags().IntVar(&maxTasks, "max-tasks", 1, "Maximum concurrent tasks")
	return cmd
}

func newAgentShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.get(fmt.Sprintf("/api/v1/agents/%s", args[0]), nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func newAgentStatusCommand() *cobra.Command {
	var (
		status string
		health float64
	)
	cmd := &cobra.Command{
		Use:   "status <agent-id>",
		Short: "Update an agent's status or health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			body := map[string]interface{}{}
			if status != "" {
				body["status"] = status
			}
			if cmd.Flags().Changed("health") {
				body["health"] = health
			}
			data, err := client.post(fmt.Sprintf("/api/v1/agents/%s/status", args[0]), body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "New status: idle, busy, offline, error")
	cmd.Flags().Float64Var(&health, "health", 1.0, "Health score between 0 and 1")
	return cmd
}

func newAgentDeregisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deregister <agent-id>",
		Short: "Remove an agent from the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.delete(fmt.Sprintf("/api/v1/agents/%s", args[0]))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func newAgentAssignmentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assignments <agent-id>",
		Short: "List an agent's active assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.get(fmt.Sprintf("/api/v1/agents/%s/assignments", args[0]), nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Submit and manage tasks",
	}
	cmd.AddCommand(newTaskSubmitCommand())
	cmd.AddCommand(newTaskAssignmentCommand())
	cmd.AddCommand(newTaskCompleteCommand())
	cmd.AddCommand(newTaskFailCommand())
	cmd.AddCommand(newDistributeCommand())
	return cmd
}

func newTaskSubmitCommand() *cobra.Command {
	var (
		description  string
		priority     string
		tool         string
		capabilities string
		agentType    string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new task",
		Example: `  agencyctl task submit --description="Scrape pricing page" --priority=high
  agencyctl task submit --description="Fill lead form" --tool=type --capabilities=browser,forms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			body := map[string]interface{}{
				"description": description,
				"priority":    priority,
			}
			if tool != "" {
				body["tool"] = tool
			}
			requirements := map[string]interface{}{}
			if capabilities != "" {
				caps := strings.Split(capabilities, ",")
				for i := range caps {
					caps[i] = strings.TrimSpace(caps[i])
				}
				requirements["capabilities"] = caps
			}
			if agentType != "" {
				requirements["agent_type"] = agentType
			}
			if len(requirements) > 0 {
				body["requirements"] = requirements
			}

			data, err := client.post("/api/v1/tasks", body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "normal", "Priority: critical, high, normal, low, background")
	cmd.Flags().StringVar(&tool, "tool", "", "Primary tool the task will invoke")
	cmd.Flags().StringVar(&capabilities, "capabilities", "", "Required capabilities (comma-separated)")
	cmd.Flags().StringVar(&agentType, "agent-type", "", "Required agent type: browser, research, workflow, general")
	return cmd
}

func newTaskAssignmentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assignment <task-id>",
		Short: "Show the active assignment for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.get(fmt.Sprintf("/api/v1/tasks/%s/assignment", args[0]), nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func newTaskCompleteCommand() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Report successful completion of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			body := map[string]interface{}{
				"result": map[string]interface{}{
					"success": true,
					"message": message,
				},
			}
			data, err := client.post(fmt.Sprintf("/api/v1/tasks/%s/complete", args[0]), body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Result message")
	return cmd
}

func newTaskFailCommand() *cobra.Command {
	var (
		errMsg string
		retry  bool
	)
	cmd := &cobra.Command{
		Use:   "fail <task-id>",
		Short: "Report failure of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			body := map[string]interface{}{
				"error": errMsg,
				"retry": retry,
			}
			data, err := client.post(fmt.Sprintf("/api/v1/tasks/%s/fail", args[0]), body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&errMsg, "error", "e", "", "Failure reason")
	cmd.Flags().BoolVar(&retry, "retry", false, "Re-enqueue the task for another attempt")
	return cmd
}

func newDistributeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute",
		Short: "Run one distribution pass over the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.post("/api/v1/distribute", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

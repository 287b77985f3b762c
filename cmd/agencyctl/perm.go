package main

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newPermissionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perm",
		Short: "Inspect execution permissions and quota",
	}
	cmd.AddCommand(newPermCheckCommand())
	cmd.AddCommand(newPermLimitsCommand())
	cmd.AddCommand(newPermSummaryCommand())
	return cmd
}

func newPermCheckCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:     "check <tool>",
		Short:   "Check whether a tool may be executed",
		Args:    cobra.ExactArgs(1),
		Example: `  agencyctl perm check shell_exec`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			body := map[string]string{"tool": args[0]}
			if userID != "" {
				body["user_id"] = userID
			}
			data, err := client.post("/api/v1/permissions/check", body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Check for another user (admin only)")
	return cmd
}

func newPermLimitsCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Show execution limits and current usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			params := url.Values{}
			if userID != "" {
				params.Set("user_id", userID)
			}
			data, err := client.get("/api/v1/permissions/limits", params)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Query another user (admin only)")
	return cmd
}

func newPermSummaryCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show permission level, allowed tools and quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			params := url.Values{}
			if userID != "" {
				params.Set("user_id", userID)
			}
			data, err := client.get("/api/v1/permissions/summary", params)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Query another user (admin only)")
	return cmd
}

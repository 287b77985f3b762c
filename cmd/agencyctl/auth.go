package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication and API key management",
	}
	cmd.AddCommand(newLoginCommand())
	cmd.AddCommand(newUserCreateCommand())
	cmd.AddCommand(newKeyCommand())
	return cmd
}

// readPassword prompts for a password with hidden input
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(passwordBytes), nil
}

func newLoginCommand() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a bearer token",
		Example: `  agencyctl auth login --username=admin
  export AGENCY_TOKEN=$(agencyctl auth login -u admin | jq -r .token)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("username is required")
			}
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			client := newClient()
			data, err := client.post("/api/v1/auth/login", map[string]string{
				"username": username,
				"password": password,
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var (
		username string
		email    string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "user-create",
		Short: "Create a user (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("username is required")
			}
			password, err := readPassword("New user password: ")
			if err != nil {
				return err
			}

			client := newClient()
			data, err := client.post("/api/v1/auth/users", map[string]string{
				"username": username,
				"email":    email,
				"role":     role,
				"password": password,
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", "member", "Role: admin, member")
	return cmd
}

func newKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
	}

	var (
		name      string
		scopes    string
		expiresIn int
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the key value is shown only once)",
		Example: `  agencyctl auth key create --name=ci
  agencyctl auth key create --name=scraper --scopes=agent:execute:safe,agent:execute:moderate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("key name is required")
			}
			body := map[string]interface{}{
				"name":       name,
				"expires_in": expiresIn,
			}
			if scopes != "" {
				parts := strings.Split(scopes, ",")
				for i := range parts {
					parts[i] = strings.TrimSpace(parts[i])
				}
				body["scopes"] = parts
			}

			client := newClient()
			data, err := client.post("/api/v1/auth/keys", body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Key name (required)")
	createCmd.Flags().StringVar(&scopes, "scopes", "", "Key scopes (comma-separated), empty for full access")
	createCmd.Flags().IntVar(&expiresIn, "expires-in", 0, "Expiry in seconds, 0 for no expiry")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.get("/api/v1/auth/keys", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.delete(fmt.Sprintf("/api/v1/auth/keys/%s", args[0]))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	})

	return cmd
}

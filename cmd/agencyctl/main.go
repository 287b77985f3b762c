package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	serverURL string
	authToken string
	apiKey    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agencyctl",
		Short: "Agency CLI - interact with your agencyd server",
		Long: `agencyctl is a command-line interface for interacting with agencyd servers.
All output is structured JSON (pipe through jq for human-readable formatting).`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", getDefaultServer(), "agencyd server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("AGENCY_TOKEN"), "Bearer token for authentication")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("AGENCY_API_KEY"), "API key for authentication")

	// Add subcommands
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newAgentCommand())
	rootCmd.AddCommand(newPermissionCommand())
	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newEventCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getDefaultServer() string {
	if server := os.Getenv("AGENCY_SERVER"); server != "" {
		return server
	}
	return "http://localhost:8080"
}

// --- HTTP client ---

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func newClient() *Client {
	return &Client{
		BaseURL: serverURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(method, path string, params url.Values, data interface{}) ([]byte, error) {
	u := fmt.Sprintf("%s%s", c.BaseURL, path)
	if params != nil {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		body = strings.NewReader(string(jsonData))
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	} else if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func (c *Client) get(path string, params url.Values) ([]byte, error) {
	return c.do("GET", path, params, nil)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	return c.do("POST", path, nil, data)
}

func (c *Client) delete(path string) ([]byte, error) {
	return c.do("DELETE", path, nil, nil)
}

// outputJSON prints raw JSON data. All commands use this as the primary output path.
func outputJSON(data []byte) {
	// Pretty-print the JSON
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		// Not valid JSON, print raw
		fmt.Println(string(data))
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// --- Status command ---

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			data, err := client.get("/api/v1/health", nil)
			if err != nil {
				return err
			}
			outputJSON(data)

			data, err = client.get("/api/v1/queue/status", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

// --- Event commands ---

func newEventCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query recent lifecycle events",
	}

	var (
		limit     int
		eventType string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent events",
		Example: `  agencyctl events list
  agencyctl events list --type=task.assigned --limit=20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			params := url.Values{}
			params.Set("limit", fmt.Sprintf("%d", limit))
			if eventType != "" {
				params.Set("type", eventType)
			}
			data, err := client.get("/api/v1/events", params)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events")
	listCmd.Flags().StringVar(&eventType, "type", "", "Filter by event type")
	cmd.AddCommand(listCmd)

	return cmd
}

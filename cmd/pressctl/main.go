// pressctl is the command-line client for the presswerk HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var httpClient = &http.Client{Timeout: 30 * time.Second}

func main() {
	root := &cobra.Command{
		Use:   "pressctl",
		Short: "pressctl talks to a presswerk render service",
		Long: `pressctl is the command-line interface for the presswerk magazine
render pipeline.

Common workflows:

  Import an issue from a JSON file:
    pressctl import issue.json

  Render it with the active template pack:
    pressctl submit <issue-id>

  Watch a render job:
    pressctl status <job-id>

  List and switch template packs:
    pressctl packs
    pressctl activate <pack-id>`,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("PRESSWERK_URL", "http://localhost:8090"), "presswerk API base URL")

	root.AddCommand(importCmd(), submitCmd(), statusCmd(), cancelCmd(), packsCmd(), activateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import an issue from a JSON intake document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return call(cmd, http.MethodPost, "/api/issues", data)
		},
	}
}

func submitCmd() *cobra.Command {
	var packID string
	c := &cobra.Command{
		Use:   "submit [issue-id]",
		Short: "Start a render job for an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{
				"issue_id": args[0],
				"pack_id":  packID,
			})
			return call(cmd, http.MethodPost, "/api/render-jobs", body)
		},
	}
	c.Flags().StringVar(&packID, "pack", "", "template pack ID (default: the active pack)")
	return c
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show the state of a render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodGet, "/api/render-jobs/"+args[0], nil)
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [job-id]",
		Short: "Request cancellation of a running render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodPost, "/api/render-jobs/"+args[0]+"/cancel", nil)
		},
	}
}

func packsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "packs",
		Short: "List template packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, http.MethodGet, "/api/packs", nil)
		},
	}
}

func activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate [pack-id]",
		Short: "Make a template pack the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodPost, "/api/packs/"+args[0]+"/activate", nil)
		},
	}
}

// call performs one API request and pretty-prints the JSON response.
func call(cmd *cobra.Command, method, path string, body []byte) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(cmd.Context(), method, serverURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		cmd.Println(pretty.String())
	} else {
		cmd.Println(string(data))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

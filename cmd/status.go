package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/jcdickinson/applefetch/internal/config"
	"github.com/jcdickinson/applefetch/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached pages and daemon state",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("uptime:          %s\n", resp.Uptime)
	fmt.Printf("in memory:       %d\n", resp.MemoryPages)
	fmt.Printf("search catalog:  %d documents\n", resp.Catalog)
	if len(resp.Pages) == 0 {
		fmt.Println("no pages cached")
		return
	}

	kinds := make([]string, 0, len(resp.Pages))
	for k := range resp.Pages {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Println("cached pages:")
	for _, k := range kinds {
		fmt.Printf("  %-14s %d\n", k, resp.Pages[k])
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// Connection reset is expected: the daemon exits after responding.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}

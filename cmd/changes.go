package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes [path]",
	Short: "List API changes since the latest SDK release",
	Long:  `Lists symbols added, modified or deprecated since the latest minor, major or beta release. Without a path, covers the technologies list.`,
	Example: `  applefetch changes
  applefetch changes /documentation/swiftui --key beta`,
	Args: cobra.MaximumNArgs(1),
	Run:  runChanges,
}

var changesKey string

func init() {
	changesCmd.Flags().StringVar(&changesKey, "key", "minor", "release delta: minor, major or beta")
}

func runChanges(cmd *cobra.Command, args []string) {
	var path string
	if len(args) == 1 {
		path = docPath(args[0])
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Changes(context.Background(), rpc.ChangesRequest{Path: path, Key: changesKey})
	if err != nil {
		log.Fatalf("changes failed: %v", err)
	}

	if len(resp.Changes) == 0 {
		fmt.Printf("no changes since the latest %s release\n", resp.Key)
		return
	}
	for _, c := range resp.Changes {
		fmt.Printf("  %-11s %s\n", c.Change, c.Identifier)
	}
}

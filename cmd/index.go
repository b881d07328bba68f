package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jcdickinson/applefetch/internal/markdown"
	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Show the symbol tree of a technology",
	Example: `  applefetch index /documentation/swiftui
  applefetch index --depth 0 appledoc://documentation/metal`,
	Args: cobra.ExactArgs(1),
	Run:  runIndex,
}

var (
	indexDepth  int
	indexFormat string
)

func init() {
	indexCmd.Flags().IntVar(&indexDepth, "depth", 2, "maximum tree depth (0 for all)")
	indexCmd.Flags().StringVar(&indexFormat, "format", "text", "output format: text, json or yaml")
}

func runIndex(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.GetIndex(context.Background(), rpc.GetIndexRequest{
		Path:  docPath(args[0]),
		Depth: indexDepth,
	})
	if err != nil {
		log.Fatalf("get index failed: %v", err)
	}

	if indexFormat != "text" {
		if err := printFormatted(resp.Nodes, indexFormat); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	fmt.Print(markdown.RenderIndex(resp.Nodes, 0))
}

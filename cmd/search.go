package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search technologies and symbols",
	Example: `  applefetch search metal
  applefetch search --kind symbol --in /documentation/swiftui navigationstack
  applefetch search --limit 5 "core data"`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var (
	searchKinds        []string
	searchTechnologies []string
	searchLimit        int
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchKinds, "kind", nil, "restrict to kind: technology or symbol (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchTechnologies, "in", nil, "load the symbol index of this technology path first (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max results")
}

func runSearch(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	technologies := make([]string, 0, len(searchTechnologies))
	for _, t := range searchTechnologies {
		technologies = append(technologies, docPath(t))
	}

	resp, err := client.Search(context.Background(), rpc.SearchRequest{
		Query:        args[0],
		Kinds:        searchKinds,
		Limit:        searchLimit,
		Technologies: technologies,
	})
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, r := range resp.Results {
		fmt.Printf("%d. [%.2f] %s (%s) %s\n", i+1, r.Score, r.Title, r.Kind, r.URI)
		if r.Abstract != "" && r.Kind != "symbol" {
			fmt.Printf("   %s\n", r.Abstract)
		}
	}
}

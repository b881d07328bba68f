package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <path|appledoc://path>",
	Short: "Read a documentation page as markdown",
	Example: `  applefetch get /documentation/swiftui/view
  applefetch get appledoc://documentation/swiftui/view
  applefetch get --web documentation/foundation/url`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

var getWeb bool

func init() {
	getCmd.Flags().BoolVar(&getWeb, "web", false, "link to developer.apple.com instead of appledoc:// URIs")
	rootCmd.AddCommand(getCmd)
}

// docPath accepts a documentation path with or without the appledoc://
// scheme and drops any #fragment.
func docPath(arg string) string {
	p := strings.TrimPrefix(arg, "appledoc://")
	if i := strings.IndexByte(p, '#'); i >= 0 {
		p = p[:i]
	}
	return "/" + strings.Trim(p, "/")
}

func runGet(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.GetDoc(context.Background(), rpc.GetDocRequest{
		Path: docPath(args[0]),
		Web:  getWeb,
	})
	if err != nil {
		log.Fatalf("get doc failed: %v", err)
	}

	fmt.Print(resp.Markdown)
}

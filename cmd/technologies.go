package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var technologiesCmd = &cobra.Command{
	Use:   "technologies",
	Short: "List Apple technologies",
	Example: `  applefetch technologies
  applefetch technologies --tag graphics
  applefetch technologies --format yaml`,
	Args: cobra.NoArgs,
	Run:  runTechnologies,
}

var (
	technologiesTag    string
	technologiesFormat string
)

func init() {
	technologiesCmd.Flags().StringVar(&technologiesTag, "tag", "", "only list technologies with this tag")
	technologiesCmd.Flags().StringVar(&technologiesFormat, "format", "text", "output format: text, json or yaml")
}

type technologyRow struct {
	Title     string   `json:"title" yaml:"title"`
	Path      string   `json:"path" yaml:"path"`
	Abstract  string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty"`
}

func technologyRows(resp *rpc.TechnologiesResponse) []technologyRow {
	rows := make([]technologyRow, 0, len(resp.Technologies))
	for _, t := range resp.Technologies {
		row := technologyRow{
			Title:    t.Title,
			Path:     t.Destination.Value.String(),
			Abstract: t.Destination.Abstract,
			Tags:     t.Tags,
		}
		for _, l := range t.Languages {
			row.Languages = append(row.Languages, l.String())
		}
		rows = append(rows, row)
	}
	return rows
}

// printFormatted writes v as JSON or YAML.
func printFormatted(v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

func runTechnologies(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Technologies(context.Background(), technologiesTag)
	if err != nil {
		log.Fatalf("listing technologies failed: %v", err)
	}

	rows := technologyRows(resp)
	if technologiesFormat != "text" {
		if err := printFormatted(rows, technologiesFormat); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if len(rows) == 0 {
		fmt.Println("no technologies")
		return
	}
	for _, r := range rows {
		fmt.Printf("  %-32s %s\n", r.Title, r.Path)
		if r.Abstract != "" {
			fmt.Printf("    %s\n", r.Abstract)
		}
	}
	if technologiesTag == "" && len(resp.Tags) > 0 {
		fmt.Printf("\ntags: %s\n", strings.Join(resp.Tags, ", "))
	}
	for _, d := range resp.DiffAvailability {
		fmt.Printf("changes (%s): %s %s → %s\n", d.Key, d.Payload.Platform, d.Payload.Versions.From, d.Payload.Versions.To)
	}
}

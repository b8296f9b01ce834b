package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"snapbot/pkg/extractor"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Run the extractor on a saved page",
	Long: `Run every extraction strategy over a saved profile page and print the
media items found, in delivery order. Use - to read from stdin.`,
	Example: `  curl -s https://story.snapchat.com/s/someone | snapbot extract -
  snapbot extract page.html --json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print items as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	items := extractor.Extract(string(data))
	out := cmd.OutOrStdout()

	if extractJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No media found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKIND\tSOURCE\tURL")
	for i, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, item.Kind, item.Source, item.URL)
	}
	return w.Flush()
}

package main

import (
	"io"
	"os"

	"github.com/autohighlight/autohighlight/dataset"
	"github.com/autohighlight/autohighlight/export"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the collected highlights as JSON or CSV",
	Long: `json: the highlights file, re-indented with sorted ids.
csv:  one line per highlighted row, "Row,HighlightedTokens", with the 1-based position of the row in
      the rows file and its highlighted words joined with "; ".`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json or csv")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default stdout)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	highlights, err := dataset.LoadHighlights(cfg.Data.HighlightsPath)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", exportOut)
		}
		defer f.Close()
		w = f
	}

	switch exportFormat {
	case "json":
		return export.WriteJSON(w, highlights)
	case "csv":
		table, err := dataset.ReadTable(cfg.Data.RowsPath)
		if err != nil {
			return err
		}
		tokens, err := highlightedWordsByRow(table, highlights, cfg.Data.IDColumn, cfg.Data.TextColumn)
		if err != nil {
			return err
		}
		return export.WriteCSV(w, tokens)
	default:
		return errors.Errorf("unknown export format %q, want json or csv", exportFormat)
	}
}

// highlightedWordsByRow resolves each highlighted id to its row offset and words. Unknown ids and
// out of range indices are logged and skipped.
func highlightedWordsByRow(table *dataset.Table, highlights dataset.Highlights, idColumn, textColumn string) (map[int][]string, error) {
	index, err := table.Index(idColumn)
	if err != nil {
		return nil, err
	}
	rows, err := table.RowsOf(idColumn, textColumn)
	if err != nil {
		return nil, err
	}
	tokens := make(map[int][]string, len(highlights))
	for _, id := range highlights.SortedIDs() {
		offset, ok := index[id]
		if !ok {
			klog.Warningf("Highlighted id %q not found in the rows, skipping it", id)
			continue
		}
		words := rows[offset].Words()
		var selected []string
		for _, idx := range highlights[id] {
			if idx < 0 || idx >= len(words) {
				klog.Warningf("Row %q: highlight index %d outside of its %d words", id, idx, len(words))
				continue
			}
			selected = append(selected, words[idx])
		}
		tokens[offset] = selected
	}
	return tokens, nil
}

// Package export writes highlights in the formats handed to people outside the pipeline.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CSVHeader is the header row of WriteCSV.
var CSVHeader = []string{"Row", "HighlightedTokens"}

// TokenSeparator joins the tokens of one row in WriteCSV.
const TokenSeparator = "; "

// WriteJSON writes the id to word indices mapping as indented JSON, keys sorted.
func WriteJSON(w io.Writer, highlights map[string][]int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(highlights); err != nil {
		return errors.Wrap(err, "failed to write highlights JSON")
	}
	return nil
}

// WriteCSV writes one line per row index, in increasing order: the 1-based row number and the
// row's highlighted tokens joined with TokenSeparator.
func WriteCSV(w io.Writer, tokens map[int][]string) error {
	rows := make([]int, 0, len(tokens))
	for idx := range tokens {
		if idx < 0 {
			return errors.Errorf("negative row index %d", idx)
		}
		rows = append(rows, idx)
	}
	sort.Ints(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	for _, idx := range rows {
		record := []string{strconv.Itoa(idx + 1), strings.Join(tokens[idx], TokenSeparator)}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "failed to write row %d", idx+1)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/autohighlight/autohighlight/dataset"
	"github.com/autohighlight/autohighlight/export"
	"github.com/autohighlight/autohighlight/inference"
	"github.com/autohighlight/autohighlight/onnx"
	"github.com/autohighlight/autohighlight/predictions"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	predictText      string
	predictCSVPath   string
	predictLogitsOut string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Highlight text with an ONNX token classification model",
	Long: `Runs the model over --text, or over every row of the rows file, and prints the text with the
predicted words highlighted.

With --csv the highlighted tokens of every row are written as "Row,HighlightedTokens", one line
per row (1-based), tokens joined with "; ". With --save-logits the raw logits are saved as a
safetensors file that "evaluate" can score: rows are recorded by id, so evaluate matches them
with the prepared labels whatever their order.`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predictText, "text", "", "Text to highlight instead of the rows file")
	predictCmd.Flags().StringVar(&predictCSVPath, "csv", "", "Write the highlighted tokens of every row to this CSV file")
	predictCmd.Flags().StringVar(&predictLogitsOut, "save-logits", "", "Save the logits to this safetensors file")
	predictCmd.Flags().String("model", "", "ONNX model file")
	predictCmd.Flags().String("onnxruntime", "", "Path to the onnxruntime shared library")
	_ = settings.BindPFlag("model.onnxPath", predictCmd.Flags().Lookup("model"))
	_ = settings.BindPFlag("model.sharedLibraryPath", predictCmd.Flags().Lookup("onnxruntime"))
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Model.ONNXPath == "" {
		return errors.New("no model given: use --model or model.onnxPath")
	}
	tok, err := cfg.LoadTokenizer()
	if err != nil {
		return err
	}
	runner := onnx.New(cfg.Model.ONNXPath, cfg.Model.SharedLibraryPath)
	defer func() {
		if err := runner.Close(); err != nil {
			klog.Warningf("Failed to release the ONNX session: %v", err)
		}
	}()
	h := &inference.Highlighter{Tokenizer: tok, Runner: runner}

	rows := []dataset.Row{{Text: predictText}}
	if predictText == "" {
		if rows, err = dataset.LoadRows(cfg.Data.RowsPath, cfg.Data.IDColumn, cfg.Data.TextColumn); err != nil {
			return err
		}
	}

	tokens, logits, err := highlightRows(cmd.Context(), h, rows, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if predictCSVPath != "" {
		if err := writeTokensCSV(predictCSVPath, tokens); err != nil {
			return err
		}
		klog.Infof("Wrote highlighted tokens of %d rows to %s", len(tokens), predictCSVPath)
	}
	if predictLogitsOut != "" {
		if err := predictions.WriteRowLogits(predictLogitsOut, "", logits, map[string]string{"model": cfg.Model.ONNXPath}); err != nil {
			return err
		}
		klog.Infof("Saved logits of %d rows to %s", len(logits), predictLogitsOut)
	}
	return nil
}

// highlightRows runs h over every row, printing the highlighted text to out. It returns the
// highlighted tokens by row offset and the unpadded logits of each distinct row id, first
// occurrence first.
func highlightRows(ctx context.Context, h *inference.Highlighter, rows []dataset.Row, out io.Writer) (map[int][]string, []predictions.RowLogits, error) {
	tokens := make(map[int][]string, len(rows))
	logits := make([]predictions.RowLogits, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		res, err := h.Highlight(ctx, row.Text)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "row %d", i)
		}
		tokens[i] = res.Tokens
		fmt.Fprintln(out, renderHighlighted(res.Words, res.WordIndices))
		if seen[row.ID] {
			klog.Warningf("Duplicate id %q at row %d, its logits are not saved", row.ID, i)
			continue
		}
		seen[row.ID] = true
		logits = append(logits, predictions.RowLogits{ID: row.ID, Logits: res.Logits[:res.Encoding.Unpadded()]})
	}
	return tokens, logits, nil
}

func writeTokensCSV(path string, tokens map[int][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := export.WriteCSV(f, tokens); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}

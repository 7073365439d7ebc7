package main

import (
	"encoding/json"
	"fmt"

	"github.com/autohighlight/autohighlight/dataset"
	"github.com/autohighlight/autohighlight/labels"
	"github.com/autohighlight/autohighlight/metrics"
	"github.com/autohighlight/autohighlight/predictions"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	evalLabelsPath      string
	evalPredictionsPath string
	evalTensorName      string
	evalJSON            bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score saved model logits against the prepared labels",
	Long: `Reads the gold labels from a prepared train.parquet and the logits the trainer saved for the
same rows (safetensors, one float32 tensor shaped [rows, sequence, classes]), takes the argmax
class of every position and reports precision, recall and F1 of the highlighted class over the
positions that are not ignored.

Rows are matched by the ids that "predict --save-logits" records; a prepared row without logits
is an error. Logits files without ids (e.g. from the trainer) must list the prepared rows in
order, and their positions past a row's length are taken as padding.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evalLabelsPath, "labels", "train/"+trainingDataFile, "Prepared parquet file with the gold labels")
	evaluateCmd.Flags().StringVar(&evalPredictionsPath, "predictions", "", "Safetensors file with the model logits")
	evaluateCmd.Flags().StringVar(&evalTensorName, "tensor", predictions.DefaultTensorName, "Name of the logits tensor")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "Print the scores as JSON")
	_ = evaluateCmd.MarkFlagRequired("predictions")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	scores, rows, err := scorePredictions(evalLabelsPath, evalPredictionsPath, evalTensorName)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if evalJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(scores), "failed to write scores")
	}
	_, err = fmt.Fprintln(out, renderScores(fmt.Sprintf("%d rows", rows), scores))
	if err != nil {
		return errors.Wrap(err, "failed to write scores")
	}
	if scores.Support == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("no scored positions: every label is ignored"))
	}
	return nil
}

// scorePredictions scores the logits file at predictionsPath against the prepared labels at
// labelsPath, returning the scores and the number of rows scored. Rows are matched by id; files
// without row ids are matched by position.
func scorePredictions(labelsPath, predictionsPath, tensor string) (metrics.Scores, int, error) {
	rows, err := dataset.ReadParquet(labelsPath)
	if err != nil {
		return metrics.Scores{}, 0, err
	}
	gold, err := dataset.GoldLabels(rows)
	if err != nil {
		return metrics.Scores{}, 0, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	f, err := predictions.Open(predictionsPath)
	if err != nil {
		return metrics.Scores{}, 0, err
	}
	defer f.Close()
	byID, err := f.RowPredictions(tensor)
	if errors.Is(err, predictions.ErrNoRowIDs) {
		klog.Warningf("%s has no row ids, matching its rows with %s by position", predictionsPath, labelsPath)
		byID, err = byPosition(f, tensor, ids, gold)
	}
	if err != nil {
		return metrics.Scores{}, 0, err
	}
	preds, err := predictions.MatchRows(ids, gold, byID)
	if err != nil {
		return metrics.Scores{}, 0, errors.WithMessagef(err, "%s against %s", predictionsPath, labelsPath)
	}
	scores, err := metrics.Evaluate(gold, preds)
	return scores, len(gold), err
}

// byPosition keys the rows of a logits file without row ids by the ids of the label rows at
// the same position. Positions past a label row's length are taken as padding.
func byPosition(f *predictions.File, tensor string, ids []string, gold [][]labels.Label) (map[string][]int, error) {
	preds, err := f.Predictions(tensor)
	if err != nil {
		return nil, err
	}
	if len(preds) != len(ids) {
		return nil, errors.Errorf("predictions have %d rows but there are %d label rows", len(preds), len(ids))
	}
	byID := make(map[string][]int, len(ids))
	for i, id := range ids {
		byID[id] = preds[i][:min(len(preds[i]), len(gold[i]))]
	}
	return byID, nil
}

package main

import (
	"os"
	"path/filepath"

	"github.com/autohighlight/autohighlight/config"
	"github.com/autohighlight/autohighlight/dataset"
	"github.com/autohighlight/autohighlight/labels"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

const (
	trainingDataFile = "train.parquet"
	trainingArgsFile = "training_args.json"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Align highlights onto subword labels and write the training data",
	Long: `Reads the rows and highlights files, encodes every highlighted row with the model's tokenizer
and labels each subword with the label of its word. Special tokens and padding get the ignore
index -100.

Writes <output-dir>/train.parquet (input_ids, attention_mask, labels, word_ids) and
<output-dir>/training_args.json, passed through unchanged to the trainer.`,
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)
	prepareCmd.Flags().String("output-dir", "", "Output directory (default ./train)")
	prepareCmd.Flags().Int("workers", 0, "Rows aligned in parallel (default GOMAXPROCS)")
	prepareCmd.Flags().Bool("pad", false, "Pad every sequence to --max-length")
	_ = settings.BindPFlag("training.outputDir", prepareCmd.Flags().Lookup("output-dir"))
	_ = settings.BindPFlag("training.workers", prepareCmd.Flags().Lookup("workers"))
	_ = settings.BindPFlag("tokenizer.padToMaxLength", prepareCmd.Flags().Lookup("pad"))
}

func runPrepare(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rows, err := dataset.LoadRows(cfg.Data.RowsPath, cfg.Data.IDColumn, cfg.Data.TextColumn)
	if err != nil {
		return err
	}
	highlights, err := dataset.LoadHighlights(cfg.Data.HighlightsPath)
	if err != nil {
		return err
	}
	tok, err := cfg.LoadTokenizer()
	if err != nil {
		return err
	}

	examples, err := dataset.Prepare(rows, highlights, tok, cfg.Training.Workers)
	if err != nil {
		return err
	}
	if len(examples) == 0 {
		return errors.Errorf("none of the %d highlighted ids is in %s", len(highlights), cfg.Data.RowsPath)
	}
	var dropped, positives int
	for _, e := range examples {
		dropped += len(e.Dropped)
		for _, l := range e.Labels {
			if l == labels.Positive {
				positives++
			}
		}
	}
	if dropped > 0 {
		klog.Warningf("%d highlight indices were out of range and dropped", dropped)
	}

	if err := os.MkdirAll(cfg.Training.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", cfg.Training.OutputDir)
	}
	dataPath := filepath.Join(cfg.Training.OutputDir, trainingDataFile)
	if err := dataset.WriteParquet(dataPath, examples); err != nil {
		return err
	}
	argsPath := filepath.Join(cfg.Training.OutputDir, trainingArgsFile)
	if err := config.WriteTrainingArgs(argsPath, cfg.TrainingArgs(labels.IgnoreIndex)); err != nil {
		return err
	}
	klog.Infof("Wrote %d examples (%d positive subwords) to %s and training arguments to %s",
		len(examples), positives, dataPath, argsPath)
	return nil
}

package main

import (
	"github.com/autohighlight/autohighlight/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// settings is created before any init function runs, so every command file can bind flags.
	settings = config.New("")
)

var rootCmd = &cobra.Command{
	Use:           "autohighlight",
	Short:         "Collect word highlights and train, evaluate and apply a token highlighting model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(func() {
		if configPath != "" {
			settings.SetConfigFile(configPath)
		}
	})
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default ./config.yaml if present)")

	// Flags shared by several commands, bound to configuration keys.
	pf := rootCmd.PersistentFlags()
	pf.String("rows", "", "Rows file (.csv, .tsv or .xlsx)")
	pf.String("highlights", "", "Highlights JSON file")
	pf.String("text-column", "", "Column holding the text to highlight (default result)")
	pf.String("tokenizer-dir", "", "Directory with tokenizer.json, tokenizer.model or vocab.txt")
	pf.String("tokenizer-kind", "", "Tokenizer implementation: hf, sentencepiece or wordpiece (default: detect)")
	pf.Int("max-length", 0, "Maximum number of tokens per sequence, special tokens included")
	for key, flag := range map[string]string{
		"data.rowsPath":       "rows",
		"data.highlightsPath": "highlights",
		"data.textColumn":     "text-column",
		"tokenizer.dir":       "tokenizer-dir",
		"tokenizer.kind":      "tokenizer-kind",
		"tokenizer.maxLength": "max-length",
	} {
		if err := settings.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(errors.Wrapf(err, "binding flag --%s", flag))
		}
	}
}

// loadConfig reads the configuration with the command line overrides applied.
func loadConfig() (*config.Config, error) {
	return config.Load(settings)
}

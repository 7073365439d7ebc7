// Package config loads the autohighlight configuration from a YAML file and AUTOHIGHLIGHT_*
// environment variables.
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/autohighlight/autohighlight/tokenizers"
	"github.com/autohighlight/autohighlight/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// EnvPrefix of the environment variables, e.g. AUTOHIGHLIGHT_SERVER_ADDR for server.addr.
const EnvPrefix = "AUTOHIGHLIGHT"

// Config stores all configuration of the application.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Server    ServerConfig    `mapstructure:"server"`
	Training  TrainingConfig  `mapstructure:"training"`
	Model     ModelConfig     `mapstructure:"model"`
}

// DataConfig locates the rows and highlights files.
type DataConfig struct {
	RowsPath       string `mapstructure:"rowsPath"`
	HighlightsPath string `mapstructure:"highlightsPath"`
	IDColumn       string `mapstructure:"idColumn"`
	TextColumn     string `mapstructure:"textColumn"`
}

// TokenizerConfig selects the tokenizer and its sequence length policy.
type TokenizerConfig struct {
	Kind           string `mapstructure:"kind"` // "", "hf", "sentencepiece" or "wordpiece".
	Dir            string `mapstructure:"dir"`
	MaxLength      int    `mapstructure:"maxLength"`
	PadToMaxLength bool   `mapstructure:"padToMaxLength"`
}

// ServerConfig configures the annotation server.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	Interleaved    bool     `mapstructure:"interleaved"`
}

// TrainingConfig holds the preparation settings and the options passed through to the external
// trainer in training_args.json.
type TrainingConfig struct {
	OutputDir          string  `mapstructure:"outputDir"`
	Workers            int     `mapstructure:"workers"`
	LearningRate       float64 `mapstructure:"learningRate"`
	BatchSize          int     `mapstructure:"batchSize"`
	Epochs             int     `mapstructure:"epochs"`
	WeightDecay        float64 `mapstructure:"weightDecay"`
	EvaluationStrategy string  `mapstructure:"evaluationStrategy"`
}

// ModelConfig locates the exported model used by predict.
type ModelConfig struct {
	ONNXPath          string `mapstructure:"onnxPath"`
	SharedLibraryPath string `mapstructure:"sharedLibraryPath"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.rowsPath", "data.csv")
	v.SetDefault("data.highlightsPath", "highlights.json")
	v.SetDefault("data.idColumn", "id")
	v.SetDefault("data.textColumn", "result")

	v.SetDefault("tokenizer.kind", "")
	v.SetDefault("tokenizer.dir", "model")
	v.SetDefault("tokenizer.maxLength", 512)
	v.SetDefault("tokenizer.padToMaxLength", false)

	v.SetDefault("server.addr", ":5001")
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.interleaved", true)

	v.SetDefault("training.outputDir", "train")
	v.SetDefault("training.workers", 0)
	v.SetDefault("training.learningRate", 2e-5)
	v.SetDefault("training.batchSize", 16)
	v.SetDefault("training.epochs", 3)
	v.SetDefault("training.weightDecay", 0.01)
	v.SetDefault("training.evaluationStrategy", "epoch")

	v.SetDefault("model.onnxPath", "")
	v.SetDefault("model.sharedLibraryPath", "")
}

// New returns a viper instance with the defaults and environment bindings. When configPath is
// empty, config.yaml is looked up in the working directory and is optional.
func New(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file, if any, and decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		klog.V(1).Info("No config file found, using defaults and environment")
	} else {
		klog.V(1).Infof("Using config file %s", v.ConfigFileUsed())
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch tokenizers.Kind(c.Tokenizer.Kind) {
	case tokenizers.KindAuto, tokenizers.KindHuggingFace, tokenizers.KindSentencePiece, tokenizers.KindWordPiece:
	default:
		return errors.Errorf("tokenizer.kind %q is not one of hf, sentencepiece or wordpiece", c.Tokenizer.Kind)
	}
	if c.Tokenizer.MaxLength < 0 {
		return errors.Errorf("tokenizer.maxLength must not be negative, got %d", c.Tokenizer.MaxLength)
	}
	if c.Tokenizer.PadToMaxLength && c.Tokenizer.MaxLength == 0 {
		return errors.New("tokenizer.padToMaxLength requires tokenizer.maxLength")
	}
	if c.Training.BatchSize <= 0 || c.Training.Epochs <= 0 {
		return errors.Errorf("training.batchSize and training.epochs must be positive, got %d and %d",
			c.Training.BatchSize, c.Training.Epochs)
	}
	return nil
}

// TokenizerOptions returns the api.Config for the tokenizer. Special tokens stay empty so that
// the tokenizer's own files provide them.
func (c *Config) TokenizerOptions() *api.Config {
	return &api.Config{
		MaxLength:      c.Tokenizer.MaxLength,
		PadToMaxLength: c.Tokenizer.PadToMaxLength,
	}
}

// LoadTokenizer creates the configured tokenizer.
func (c *Config) LoadTokenizer() (api.WordTokenizer, error) {
	return tokenizers.New(tokenizers.Kind(c.Tokenizer.Kind), c.Tokenizer.Dir, c.TokenizerOptions())
}

// TrainingArgs is the training_args.json document read by the external trainer. Field names
// follow the Hugging Face TrainingArguments.
type TrainingArgs struct {
	OutputDir               string  `json:"output_dir"`
	LearningRate            float64 `json:"learning_rate"`
	PerDeviceTrainBatchSize int     `json:"per_device_train_batch_size"`
	PerDeviceEvalBatchSize  int     `json:"per_device_eval_batch_size"`
	NumTrainEpochs          int     `json:"num_train_epochs"`
	WeightDecay             float64 `json:"weight_decay"`
	EvaluationStrategy      string  `json:"evaluation_strategy"`
	MaxLength               int     `json:"max_length,omitempty"`
	TokenizerDir            string  `json:"tokenizer_dir"`
	MetricForBestModel      string  `json:"metric_for_best_model"`
	LabelIgnoreIndex        int     `json:"label_ignore_index"`
}

// TrainingArgs returns the options passed through to the trainer.
func (c *Config) TrainingArgs(ignoreIndex int) TrainingArgs {
	return TrainingArgs{
		OutputDir:               c.Training.OutputDir,
		LearningRate:            c.Training.LearningRate,
		PerDeviceTrainBatchSize: c.Training.BatchSize,
		PerDeviceEvalBatchSize:  c.Training.BatchSize,
		NumTrainEpochs:          c.Training.Epochs,
		WeightDecay:             c.Training.WeightDecay,
		EvaluationStrategy:      c.Training.EvaluationStrategy,
		MaxLength:               c.Tokenizer.MaxLength,
		TokenizerDir:            c.Tokenizer.Dir,
		MetricForBestModel:      "f1",
		LabelIgnoreIndex:        ignoreIndex,
	}
}

// WriteTrainingArgs writes args as indented JSON to path.
func WriteTrainingArgs(path string, args TrainingArgs) error {
	data, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode training arguments")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

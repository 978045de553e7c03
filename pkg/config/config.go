// Package config loads intelliml settings from a YAML file and INTELLIML_*
// environment variables.
package config

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Config is the complete runtime configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Training    TrainingConfig    `mapstructure:"training" yaml:"training"`
	Explain     ExplainConfig     `mapstructure:"explain" yaml:"explain"`
	Serving     ServingConfig     `mapstructure:"serving" yaml:"serving"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard" yaml:"leaderboard"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// TrainingConfig holds the train_all defaults.
type TrainingConfig struct {
	TestSize        float64       `mapstructure:"test_size" yaml:"test_size"`
	CVFolds         int           `mapstructure:"cv_folds" yaml:"cv_folds"`
	Seed            uint64        `mapstructure:"seed" yaml:"seed"`
	MaxTrainingTime time.Duration `mapstructure:"max_training_time" yaml:"max_training_time"`
	TuningTrials    int           `mapstructure:"tuning_trials" yaml:"tuning_trials"`
	EnableTuning    bool          `mapstructure:"enable_tuning" yaml:"enable_tuning"`
}

type ExplainConfig struct {
	MaxSamples   int  `mapstructure:"max_samples" yaml:"max_samples"`
	Permutations int  `mapstructure:"permutations" yaml:"permutations"`
	Plots        bool `mapstructure:"plots" yaml:"plots"`
}

// ServingConfig selects how predict_batch fills missing values:
// "training" uses the training means, "batch" the batch's own column means.
type ServingConfig struct {
	BatchImpute string `mapstructure:"batch_impute" yaml:"batch_impute"`
}

// LeaderboardConfig enables the sqlite experiment leaderboard when Path is set.
type LeaderboardConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

const envPrefix = "INTELLIML"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Training: TrainingConfig{
			TestSize:        0.2,
			CVFolds:         5,
			Seed:            42,
			MaxTrainingTime: 300 * time.Second,
			TuningTrials:    8,
		},
		Explain: ExplainConfig{
			MaxSamples:   100,
			Permutations: 32,
			Plots:        true,
		},
		Serving: ServingConfig{BatchImpute: "training"},
		Metrics: MetricsConfig{Namespace: "intelliml"},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("training.test_size", d.Training.TestSize)
	v.SetDefault("training.cv_folds", d.Training.CVFolds)
	v.SetDefault("training.seed", d.Training.Seed)
	v.SetDefault("training.max_training_time", d.Training.MaxTrainingTime)
	v.SetDefault("training.tuning_trials", d.Training.TuningTrials)
	v.SetDefault("training.enable_tuning", d.Training.EnableTuning)
	v.SetDefault("explain.max_samples", d.Explain.MaxSamples)
	v.SetDefault("explain.permutations", d.Explain.Permutations)
	v.SetDefault("explain.plots", d.Explain.Plots)
	v.SetDefault("serving.batch_impute", d.Serving.BatchImpute)
	v.SetDefault("leaderboard.path", d.Leaderboard.Path)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// Load reads the configuration from path (optional) and the environment.
// An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range settings.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	switch {
	case c.Training.TestSize <= 0 || c.Training.TestSize >= 1:
		return errors.NewValidationError("training.test_size", "must be in (0, 1)", c.Training.TestSize)
	case c.Training.CVFolds < 2:
		return errors.NewValidationError("training.cv_folds", "must be at least 2", c.Training.CVFolds)
	case c.Training.TuningTrials < 1:
		return errors.NewValidationError("training.tuning_trials", "must be positive", c.Training.TuningTrials)
	case c.Training.MaxTrainingTime < 0:
		return errors.NewValidationError("training.max_training_time", "must not be negative", c.Training.MaxTrainingTime)
	case c.Explain.MaxSamples < 1:
		return errors.NewValidationError("explain.max_samples", "must be positive", c.Explain.MaxSamples)
	case c.Explain.Permutations < 1:
		return errors.NewValidationError("explain.permutations", "must be positive", c.Explain.Permutations)
	case c.Serving.BatchImpute != "training" && c.Serving.BatchImpute != "batch":
		return errors.NewValidationError("serving.batch_impute", `must be "training" or "batch"`, c.Serving.BatchImpute)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "config: encode")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "config: encode")
	}
	return buf.Bytes(), nil
}

// Write saves the configuration to path as YAML.
func (c *Config) Write(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "config: write %s", path)
}

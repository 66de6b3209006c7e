// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Missing-demographics policies for sampled points whose neighborhood has no
// demographics row.
const (
	OnMissingFail = "fail"
	OnMissingDrop = "drop"
)

// Config holds the full application configuration.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Inputs  InputsConfig  `yaml:"inputs" mapstructure:"inputs"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DatasetConfig holds the sampling and aggregation constants.
type DatasetConfig struct {
	SampleCount           int       `yaml:"sample_count" mapstructure:"sample_count"`
	Radii                 []float64 `yaml:"radii" mapstructure:"radii"`
	Tiers                 []int     `yaml:"tiers" mapstructure:"tiers"`
	Precision             int       `yaml:"precision" mapstructure:"precision"`
	Seed                  int64     `yaml:"seed" mapstructure:"seed"`
	Concurrency           int       `yaml:"concurrency" mapstructure:"concurrency"`
	CheckpointEvery       int       `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	OnMissingDemographics string    `yaml:"on_missing_demographics" mapstructure:"on_missing_demographics"`
}

// InputsConfig points at the three input datasets.
type InputsConfig struct {
	BusinessCSV      string `yaml:"business_csv" mapstructure:"business_csv"`
	DemographicsPath string `yaml:"demographics_path" mapstructure:"demographics_path"`
	RegionsShapefile string `yaml:"regions_shapefile" mapstructure:"regions_shapefile"`
	RegionNameField  string `yaml:"region_name_field" mapstructure:"region_name_field"`
}

// OutputConfig configures where the generated dataset is written.
type OutputConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Manifest bool   `yaml:"manifest" mapstructure:"manifest"`
}

// StoreConfig configures the checkpoint database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AFFLUENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.sample_count", 1000)
	v.SetDefault("dataset.radii", []float64{0.5, 1.0})
	v.SetDefault("dataset.tiers", []int{1, 2, 3, 4})
	v.SetDefault("dataset.precision", 6)
	v.SetDefault("dataset.seed", 0)
	v.SetDefault("dataset.concurrency", 4)
	v.SetDefault("dataset.checkpoint_every", 50)
	v.SetDefault("dataset.on_missing_demographics", OnMissingFail)
	v.SetDefault("inputs.business_csv", "businesses.csv")
	v.SetDefault("inputs.demographics_path", "demographics.csv")
	v.SetDefault("inputs.regions_shapefile", "neighborhoods.shp")
	v.SetDefault("inputs.region_name_field", "name")
	v.SetDefault("output.path", "dataset.csv")
	v.SetDefault("output.manifest", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "affluence.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Dataset.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (d DatasetConfig) validate() error {
	switch d.OnMissingDemographics {
	case OnMissingFail, OnMissingDrop:
	default:
		return eris.Errorf("config: dataset.on_missing_demographics must be %q or %q, got %q",
			OnMissingFail, OnMissingDrop, d.OnMissingDemographics)
	}
	if d.SampleCount < 0 {
		return eris.Errorf("config: dataset.sample_count must be non-negative, got %d", d.SampleCount)
	}
	if len(d.Radii) == 0 {
		return eris.New("config: dataset.radii must not be empty")
	}
	for _, r := range d.Radii {
		if r <= 0 {
			return eris.Errorf("config: dataset.radii entries must be positive, got %v", r)
		}
	}
	if len(d.Tiers) == 0 {
		return eris.New("config: dataset.tiers must not be empty")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Package config loads loanml settings from a config file, LOANML_ environment
// variables and bound command-line flags through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. LOANML_DATA_PATH.
const EnvPrefix = "LOANML"

// Config is the full runtime configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Output   OutputConfig   `mapstructure:"output"`
	Training TrainingConfig `mapstructure:"training"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DataConfig locates the training dataset.
type DataConfig struct {
	Path     string  `mapstructure:"path"`
	TestSize float64 `mapstructure:"test_size"`
}

// OutputConfig locates the training artifacts.
type OutputConfig struct {
	Chart  string `mapstructure:"chart"`
	Bundle string `mapstructure:"bundle"`
}

// TrainingConfig tunes model fitting.
type TrainingConfig struct {
	Seed uint64 `mapstructure:"seed"`
	// Workers bounds the goroutines used by the forest and KNN; 0 means NumCPU.
	Workers int `mapstructure:"workers"`
}

// LoggingConfig mirrors log.Options.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ServerConfig configures the prediction API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Bundle          string        `mapstructure:"bundle"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSOrigins are the browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data.path", "loan_data.csv")
	v.SetDefault("data.test_size", 0.2)
	v.SetDefault("output.chart", "model_comparison.png")
	v.SetDefault("output.bundle", "loan_model.gob")
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.workers", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.bundle", "loan_model.gob")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
}

// Init prepares v: config file (explicit path or ./loanml.yaml,
// $HOME/.config/loanml/config.yaml), environment overrides and defaults.
// A missing config file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(ExpandPath(cfgFile))
	} else {
		v.SetConfigName("loanml")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "loanml"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config")
		}
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	cfg.Data.Path = ExpandPath(cfg.Data.Path)
	cfg.Output.Chart = ExpandPath(cfg.Output.Chart)
	cfg.Output.Bundle = ExpandPath(cfg.Output.Bundle)
	cfg.Logging.File = ExpandPath(cfg.Logging.File)
	cfg.Server.Bundle = ExpandPath(cfg.Server.Bundle)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Data.TestSize <= 0 || c.Data.TestSize >= 1 {
		return errors.NewValidationError("data.test_size", "must be in (0, 1)", c.Data.TestSize)
	}
	if c.Training.Workers < 0 {
		return errors.NewValidationError("training.workers", "must be >= 0", c.Training.Workers)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewValidationError("logging.level", "must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return errors.NewValidationError("logging.format", "must be console or json", c.Logging.Format)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return errors.NewValidationError("server.mode", "must be debug, release or test", c.Server.Mode)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

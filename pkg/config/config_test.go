package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := viper.New()
	require.NoError(t, Init(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "loan_data.csv", cfg.Data.Path)
	assert.Equal(t, 0.2, cfg.Data.TestSize)
	assert.Equal(t, uint64(42), cfg.Training.Seed)
	assert.Equal(t, "model_comparison.png", cfg.Output.Chart)
	assert.Equal(t, "loan_model.gob", cfg.Output.Bundle)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loanml.yaml")
	content := `
data:
  path: /srv/loans.csv
  test_size: 0.25
training:
  seed: 7
logging:
  level: debug
  format: json
server:
  shutdown_timeout: 2s
  cors_origins:
    - https://loans.example.com
    - http://localhost:3000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("LOANML_OUTPUT_BUNDLE", "/tmp/override.gob")

	v := viper.New()
	require.NoError(t, Init(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/srv/loans.csv", cfg.Data.Path)
	assert.Equal(t, 0.25, cfg.Data.TestSize)
	assert.Equal(t, uint64(7), cfg.Training.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/override.gob", cfg.Output.Bundle)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"https://loans.example.com", "http://localhost:3000"}, cfg.Server.CORSOrigins)
}

func TestInit_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	err := Init(v, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Data:    DataConfig{Path: "x.csv", TestSize: 0.2},
			Logging: LoggingConfig{Level: "info", Format: "console"},
			Server:  ServerConfig{Mode: "release"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		param  string
	}{
		{"test size zero", func(c *Config) { c.Data.TestSize = 0 }, "data.test_size"},
		{"test size one", func(c *Config) { c.Data.TestSize = 1 }, "data.test_size"},
		{"negative workers", func(c *Config) { c.Training.Workers = -1 }, "training.workers"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.param, vErr.ParamName)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("LOANML_TEST_DIR", "/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, filepath.Join(home, "models"), ExpandPath("~/models"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/data/loan.csv", ExpandPath("$LOANML_TEST_DIR/loan.csv"))
}

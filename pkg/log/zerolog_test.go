package log

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lmerrors "github.com/YuminosukeSato/loanml/pkg/errors"
)

func decodeLines(t *testing.T, raw string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func restoreDefault(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() {
		SetLogger(prev)
		lmerrors.SetZerologWarnFunc(nil)
	})
}

func TestSetup_JSON(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger, closer, err := Setup(Options{Level: "debug", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.With(RunIDKey, "run-7").Info("Model evaluated",
		ModelNameKey, "KNN",
		AccuracyKey, 0.75,
		SamplesKey, 123,
	)

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "Model evaluated", e["message"])
	assert.Equal(t, "KNN", e[ModelNameKey])
	assert.Equal(t, "run-7", e[RunIDKey])
	assert.Equal(t, 0.75, e[AccuracyKey])
	assert.Equal(t, 123.0, e[SamplesKey])
	assert.Same(t, logger, GetLogger())
}

func TestSetup_LevelFiltering(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger, _, err := Setup(Options{Level: "warn", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestSetup_ErrorCarriesStacktrace(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger, _, err := Setup(Options{Level: "info", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.Error("Training failed", lmerrors.NewModelError("Fit", "singular", nil))

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0][ErrorKey], "loanml: Fit: singular")
	assert.NotEmpty(t, entries[0][StacktraceKey])
}

func TestSetup_RoutesWarnings(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	_, _, err := Setup(Options{Level: "info", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	lmerrors.Warn(lmerrors.NewConvergenceWarning("lbfgs", 100, ""))

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0]["level"])
	warning, ok := entries[0][WarningKey].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "lbfgs", warning["algorithm"])
	assert.Equal(t, "ConvergenceWarning", warning["type"])
}

func TestSetup_File(t *testing.T) {
	restoreDefault(t)
	path := filepath.Join(t.TempDir(), "loanml.log")
	var buf bytes.Buffer

	logger, closer, err := Setup(Options{Level: "info", Format: FormatConsole, Output: &buf, File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	logger.Info("to file", PathKey, "data/loan.csv")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := decodeLines(t, string(raw))
	require.Len(t, entries, 1)
	assert.Equal(t, "data/loan.csv", entries[0][PathKey])
	assert.Contains(t, buf.String(), "to file")
}

func TestSetup_InvalidOptions(t *testing.T) {
	_, _, err := Setup(Options{Level: "verbose"})
	assert.Error(t, err)

	_, _, err = Setup(Options{Level: "info", Format: "xml"})
	var vErr *lmerrors.ValidationError
	require.True(t, lmerrors.As(err, &vErr))
	assert.Equal(t, "log.format", vErr.ParamName)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"", LevelInfo},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetLoggerWithName(t *testing.T) {
	restoreDefault(t)
	testLogger, _ := NewTestLogger(LevelDebug)
	SetLogger(testLogger)

	GetLoggerWithName("server").Info("listening")

	assert.True(t, testLogger.ContainsField(ComponentKey, "server"))
}

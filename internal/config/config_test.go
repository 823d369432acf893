package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Scanner.MaxConcurrentScans)
	assert.Equal(t, 500*time.Millisecond, cfg.Scanner.Throttle)
	assert.Equal(t, "fluxscan", cfg.Scanner.PluginID)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scanner:
  max_concurrent_scans: 2
  throttle: 250ms
engine:
  rps: 20
output:
  format: html
  output_file: report.html
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Scanner.MaxConcurrentScans)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.Throttle)
	assert.Equal(t, "fluxscan", cfg.Scanner.PluginID)
	assert.Equal(t, 20, cfg.Engine.RPS)
	assert.Equal(t, 10*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "html", cfg.Output.Format)
	assert.Equal(t, "report.html", cfg.Output.OutputFile)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero ceiling", "scanner:\n  max_concurrent_scans: 0\n"},
		{"negative throttle", "scanner:\n  throttle: -1s\n"},
		{"negative rps", "engine:\n  rps: -5\n"},
		{"unknown format", "output:\n  format: markdown\n"},
		{"not yaml", "scanner: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

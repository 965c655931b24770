package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/batchcrawl/internal/batch"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd)
	RegisterBatchFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, batch.StrategyAdaptive, cfg.ParsedStrategy())
	assert.Equal(t, batch.DefaultConfig(), cfg.Batch)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, DefaultCacheMaxEntries, cfg.Cache.MaxEntries)
	assert.Empty(t, cfg.HTTP.Proxies)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BATCHCRAWL_BATCH_BATCH_SIZE", "20")
	t.Setenv("BATCHCRAWL_BATCH_PROCESSING_TIMEOUT", "90s")
	t.Setenv("BATCHCRAWL_STRATEGY", "conservative")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Batch.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Batch.ProcessingTimeout)
	assert.Equal(t, batch.StrategyConservative, cfg.ParsedStrategy())
}

func TestLoad_ConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batchcrawl.yaml")
	content := `
strategy: balanced
batch:
  batch_size: 40
  max_concurrent_batches: 3
  item_delay: 0s
http:
  proxies:
    - http://proxy.local:8080
cache:
  ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cmd := newTestCommand(t, "--config", path, "--batch-size", "60", "--no-adaptive", "-v")
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, batch.StrategyBalanced, cfg.ParsedStrategy())
	assert.Equal(t, 60, cfg.Batch.BatchSize, "flag beats file")
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentBatches)
	assert.Equal(t, time.Duration(0), cfg.Batch.ItemDelay)
	assert.False(t, cfg.Batch.AdaptiveSizing)
	assert.Equal(t, []string{"http://proxy.local:8080"}, cfg.HTTP.Proxies)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_UnchangedFlagsKeepDefaults(t *testing.T) {
	cfg, err := Load(newTestCommand(t))
	require.NoError(t, err)

	assert.Equal(t, batch.DefaultBatchSize, cfg.Batch.BatchSize)
	assert.Equal(t, batch.DefaultItemDelay, cfg.Batch.ItemDelay)
	assert.True(t, cfg.Batch.AdaptiveSizing)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][]string{
		"strategy":   {"--strategy", "reckless"},
		"batch size": {"--batch-size", "-4"},
		"proxy":      {"--proxy", "not-a-url"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(newTestCommand(t, args...))
			assert.Error(t, err)
		})
	}

	_, err := Load(newTestCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 1.0, cfg.Scrape.RequestsPerSecond)
	assert.Equal(t, 1, cfg.Scrape.Burst)
	assert.Equal(t, 2*time.Second, cfg.Browser.SettleDelay)
	assert.Equal(t, 120*time.Second, cfg.Browser.ChallengeTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	// Run from an empty directory so no stray config.yaml is picked up.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "quayscrape", cfg.Logger.ServiceName)

	// Built-in target table applies when the file declares none.
	require.Len(t, cfg.Targets, 4)
	assert.Equal(t, "T18", cfg.Targets[0].Code)
	assert.Equal(t, TargetKindForm, cfg.Targets[0].Kind)
	assert.Equal(t, TargetKindBrowser, cfg.Targets[1].Kind)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logger:
  level: debug
scrape:
  requests_per_second: 2.5
  burst: 3
targets:
  - code: OAK
    name: Oakland
    base_url: https://www.etslink.com
    kind: browser
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 2.5, cfg.Scrape.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Scrape.Burst)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "OAK", cfg.Targets[0].Code)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			HTTP:    HTTPConfig{Timeout: time.Second},
			Scrape:  ScrapeConfig{RequestsPerSecond: 1, Burst: 1},
			Targets: DefaultTargets(),
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("zero rate rejected", func(t *testing.T) {
		cfg := base()
		cfg.Scrape.RequestsPerSecond = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown target kind rejected", func(t *testing.T) {
		cfg := base()
		cfg.Targets[0].Kind = "carrier-pigeon"
		assert.Error(t, cfg.Validate())
	})

	t.Run("duplicate code rejected", func(t *testing.T) {
		cfg := base()
		cfg.Targets = append(cfg.Targets, cfg.Targets[0])
		assert.Error(t, cfg.Validate())
	})
}

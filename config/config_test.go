package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mtc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err, "explicit missing path must fail")

	// No explicit path: missing file falls back to defaults. Run from
	// an empty directory so a developer mtc.yaml cannot leak in.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { _ = os.Chdir(wd) }()

	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Scan.IncludeSubdirs)
	assert.EqualValues(t, 10, cfg.Scan.MinFileSize)
	assert.Equal(t, MediaAll, cfg.Run.Media)
	assert.Equal(t, "tools.json", cfg.Tools.Catalog)
	assert.Zero(t, cfg.Run.TaskTimeout)
}

func TestLoadParsesHumanSizes(t *testing.T) {
	path := writeConfig(t, `
scan:
  min_file_size: 1KiB
run:
  media: video
  task_timeout: 90m
  parallel: 4
resources:
  min_free_disk: 2GB
params:
  crf: "26"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 1024, cfg.Scan.MinFileSize)
	assert.Equal(t, MediaVideo, cfg.Run.Media)
	assert.Equal(t, 90*time.Minute, cfg.Run.TaskTimeout)
	assert.Equal(t, 4, cfg.Run.Parallel)
	assert.EqualValues(t, 2<<30, cfg.Resources.MinFreeDisk)
	assert.Equal(t, "26", cfg.Params["crf"])
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad media", func(c *Config) { c.Run.Media = "audio" }},
		{"negative parallel", func(c *Config) { c.Run.Parallel = -1 }},
		{"backup and delete together", func(c *Config) {
			c.Run.BackupDir = "/backup"
			c.Run.DeleteSource = true
		}},
		{"negative min size", func(c *Config) { c.Scan.MinFileSize = -1 }},
		{"empty catalog path", func(c *Config) { c.Tools.Catalog = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

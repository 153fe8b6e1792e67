// Package config loads and validates the application configuration.
// The tool catalog is deliberately not part of this file: it is a
// separate JSON document owned by core/catalog and injected where
// needed, never reached through a global.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ErrInvalid wraps every configuration validation failure. Callers
// treat it as fatal: a run never starts on a broken config.
var ErrInvalid = errors.New("invalid configuration")

// Config is the application configuration. One immutable value is
// built at startup and handed to the components that need it.
type Config struct {
	Scan      ScanConfig      `mapstructure:"scan"`
	Run       RunConfig       `mapstructure:"run"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Resources ResourceConfig  `mapstructure:"resources"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// Params are encoder tunables substituted into command templates
	// ($QUALITY$, $CRF$, ...). Catalog defaults < config < --param.
	Params map[string]string `mapstructure:"params"`
}

// ScanConfig controls directory traversal and matching.
type ScanConfig struct {
	// IncludeSubdirs walks the whole tree; false reads only the root.
	IncludeSubdirs bool `mapstructure:"include_subdirs"`

	// ExcludeDirs are root-relative (or absolute) subtrees to prune.
	ExcludeDirs []string `mapstructure:"exclude_dirs"`

	// MinFileSize treats smaller files as placeholders ("10B", "1KiB").
	MinFileSize int64 `mapstructure:"min_file_size"`
}

// RunConfig controls a conversion run.
type RunConfig struct {
	// Parallel is the worker count. 0 picks a value from the machine.
	Parallel int `mapstructure:"parallel"`

	// GPU prefers GPU command templates for video tools.
	GPU bool `mapstructure:"gpu"`

	// Media restricts the run: image, video or all.
	Media string `mapstructure:"media"`

	// BackupDir mirrors converted sources under this root. Empty
	// leaves sources in place.
	BackupDir string `mapstructure:"backup_dir"`

	// DeleteSource removes sources after a durable conversion.
	DeleteSource bool `mapstructure:"delete_source"`

	// VerifyOutput additionally checks output magic bytes on success.
	VerifyOutput bool `mapstructure:"verify_output"`

	// TaskTimeout bounds a single encoder invocation. 0 disables.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// ToolsConfig locates external encoders.
type ToolsConfig struct {
	// Catalog is the path of the tool catalog JSON.
	Catalog string `mapstructure:"catalog"`

	// BinDir is checked before PATH when resolving executables.
	BinDir string `mapstructure:"bin_dir"`
}

// ResourceConfig sets the preflight machine checks.
type ResourceConfig struct {
	// MinFreeDisk under the scan root ("1GB").
	MinFreeDisk int64 `mapstructure:"min_free_disk"`

	// MinFreeMemory before starting workers ("256MB").
	MinFreeMemory int64 `mapstructure:"min_free_memory"`

	// Abort turns threshold violations from warnings into hard stops.
	Abort bool `mapstructure:"abort"`
}

// LoggingConfig controls the zap logger and the failure log.
type LoggingConfig struct {
	// LogDir receives the JSON process log and the daily failure log.
	LogDir string `mapstructure:"log_dir"`

	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
}

const (
	MediaImage = "image"
	MediaVideo = "video"
	MediaAll   = "all"
)

// Load reads the configuration. An explicit path is required to exist;
// otherwise mtc.yaml is searched in the working directory and
// ~/.config/mtc, and a missing file just means defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	setDefaults(vp)

	if path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	} else {
		vp.SetConfigName("mtc")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("$HOME/.config/mtc")
		if err := vp.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
	}

	vp.SetEnvPrefix("MTC")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot act on.
func (c *Config) Validate() error {
	switch c.Run.Media {
	case MediaImage, MediaVideo, MediaAll:
	default:
		return fmt.Errorf("%w: run.media must be image, video or all, got %q", ErrInvalid, c.Run.Media)
	}
	if c.Run.Parallel < 0 {
		return fmt.Errorf("%w: run.parallel must be >= 0, got %d", ErrInvalid, c.Run.Parallel)
	}
	if c.Run.DeleteSource && c.Run.BackupDir != "" {
		return fmt.Errorf("%w: run.delete_source and run.backup_dir are mutually exclusive", ErrInvalid)
	}
	if c.Scan.MinFileSize < 0 {
		return fmt.Errorf("%w: scan.min_file_size must be >= 0", ErrInvalid)
	}
	if c.Run.TaskTimeout < 0 {
		return fmt.Errorf("%w: run.task_timeout must be >= 0", ErrInvalid)
	}
	if c.Tools.Catalog == "" {
		return fmt.Errorf("%w: tools.catalog must not be empty", ErrInvalid)
	}
	return nil
}

// stringToByteSizeHookFunc lets config values use human byte sizes
// ("10B", "200MB", "1GiB") wherever an int64 is expected.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

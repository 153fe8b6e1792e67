package config

import "github.com/spf13/viper"

// Defaults are set as strings where a decode hook gives them meaning,
// so a config file can use the same spellings.
func setDefaults(vp *viper.Viper) {
	vp.SetDefault("scan.include_subdirs", true)
	vp.SetDefault("scan.exclude_dirs", []string{})
	vp.SetDefault("scan.min_file_size", "10B")

	vp.SetDefault("run.parallel", 0)
	vp.SetDefault("run.gpu", false)
	vp.SetDefault("run.media", MediaAll)
	vp.SetDefault("run.backup_dir", "")
	vp.SetDefault("run.delete_source", false)
	vp.SetDefault("run.verify_output", false)
	vp.SetDefault("run.task_timeout", "0s")

	vp.SetDefault("tools.catalog", "tools.json")
	vp.SetDefault("tools.bin_dir", "./bin")

	vp.SetDefault("resources.min_free_disk", "1GB")
	vp.SetDefault("resources.min_free_memory", "256MB")
	vp.SetDefault("resources.abort", false)

	vp.SetDefault("logging.log_dir", "./logs")
	vp.SetDefault("logging.verbose", false)
	vp.SetDefault("logging.quiet", false)
}

// Default returns the configuration a run gets with no config file.
// Values mirror setDefaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			IncludeSubdirs: true,
			MinFileSize:    10,
		},
		Run: RunConfig{
			Media: MediaAll,
		},
		Tools: ToolsConfig{
			Catalog: "tools.json",
			BinDir:  "./bin",
		},
		Resources: ResourceConfig{
			MinFreeDisk:   1 << 30,
			MinFreeMemory: 256 << 20,
		},
		Logging: LoggingConfig{
			LogDir: "./logs",
		},
	}
}

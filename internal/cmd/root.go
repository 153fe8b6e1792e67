// Package cmd wires the command line surface: flag parsing, config
// loading and the run/tools subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jaco00/media-transcode/config"
	"github.com/jaco00/media-transcode/internal/logger"
	"github.com/jaco00/media-transcode/internal/version"
)

var (
	cfgFile     string
	flagVerbose bool
	flagQuiet   bool

	log *zap.Logger
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mtc",
	Short: "Batch media conversion driven by external encoders",
	Long: `mtc walks a directory tree, pairs every image and video with its
converted output by name, and shells out to the best available encoder
for whatever is still pending. Images become AVIF, videos become H.265,
and a source file is never touched until its replacement is durably in
place next to it.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Fatal errors are printed here once; per-file
// conversion failures never surface as an error exit.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	if log != nil {
		_ = log.Sync()
	}
	return err
}

func init() {
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ./mtc.yaml, then $HOME/.config/mtc/mtc.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"debug logging on the console")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false,
		"only warnings and the final summary")
}

// setup loads configuration and opens the logger. Every subcommand
// calls it first; flag values override the file.
func setup() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagVerbose {
		cfg.Logging.Verbose = true
	}
	if flagQuiet {
		cfg.Logging.Quiet = true
	}

	log, err = logger.New(logger.Options{
		Verbose: cfg.Logging.Verbose,
		Quiet:   cfg.Logging.Quiet,
		LogDir:  cfg.Logging.LogDir,
	})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	return nil
}

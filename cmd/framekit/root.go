package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/framekit/config"
	"github.com/lixenwraith/framekit/logging"
)

// options are the persistent flags plus the loaded configuration
type options struct {
	configPath  string
	logFile     string
	metricsAddr string
	inline      int
	verbose     bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "framekit",
		Short:        "Incremental terminal rendering pipeline",
		Long:         `framekit diffs cell buffers, recomputes layout incrementally and presents frames inside a synchronized-output bracket, coalescing resize storms on the way.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			// Commands that own the terminal replace this with a file logger
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), logging.New(os.Stderr, level)))
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("framekit %s %s\n", version, commit))
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "TOML config file")
	pf.StringVar(&opts.logFile, "log-file", "", "write logs to this file (the terminal is busy with frames)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newDemoCmd(opts))
	root.AddCommand(newCapsCmd(opts))
	root.AddCommand(newGraphCmd(opts))
	return root
}

// load reads the config file and folds explicitly set flags over it
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-file") {
		cfg.Log.File = o.logFile
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if flags.Lookup("metrics-addr") != nil && flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if flags.Lookup("inline") != nil && flags.Changed("inline") {
		if o.inline > 0 {
			cfg.Present.Mode = config.ModeInline
			cfg.Present.InlineHeight = o.inline
		} else {
			cfg.Present.Mode = config.ModeFullscreen
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

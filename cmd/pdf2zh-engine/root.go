package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/seantiz/pdf2zh-engine/internal/config"
)

// flags holds the raw command-line values. Only flags the user actually set
// override the file and environment layers.
type flags struct {
	configPath string
	port       int
	ppid       int
	logDir     string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "pdf2zh-engine",
		Short:         "Local PDF translation job server",
		Long:          "pdf2zh-engine serves translation jobs over HTTP on a loopback port and streams their progress as server-sent events.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Configuration file path (TOML)")
	cmd.Flags().IntVar(&f.port, "port", 0, "Loopback port to listen on (0 picks a free port)")
	cmd.Flags().IntVar(&f.ppid, "ppid", 0, "Parent process id to supervise (0 disables)")
	cmd.Flags().StringVar(&f.logDir, "log-dir", "", "Directory for engine.log")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: json, text or auto")

	return cmd
}

// loadConfig layers explicitly set flags over the file and environment
// configuration and validates the result.
func loadConfig(fs *pflag.FlagSet, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("ppid") {
		cfg.PPID = f.ppid
	}
	if fs.Changed("log-dir") {
		cfg.LogDir = f.logDir
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/config"
	"github.com/image-inspector/backend/internal/logger"
)

const defaultConfigName = "imageinspector.yaml"

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "imageinspector",
		Short:         "Reports size, dimensions, resolution, color depth and compression of image files",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to the YAML configuration (serve writes the defaults next to the executable when unset)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"log level override: debug, info, warn or error")

	root.AddCommand(
		newScanCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newTagsCmd(opts),
	)
	return root
}

// loadConfig reads --config when given. Without it the CLI commands run on
// the defaults and never write a file.
func (o *globalOptions) loadConfig() (*config.AppConfig, error) {
	if o.configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(o.configPath)
}

// serverConfigPath is --config, or the default file beside the executable.
func (o *globalOptions) serverConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), defaultConfigName), nil
}

func (o *globalOptions) level(cfg *config.AppConfig) string {
	if o.logLevel != "" {
		return o.logLevel
	}
	return cfg.Logging.Level
}

// consoleLogger is the human-readable logger of the interactive commands.
// It defaults to warn so status lines are not drowned.
func (o *globalOptions) consoleLogger() (*zap.Logger, error) {
	level := o.logLevel
	if level == "" {
		level = "warn"
	}
	return logger.NewConsole(level)
}

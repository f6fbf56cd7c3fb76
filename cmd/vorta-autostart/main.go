// Package main is the entry point for vorta-autostart.
// It loads configuration, selects the platform backend and toggles whether
// Vorta starts at login.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/paolobenve/vorta/internal/autostart"
	"github.com/paolobenve/vorta/internal/config"
	"github.com/paolobenve/vorta/internal/platform"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath   string
	logLevel     string
	templatePath string
)

func main() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// execute runs root and prints any returned error to its error stream.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vorta-autostart",
		Short:         "Toggle whether Vorta starts at login",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: auto-discover)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&templatePath, "template", "", "Desktop entry template overriding the bundled one")

	root.AddCommand(
		toggleCmd("enable", "Register Vorta to start at login", true),
		toggleCmd("disable", "Remove the login registration", false),
		statusCmd(),
		initConfigCmd(),
	)
	return root
}

func toggleCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			mgr := autostart.New(cfg, logger)
			if err := mgr.SetAutostart(enabled); err != nil {
				return err
			}
			logger.Info("Autostart updated",
				zap.String("backend", mgr.BackendName()),
				zap.Bool("enabled", enabled))
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether Vorta is registered to start at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			info, err := platform.Describe(context.Background())
			if err != nil {
				logger.Debug("Host info unavailable", zap.Error(err))
			}

			mgr := autostart.New(cfg, logger)
			enabled, err := mgr.IsEnabled()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "platform: %s", info.Family)
			if info.Platform != "" {
				fmt.Fprintf(out, " (%s %s)", info.Platform, info.PlatformVersion)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "backend:  %s\n", mgr.BackendName())
			fmt.Fprintf(out, "enabled:  %t\n", enabled)
			return nil
		},
	}
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(xdg.ConfigHome, "vorta", "autostart.yaml")
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteConfig(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Written config → %s\n", path)
			return nil
		},
	}
}

// setup loads and validates configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cli := config.CLIOverrides{LogLevel: logLevel, Template: templatePath}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadLayered(cli, configPath)
	} else {
		cfg, err = config.LoadLayered(cli)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, initLogger(cfg), nil
}

// initLogger creates a zap logger based on the configuration.
// It outputs to the console and optionally to a JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}

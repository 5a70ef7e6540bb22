package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxwire-ai/voxwire/internal/dotenv"
	"github.com/voxwire-ai/voxwire/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "voxwire",
	Short:         "Voice conversation toolkit",
	Long:          "Voxwire streams model answers sentence by sentence into synthesized speech,\nwith interruptible playback and a lightweight chat room transport.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(talkCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig applies .env, then the config file, then environment
// overrides.
func loadConfig() (config.Config, error) {
	if err := dotenv.Load(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/animarr/internal/config"
	"github.com/vmunix/animarr/internal/server"
)

var version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "animarr",
	Short: "CLI for the animarr content-identity pipeline",
	Long: `animarr - manage the content-identity and placement pipeline

Hash files, resolve release bindings, and relocate files into managed
folders, sharing the database with the animarrd daemon.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("animarr {{.Version}}\n")
}

// openComponents loads the configuration and wires the pipeline for one CLI
// invocation. The returned closer must run before exit.
func openComponents() (*server.Components, *sql.DB, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	db, err := server.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	components, err := server.Build(db, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	closer := func() {
		_ = components.Bus.Close()
		_ = db.Close()
	}
	return components, db, closer, nil
}

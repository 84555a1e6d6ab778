package main

import (
	"github.com/spf13/cobra"

	"turtled/internal/config"
)

// cfg holds the process configuration bound from flags and environment
// defaults; every subcommand reads from it.
var cfg = config.Default()

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "turtled",
	Short: "Control and state-sync backend for a fleet of scriptable turtles",
	Long: `turtled multiplexes long-lived turtle sockets against short-lived
operator HTTP calls, tracks each turtle's pose, and maintains a persistent
voxel world reconstructed from each turtle's scans.`,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.ListenRobots, "listen-robots", cfg.ListenRobots, "address the robot socket listener binds")
	flags.StringVar(&cfg.ListenHTTP, "listen-http", cfg.ListenHTTP, "address the operator HTTP API binds")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory storing <uuid>.world/<uuid>.json pairs")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "panic, fatal, error, warn, info, debug, or trace")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

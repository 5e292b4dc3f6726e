package main

import (
	"os"
	"time"

	"proclens/commands"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Build info
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	rootCmd = &cobra.Command{
		Use:   "proclens",
		Short: "Live process table with an Ollama assistant",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initEnv()
		},
	}
	globalFlags struct {
		Debug bool
	}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC1123,
	})
	log.SetOutput(os.Stderr)
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Enable debug")
	rootCmd.Version = version + " (" + commit + ") built on " + date
}

func initEnv() {
	if globalFlags.Debug {
		log.SetLevel(log.DebugLevel)
	}
}

func main() {
	rootCmd.AddCommand(commands.ServeCmd, commands.SnapshotCmd, commands.AskCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

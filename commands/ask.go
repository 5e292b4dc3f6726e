package commands

import (
	"context"
	"fmt"
	"strings"

	"proclens/api"
	"proclens/collector"

	"github.com/spf13/cobra"
)

var AskCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask Ollama one question about the current processes",
	Args:  cobra.MinimumNArgs(1),
	Run:   askCmdRun,
}

func init() {
	AskCmd.Flags().StringVar(&configFilePath, "config", "", "Path to a YAML config file")
}

func askCmdRun(cmd *cobra.Command, args []string) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "question is empty")
		return
	}

	cfg := loadConfig()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	newBootstrapper(cfg, nil).EnsureServer(ctx)

	coll, closeColl := collector.FromConfig(cfg, collector.NewStore(), nil)
	defer closeColl()
	snap := coll.Collect(ctx)

	fmt.Fprintln(cmd.OutOrStdout(), api.NewClient(cfg, nil).Ask(ctx, question, snap))
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"proclens/collector"
	"proclens/models"

	"github.com/spf13/cobra"
)

var SnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Collect one snapshot and print it",
	Args:  cobra.NoArgs,
	Run:   snapshotCmdRun,
}

func init() {
	SnapshotCmd.Flags().StringVar(&configFilePath, "config", "", "Path to a YAML config file")
}

func snapshotCmdRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	coll, closeColl := collector.FromConfig(cfg, collector.NewStore(), nil)
	defer closeColl()

	printSnapshot(os.Stdout, coll.Collect(context.Background()))
}

func printSnapshot(out io.Writer, snap *models.Snapshot) {
	if len(snap.Processes) == 0 {
		fmt.Fprintln(out, "No processes found or insufficient permissions.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "PID\tNAME\tSTATUS\tCPU MS\tMEMORY KB\tCONTAINER\t")
	for _, p := range snap.Processes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f K\t%s\t\n",
			p.PID, p.Name, p.Status, p.CPUTimeMs, p.ResidentMemoryKB, p.Container)
	}
	w.Flush()
	if snap.Skipped > 0 {
		fmt.Fprintf(out, "(%d processes could not be read)\n", snap.Skipped)
	}
}

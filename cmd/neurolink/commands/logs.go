package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/ui"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the protocol log",
	Long: `Print the server's protocol log, oldest first. With --follow, keep
polling for new entries until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		follow, _ := cmd.Flags().GetBool("follow")
		interval, _ := cmd.Flags().GetDuration("interval")
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		entries, err := client.Logs(ctx, 0)
		if err != nil {
			return err
		}
		last := printEntries(out, entries, 0)
		if !follow {
			return nil
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			entries, err := client.Logs(ctx, last)
			if err != nil {
				return err
			}
			last = printEntries(out, entries, last)
		}
	},
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Keep printing new entries")
	logsCmd.Flags().Duration("interval", time.Second, "Poll interval for --follow")
	rootCmd.AddCommand(logsCmd)
}

// printEntries writes entries and returns the highest sequence seen.
func printEntries(out io.Writer, entries []eventlog.Entry, last uint64) uint64 {
	for _, e := range entries {
		fmt.Fprintln(out, ui.RenderLogLine(e.Timestamp, string(e.Type), e.Message))
		if e.Seq > last {
			last = e.Seq
		}
	}
	return last
}

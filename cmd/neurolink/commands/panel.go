package commands

import (
	"context"
	"io"
	"log"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/edgecli/neurolink/internal/core"
	"github.com/edgecli/neurolink/internal/tui"
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Run the terminal panel with an in-process device",
	Long: `Run the device, protocol log and Neuromancer in this process and show
them in a full-screen terminal panel.

Keys:
  w       wake the device
  s       shut the device down (asks for confirmation)
  l       toggle the safety lock
  tab     chat with Neuromancer
  q       quit`,
	RunE: runPanel,
}

func init() {
	panelCmd.Flags().String("log-file", "neurolink-panel.log", "Where diagnostic logs go while the panel is open (with --verbose)")
	rootCmd.AddCommand(panelCmd)
}

func runPanel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The panel owns the terminal, so diagnostics go to a file or nowhere.
	if cfg.Verbose {
		path, _ := cmd.Flags().GetString("log-file")
		f, err := tea.LogToFile(path, "neurolink")
		if err != nil {
			return err
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	c, err := core.Build(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	c.Start(runCtx)

	err = tui.Run(runCtx, c.Controller, c.Logs, c.Assistant)
	cancel()
	c.Wait()
	return err
}

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgecli/neurolink/internal/api"
	"github.com/edgecli/neurolink/internal/approval"
	"github.com/edgecli/neurolink/internal/remote"
	"github.com/edgecli/neurolink/internal/ui"
)

const waitPoll = 250 * time.Millisecond

// deviceCmd is the parent command for power and lock control
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Inspect and control the target machine",
	Long:  `Commands that query the device card or fire power intents on a running web server.`,
}

var deviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the device card",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		return printStatus(cmd.Context(), cmd.OutOrStdout(), client)
	},
}

var deviceOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Send the wake intent (magic packet)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		res, err := client.PowerOn(cmd.Context())
		if err != nil {
			return err
		}
		if !res.Accepted {
			fmt.Fprintln(out, ui.RenderDim(fmt.Sprintf("Ignored: device is %s", res.Device.Device.Status.Label())))
			return nil
		}
		fmt.Fprintln(out, ui.RenderSuccess("Wake sequence started"))
		return maybeWait(cmd, client)
	},
}

var deviceOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Send the shutdown intent after confirmation",
	Long: `Request a power-off ticket and redeem it. The confirmation card is shown
first unless --yes is given. A released safety lock is required for the
shutdown to take effect.`,
	RunE: runDeviceOff,
}

var deviceLockCmd = &cobra.Command{
	Use:       "lock [on|off]",
	Short:     "Engage, release or toggle the safety lock",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		var want *bool
		if len(args) == 1 {
			v, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			want = &v
		}

		locked, err := client.SetLock(cmd.Context(), want)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Safety lock: %s\n", lockLabel(locked))
		return nil
	},
}

func init() {
	deviceOnCmd.Flags().Bool("wait", false, "Wait until the device settles")
	deviceOffCmd.Flags().Bool("wait", false, "Wait until the device settles")
	deviceOffCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation card")

	deviceCmd.AddCommand(deviceStatusCmd)
	deviceCmd.AddCommand(deviceOnCmd)
	deviceCmd.AddCommand(deviceOffCmd)
	deviceCmd.AddCommand(deviceLockCmd)
	rootCmd.AddCommand(deviceCmd)
}

func runDeviceOff(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	snap, err := client.Device(ctx)
	if err != nil {
		return err
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		d := snap.Device
		action := approval.NewAction(approval.ActionPowerOff,
			fmt.Sprintf("%s (%s)", d.MACAddress, d.IPAddress),
			"目标设备将收到远程关机指令，所有未保存的工作将丢失。",
			snap.Locked)
		result := approval.PromptApproval(cmd.InOrStdin(), out, action)
		if result.Decision != approval.DecisionYes {
			fmt.Fprintln(out, ui.RenderDim("Aborted"))
			return nil
		}
	}

	ticket, err := client.RequestPowerOff(ctx)
	if err != nil {
		return err
	}
	res, err := client.ConfirmPowerOff(ctx, ticket.Token)
	if err != nil {
		return err
	}

	switch {
	case res.Accepted:
		fmt.Fprintln(out, ui.RenderSuccess("Shutdown sequence started"))
		return maybeWait(cmd, client)
	case res.Device.Locked:
		fmt.Fprintln(out, ui.RenderDim("Ignored: safety lock is engaged (neurolink device lock off)"))
	default:
		fmt.Fprintln(out, ui.RenderDim(fmt.Sprintf("Ignored: device is %s", res.Device.Device.Status.Label())))
	}
	return nil
}

func maybeWait(cmd *cobra.Command, client *remote.Client) error {
	if wait, _ := cmd.Flags().GetBool("wait"); !wait {
		return nil
	}
	snap, err := waitSettled(cmd.Context(), client)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Device is %s\n", snap.StatusLabel)
	return nil
}

// waitSettled polls until the device is no longer mid-transition.
func waitSettled(ctx context.Context, client *remote.Client) (*api.DeviceResponse, error) {
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	for {
		snap, err := client.Device(ctx)
		if err != nil {
			return nil, err
		}
		if !snap.Busy && !snap.Device.Status.Transitional() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printStatus(ctx context.Context, out io.Writer, client *remote.Client) error {
	snap, err := client.Device(ctx)
	if err != nil {
		return err
	}
	d := snap.Device

	status := ui.Color(ui.StatusColor(string(d.Status)), snap.StatusLabel)

	fmt.Fprintf(out, "Status:    %s\n", status)
	fmt.Fprintf(out, "IP:        %s\n", d.IPAddress)
	fmt.Fprintf(out, "MAC:       %s\n", d.MACAddress)
	fmt.Fprintf(out, "Last seen: %s\n", d.LastSeen)
	fmt.Fprintf(out, "CPU:       %d%%\n", d.CPULoad)
	fmt.Fprintf(out, "Temp:      %d°C\n", d.Temp)
	fmt.Fprintf(out, "Lock:      %s\n", lockLabel(snap.Locked))
	if snap.Busy {
		fmt.Fprintf(out, "Phase:     %s\n", snap.Phase)
	}
	return nil
}

func lockLabel(locked bool) string {
	if locked {
		return "engaged"
	}
	return "released"
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "engage":
		return true, nil
	case "off", "false", "0", "release":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

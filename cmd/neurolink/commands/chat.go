package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgecli/neurolink/internal/remote"
	"github.com/edgecli/neurolink/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to Neuromancer, the tech support assistant",
	Long: `Start an interactive chat with Neuromancer through a running web server.
Neuromancer knows the device's current status and can help with Wake-on-LAN,
BIOS settings and network troubleshooting.

Examples:
  # Interactive mode
  neurolink chat

  # Single message mode
  neurolink chat "why does my machine not wake up?"

  # Custom server
  neurolink chat --server localhost:9090 "check BIOS settings"
`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// If a message is provided as argument, run in single-shot mode
	if len(args) > 0 {
		return sendChatMessage(cmd.Context(), out, client, strings.Join(args, " "), false)
	}

	currentUser := "user"
	if u, err := user.Current(); err == nil {
		currentUser = u.Username
	}

	printHeader := func() {
		fmt.Fprint(out, ui.RenderHeader(Version, currentUser, client.BaseURL()))
		fmt.Fprint(out, ui.RenderHelpLines())
	}
	printHeader()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, ui.RenderUserPrompt())
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "q":
			fmt.Fprintln(out, ui.RenderDim("Goodbye!"))
			return nil
		case "help", "?":
			printChatHelp(out)
			continue
		case "clear":
			fmt.Fprint(out, "\033[H\033[2J")
			printHeader()
			continue
		case "history":
			if err := printHistory(cmd.Context(), out, client); err != nil {
				fmt.Fprintln(out, ui.RenderError(err))
			}
			continue
		case "status":
			if err := printStatus(cmd.Context(), out, client); err != nil {
				fmt.Fprintln(out, ui.RenderError(err))
			}
			continue
		}

		if err := sendChatMessage(cmd.Context(), out, client, input, true); err != nil {
			fmt.Fprintln(out, ui.RenderError(err))
		}
		fmt.Fprintln(out)
	}

	return scanner.Err()
}

func sendChatMessage(ctx context.Context, out io.Writer, client *remote.Client, message string, interactive bool) error {
	var spinner *ui.Spinner
	if interactive && out == os.Stdout && ui.IsTTY() {
		spinner = ui.NewSpinnerTo(out, "Neuromancer 正在输入...")
		spinner.Start()
	}

	resp, err := client.Chat(ctx, message)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if resp.Degraded {
		fmt.Fprintln(out, ui.RenderDegradedIndicator())
	}
	if interactive {
		fmt.Fprint(out, ui.RenderAssistantPrefix())
	}
	fmt.Fprintln(out, resp.Reply)
	return nil
}

func printHistory(ctx context.Context, out io.Writer, client *remote.Client) error {
	tr, err := client.Transcript(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, m := range tr.Messages {
		fmt.Fprintln(out, ui.RenderMessage(string(m.Role), m.Text))
	}
	fmt.Fprintln(out)
	return nil
}

func printChatHelp(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.Color(ui.Bold, "Commands:"))
	fmt.Fprintf(out, "  %s    - Show this help\n", ui.Color(ui.Cyan, "help, ?"))
	fmt.Fprintf(out, "  %s     - Show the conversation so far\n", ui.Color(ui.Cyan, "history"))
	fmt.Fprintf(out, "  %s      - Show the device status\n", ui.Color(ui.Cyan, "status"))
	fmt.Fprintf(out, "  %s       - Clear the screen\n", ui.Color(ui.Cyan, "clear"))
	fmt.Fprintf(out, "  %s - Exit the chat\n", ui.Color(ui.Cyan, "exit, quit"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.Color(ui.Bold, "Examples:"))
	fmt.Fprintln(out, ui.RenderDim("  \"how do I enable Wake-on-LAN in the BIOS?\""))
	fmt.Fprintln(out, ui.RenderDim("  \"the magic packet was sent but nothing happened\""))
	fmt.Fprintln(out)
}

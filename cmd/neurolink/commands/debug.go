package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgecli/neurolink/internal/config"
	"github.com/edgecli/neurolink/internal/redact"
	"github.com/edgecli/neurolink/internal/ui"
)

// debugCmd is the parent command for debug subcommands
var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug and diagnostic commands",
	Long:  `Commands for debugging and diagnosing issues with NeuroLink.`,
}

// debugFlagsCmd prints resolved flag values for debugging
var debugFlagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Print resolved flag values for debugging",
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		configPath, _ := cmd.Flags().GetString("config")
		server, _ := cmd.Flags().GetString("server")
		noColor, _ := cmd.Flags().GetBool("no-color")

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Resolved Flag Values:")
		fmt.Fprintf(out, "  --verbose:  %v\n", verbose)
		fmt.Fprintf(out, "  --config:   %q\n", configPath)
		fmt.Fprintf(out, "  --server:   %q\n", server)
		fmt.Fprintf(out, "  --no-color: %v\n", noColor)
		return nil
	},
}

// debugConfigCmd prints the effective configuration
var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and NEUROLINK_*
environment overrides have been applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		source := "(defaults)"
		if cfg.Source != "" {
			source = redact.RedactPath(cfg.Source)
		}
		prompts := "(built-in)"
		if cfg.PromptsFile != "" {
			prompts = redact.RedactPath(cfg.PromptsFile)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Effective Configuration:")
		fmt.Fprintf(out, "  source:              %s\n", source)
		fmt.Fprintf(out, "  web_addr:            %s\n", cfg.WebAddr)
		fmt.Fprintf(out, "  server_url:          %s\n", cfg.ServerURL)
		fmt.Fprintf(out, "  cors_origins:        %s\n", strings.Join(cfg.CORSOrigins, ", "))
		fmt.Fprintf(out, "  ip_address:          %s\n", cfg.IPAddress)
		fmt.Fprintf(out, "  mac_address:         %s\n", cfg.MACAddress)
		fmt.Fprintf(out, "  log_capacity:        %d\n", cfg.LogCapacity)
		fmt.Fprintf(out, "  pre_broadcast_ms:    %d\n", cfg.PreBroadcastMs)
		fmt.Fprintf(out, "  confirm_ms:          %d\n", cfg.ConfirmMs)
		fmt.Fprintf(out, "  pre_halt_ms:         %d\n", cfg.PreHaltMs)
		fmt.Fprintf(out, "  halt_ms:             %d\n", cfg.HaltMs)
		fmt.Fprintf(out, "  jitter_interval_ms:  %d\n", cfg.JitterIntervalMs)
		fmt.Fprintf(out, "  banner_ms:           %d\n", cfg.BannerMs)
		fmt.Fprintf(out, "  confirm_ttl_seconds: %d\n", cfg.ConfirmTTLSeconds)
		fmt.Fprintf(out, "  prompts_file:        %s\n", prompts)
		fmt.Fprintf(out, "  request_logging:     %v\n", cfg.RequestLogging)
		fmt.Fprintf(out, "  verbose:             %v\n", cfg.Verbose)
		return nil
	},
}

// debugEnvCmd lists the environment variables NeuroLink reads, redacted
var debugEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "Print relevant environment variables with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		var relevant []string
		for _, kv := range os.Environ() {
			if isRelevantEnv(kv) {
				relevant = append(relevant, kv)
			}
		}
		sort.Strings(relevant)

		out := cmd.OutOrStdout()
		if len(relevant) == 0 {
			fmt.Fprintln(out, "No NeuroLink or chat provider variables set.")
			return nil
		}
		for _, kv := range redact.RedactEnv(relevant) {
			fmt.Fprintf(out, "  %s\n", kv)
		}
		return nil
	},
}

// debugProviderCmd asks the server to probe its chat provider
var debugProviderCmd = &cobra.Command{
	Use:   "provider",
	Short: "Check the chat provider through a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		res, err := client.ChatHealth(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Provider: %s\n", res.Provider)
		fmt.Fprintf(out, "Model:    %s\n", res.Model)
		fmt.Fprintf(out, "Base URL: %s\n", res.BaseURL)
		if res.Ok {
			fmt.Fprintf(out, "Status:   %s\n", ui.RenderSuccess("ok"))
		} else {
			fmt.Fprintf(out, "Status:   %s\n", ui.Color(ui.Red, "unavailable"))
			fmt.Fprintf(out, "Error:    %s\n", res.Error)
		}
		return nil
	},
}

var envPrefixes = []string{config.EnvPrefix, "CHAT_", "GEMINI_", "GOOGLE_", "OPENAI_", "OLLAMA_", "API_KEY"}

func isRelevantEnv(kv string) bool {
	for _, p := range envPrefixes {
		if strings.HasPrefix(kv, p) {
			return true
		}
	}
	return false
}

func init() {
	debugCmd.AddCommand(debugFlagsCmd)
	debugCmd.AddCommand(debugConfigCmd)
	debugCmd.AddCommand(debugEnvCmd)
	debugCmd.AddCommand(debugProviderCmd)
}

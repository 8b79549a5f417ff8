package commands

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/edgecli/neurolink/internal/config"
	"github.com/edgecli/neurolink/internal/remote"
	"github.com/edgecli/neurolink/internal/ui"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

var rootCmd = &cobra.Command{
	Use:   "neurolink",
	Short: "NeuroLink Remote - wake and shut down a machine, with Neuromancer on call",
	Long: `NeuroLink Remote drives a simulated Wake-on-LAN target through its
power lifecycle and keeps a protocol log of every step. Neuromancer, the
built-in tech support assistant, narrates each action and answers questions.

Run "neurolink panel" for the terminal panel, or talk to a running web
server with the device, logs and chat commands.

Use "neurolink [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			ui.SetNoColor(true)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./neurolink.ini or ~/.neurolink/neurolink.ini)")
	rootCmd.PersistentFlags().String("server", "", "Web server URL (default: server_url from config)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(debugCmd)
}

// versionCmd shows version info
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "NeuroLink\n")
		fmt.Fprintf(out, "  Version:  %s\n", Version)
		fmt.Fprintf(out, "  Commit:   %s\n", Commit)
		fmt.Fprintf(out, "  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// loadConfig resolves the configuration named by --config, the usual
// locations and the environment. --verbose forces verbose logging on.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.New(path)
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// newClient returns an API client for --server, falling back to server_url.
func newClient(cmd *cobra.Command) (*remote.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	if server == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		server = cfg.ServerURL
	}
	return remote.New(server, nil), nil
}

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/config"
	"github.com/padlink/padlink/internal/logging"
	"github.com/padlink/padlink/internal/ui"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

var rootCmd = &cobra.Command{
	Use:   "padlink",
	Short: "padlink - use a phone as a LAN gamepad",
	Long: `padlink streams gamepad input from a client device to a host on the
same network. The host answers discovery broadcasts, pairs clients with an
ECDH handshake and decodes encrypted input snapshots.

Use "padlink [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		noColor, _ := cmd.Flags().GetBool("no-color")
		ui.SetNoColor(noColor)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Settings file (default: ~/.padlink/settings.json)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(qrCmd)
}

// versionCmd shows version info
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("padlink\n")
		fmt.Printf("  Version:  %s\n", Version)
		fmt.Printf("  Commit:   %s\n", Commit)
		fmt.Printf("  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// newLogger builds the logger selected by --verbose
func newLogger(cmd *cobra.Command) (*zap.SugaredLogger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	log, err := logging.New(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// settingsPath resolves --config or the default settings file
func settingsPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	paths, err := config.GetPaths()
	if err != nil {
		return "", err
	}
	return paths.SettingsFile, nil
}

// loadSettings loads the settings file and applies the port and pairing
// code flags a command defines
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path, err := settingsPath(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Lookup("stream-port") != nil && flags.Changed("stream-port") {
		settings.StreamPort, _ = flags.GetInt("stream-port")
	}
	if flags.Lookup("discovery-port") != nil && flags.Changed("discovery-port") {
		settings.DiscoveryPort, _ = flags.GetInt("discovery-port")
	}
	if flags.Lookup("shared-secret") != nil && flags.Changed("shared-secret") {
		settings.SharedSecret, _ = flags.GetString("shared-secret")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

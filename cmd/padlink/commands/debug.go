package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// debugCmd is the parent command for debug subcommands
var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug and diagnostic commands",
	Long:  `Commands for debugging and diagnosing issues with padlink.`,
}

// debugFlagsCmd prints resolved flag values for debugging
var debugFlagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Print resolved flag values for debugging",
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		configPath, _ := cmd.Flags().GetString("config")
		noColor, _ := cmd.Flags().GetBool("no-color")

		fmt.Println("Resolved Flag Values:")
		fmt.Printf("  --verbose:  %v\n", verbose)
		fmt.Printf("  --config:   %q\n", configPath)
		fmt.Printf("  --no-color: %v\n", noColor)
		return nil
	},
}

// debugConfigCmd prints the effective settings
var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective settings as YAML",
	Long: `Load the settings file (creating it with defaults if missing) and print
the result. The shared secret is masked unless --show-secret is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := settingsPath(cmd)
		if err != nil {
			return err
		}
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		showSecret, _ := cmd.Flags().GetBool("show-secret")
		if !showSecret && settings.SharedSecret != "" {
			settings.SharedSecret = "********"
		}

		out, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		fmt.Printf("# %s\n%s", path, out)
		return nil
	},
}

func init() {
	debugConfigCmd.Flags().Bool("show-secret", false, "Print the shared secret in clear")

	debugCmd.AddCommand(debugFlagsCmd)
	debugCmd.AddCommand(debugConfigCmd)
}

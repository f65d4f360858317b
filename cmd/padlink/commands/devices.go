package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/padlink/padlink/internal/config"
	"github.com/padlink/padlink/internal/registry"
	"github.com/padlink/padlink/internal/ui"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices that have paired with this host",
	Long: `List the paired-device registry kept by "padlink host", most recently
active first. Use --forget to remove a device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer devices.Close()

		if name, _ := cmd.Flags().GetString("forget"); name != "" {
			if err := devices.Forget(name); err != nil {
				return err
			}
			fmt.Println(ui.RenderSuccess(fmt.Sprintf("Forgot %q.", name)))
			return nil
		}

		list, err := devices.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No devices have paired yet.")
			return nil
		}

		fmt.Printf("Paired devices (%d):\n\n", len(list))
		for _, d := range list {
			fmt.Printf("  %s\n", ui.Color(ui.Bold, d.Name))
			fmt.Printf("    last seen %s from %s, paired %d time(s)\n",
				d.LastSeen().Format(time.RFC3339), d.Addr, d.Pairings)
			fmt.Printf("    %s\n\n", ui.RenderDim("keyId "+d.KeyID))
		}
		return nil
	},
}

func init() {
	devicesCmd.Flags().String("registry", "", "Paired-device registry file (default: ~/.padlink/devices.db)")
	devicesCmd.Flags().String("forget", "", "Remove the named device")
	rootCmd.AddCommand(devicesCmd)
}

// openRegistry opens --registry or the default registry file
func openRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	path, _ := cmd.Flags().GetString("registry")
	if path == "" {
		paths, err := config.GetPaths()
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureConfigDir(); err != nil {
			return nil, err
		}
		path = paths.DevicesFile
	}
	return registry.Open(path)
}

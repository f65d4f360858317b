package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/padlink/padlink/internal/discovery"
	"github.com/padlink/padlink/internal/ui"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find a host on the local network",
	Long: `Broadcast a discovery request and print the first host that answers.
A host configured with a pairing code only answers requests carrying it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		pairCode, err := resolvePairCode(cmd, settings)
		if err != nil {
			return err
		}

		resp, err := findHost(cmd.Context(), cmd, settings, pairCode)
		if errors.Is(err, discovery.ErrNotFound) {
			fmt.Println(ui.RenderWarning("No host answered. Check the pairing code and that both devices share a network."))
			return err
		}
		if err != nil {
			return err
		}

		fmt.Print(ui.RenderPanel("host found", []ui.Field{
			{Label: "Address", Value: fmt.Sprintf("%s:%d", resp.Host, resp.Port)},
			{Label: "Pair code", Value: resp.PairCode},
			{Label: "Key ID", Value: resp.KeyID},
		}))
		return nil
	},
}

func init() {
	addClientFlags(discoverCmd)
}

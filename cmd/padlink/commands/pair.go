package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/padlink/padlink/internal/ui"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Run the pairing handshake against a host",
	Long: `Find a host (or read its QR payload with --qr), run the ECDH pairing
handshake and report the result. Use "padlink send" to pair and stream in
one step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		result, err := establish(cmd.Context(), cmd, settings, log)
		if err != nil {
			return err
		}

		fmt.Println(ui.RenderSuccess("Paired."))
		fmt.Print(ui.RenderPanel("session", []ui.Field{
			{Label: "Host", Value: result.Addr},
			{Label: "Key ID", Value: result.KeyID},
		}))
		return nil
	},
}

func init() {
	addPairFlags(pairCmd)
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/padlink/padlink/internal/ui"
	"github.com/padlink/padlink/internal/wire"
)

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Print or check a pairing QR payload",
	Long: `Without arguments, discover a host and print the pairing QR payload
describing it. With --check, validate a scanned payload instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if raw, _ := cmd.Flags().GetString("check"); raw != "" {
			payload, err := wire.ParsePairingQR(raw)
			if err != nil {
				return err
			}
			fmt.Println(ui.RenderSuccess("Valid pairing payload."))
			fmt.Print(ui.RenderPanel("pairing QR", []ui.Field{
				{Label: "Host", Value: fmt.Sprintf("%s:%d", payload.Host, payload.Port)},
				{Label: "Key ID", Value: payload.KeyID},
			}))
			return nil
		}

		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		pairCode, err := resolvePairCode(cmd, settings)
		if err != nil {
			return err
		}
		resp, err := findHost(cmd.Context(), cmd, settings, pairCode)
		if err != nil {
			return err
		}

		payload := wire.NewPairingQRPayload(resp.Host, resp.Port, resp.PairCode, resp.PublicKey, resp.KeyID)
		if payload.PairCode == "" {
			payload.PairCode = pairCode
		}
		encoded, err := payload.Encode()
		if err != nil {
			return err
		}
		fmt.Println(encoded)
		return nil
	},
}

func init() {
	addClientFlags(qrCmd)
	qrCmd.Flags().String("check", "", "Validate this QR payload instead of discovering")
}

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/warp-contracts/shadowlink/src/engine"
)

var balanceAddress string

func init() {
	balanceCmd.Flags().StringVar(&balanceAddress, "address", "", "wallet address, defaults to the signer")
	RootCmd.AddCommand(balanceCmd)
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show available and shielded balance of a wallet",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		address := balanceAddress
		if address == "" {
			signer, err := loadSigner()
			if err != nil {
				return err
			}
			if signer == nil {
				return errNoSigner
			}
			address = signer.Address()
		}

		return withEngine(func(e *engine.Engine) error {
			balance, err := e.Eligibility.Balance(ctx, address)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		})
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		cancel()
		return
	},
}

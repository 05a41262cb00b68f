package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp-contracts/shadowlink/src/engine"
	"github.com/warp-contracts/shadowlink/src/payroll"
)

var payrollEmployer string

func init() {
	payrollCmd.Flags().StringVar(&payrollEmployer, "employer", "", "employer wallet, must match the signer")
	RootCmd.AddCommand(payrollCmd)
}

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Pay all employees of the signer",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		signer, err := loadSigner()
		if err != nil {
			return
		}
		if signer == nil {
			return errNoSigner
		}

		employer := payrollEmployer
		if employer == "" {
			employer = signer.Address()
		}

		out := cmd.OutOrStdout()
		return withEngine(func(e *engine.Engine) error {
			run, err := e.Payroll.Run(ctx, employer, signer, func(status payroll.RunStatus) {
				switch status.State {
				case payroll.StateCompleted:
					fmt.Fprintf(out, "%-24s %-10s %s\n", status.Name, status.State, status.Reference)
				case payroll.StateFailed:
					fmt.Fprintf(out, "%-24s %-10s %s\n", status.Name, status.State, status.Reason)
				default:
					fmt.Fprintf(out, "%-24s %s\n", status.Name, status.State)
				}
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%d paid, %d failed\n", run.Succeeded, run.Failed)
			return nil
		})
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		cancel()
		return
	},
}

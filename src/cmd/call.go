package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp-contracts/shadowlink/src/engine"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

var (
	callActor   string
	callPayload string
)

func init() {
	callCmd.Flags().StringVar(&callActor, "actor", "", "address of the acting party, defaults to the signer")
	callCmd.Flags().StringVar(&callPayload, "json", "{}", "request of the operation")
	RootCmd.AddCommand(callCmd)
}

var callCmd = &cobra.Command{
	Use:   "call <operation>",
	Short: "Invoke one workflow operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		signer, err := loadSigner()
		if err != nil {
			return
		}

		actor := callActor
		if actor == "" && signer != nil {
			actor = signer.Address()
		}

		return withEngine(func(e *engine.Engine) error {
			out, err := e.Call(ctx, &engine.Call{
				Operation: args[0],
				Actor:     actor,
				Payload:   []byte(callPayload),
				Signer:    signer,
			})
			if out != nil {
				printErr := printJSON(cmd.OutOrStdout(), out)
				if printErr != nil {
					return printErr
				}
			}
			if err != nil {
				if strings.Contains(err.Error(), "unknown operation") {
					return fmt.Errorf("%w, available: %s", err, strings.Join(e.Operations(), ", "))
				}
				if errors.Is(err, settlement.ErrConfirmationUnknown) {
					return fmt.Errorf("%w (outcome unknown, re-check the reference before acting again)", err)
				}
				if workflow.IsRetryable(err) {
					return fmt.Errorf("%w (retryable, check the current state first)", err)
				}
			}
			return err
		})
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		cancel()
		return
	},
}

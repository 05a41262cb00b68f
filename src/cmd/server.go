package cmd

import (
	"github.com/spf13/cobra"
	"github.com/warp-contracts/shadowlink/src/engine"
)

func init() {
	RootCmd.AddCommand(serverCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the engine with the monitoring server",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := engine.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		select {
		case <-controller.CtxRunning.Done():
		case <-ctx.Done():
		}

		controller.StopWait()

		return
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		cancel()
		return
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pueued/internal/wire"
)

var shutdownImmediate bool

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop the daemon",
	Long: `Shutdown asks the daemon to stop. Graceful (the default) waits up to 10
seconds for running tasks to finish on their own, then sends SIGKILL to any
still running; --immediate sends SIGKILL to every non-terminal task right
away.`,
	Run: func(cmd *cobra.Command, args []string) {
		kind := wire.ShutdownGraceful
		if shutdownImmediate {
			kind = wire.ShutdownImmediate
		}
		call(wire.MsgDaemonShutdown, wire.DaemonShutdown{Kind: kind})
		fmt.Println("Shutdown requested.")
	},
}

func init() {
	shutdownCmd.Flags().BoolVar(&shutdownImmediate, "immediate", false, "don't wait for running tasks, kill them now")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pueued/internal/wire"
)

var (
	killChildren bool
	killSignal   string
	killAll      bool
)

var killCmd = &cobra.Command{
	Use:   "kill [task-id...]",
	Short: "Send a signal to running tasks (default SIGTERM)",
	Run: func(cmd *cobra.Command, args []string) {
		ids := parseTaskIds(args)
		if len(ids) == 0 && !killAll {
			exitWithError("kill requires at least one task id, or --all", nil)
		}
		runKill(ids)
	},
}

func init() {
	killCmd.Flags().BoolVar(&killChildren, "children", false, "also signal the task's process group")
	killCmd.Flags().StringVar(&killSignal, "signal", "", "signal name or number (default: SIGTERM)")
	killCmd.Flags().BoolVar(&killAll, "all", false, "kill every running and paused task")
}

func runKill(ids []int) {
	call(wire.MsgKill, wire.Kill{Tasks: ids, Children: killChildren, Signal: killSignal})
	fmt.Println("Kill signal sent.")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pueued/internal/wire"
)

var (
	pauseChildren bool
	pauseWait     bool
	pauseGroup    string
)

var pauseCmd = &cobra.Command{
	Use:   "pause [task-id...]",
	Short: "Pause running tasks (SIGSTOP)",
	Long: `Pause sends SIGSTOP to the given tasks, or to every running task if
none are given. Paused tasks keep their process alive but suspended; use
"pueue start" to resume them.`,
	Run: func(cmd *cobra.Command, args []string) {
		runPause(parseTaskIds(args))
	},
}

func init() {
	pauseCmd.Flags().BoolVar(&pauseChildren, "children", false, "also signal the task's process group")
	pauseCmd.Flags().BoolVar(&pauseWait, "wait", false, "mark the task pending-pause until SIGSTOP is sent (does not wait for the process to stop)")
	pauseCmd.Flags().StringVarP(&pauseGroup, "group", "g", "", "pause this group: no new tasks start in it (running tasks are not signalled)")
}

func runPause(ids []int) {
	if pauseGroup != "" {
		call(wire.MsgGroup, wire.Group{Action: wire.GroupPause, Name: pauseGroup})
		fmt.Printf("Group %q paused.\n", pauseGroup)
		return
	}
	call(wire.MsgPause, wire.Pause{Tasks: ids, Children: pauseChildren, Wait: pauseWait})
	fmt.Println("Pause signal sent.")
}

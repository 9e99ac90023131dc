package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pueued/internal/wire"
)

var (
	startChildren bool
	startGroup    string
)

var startCmd = &cobra.Command{
	Use:   "start [task-id...]",
	Short: "Resume paused tasks or admit queued ones",
	Long: `Start sends SIGCONT to the given paused tasks, resuming them where they
left off, and releases the given stashed tasks into the queue. With no task
ids, it instead asks the scheduler to admit every eligible queued task now;
tasks whose --delay has not yet passed stay queued.`,
	Run: func(cmd *cobra.Command, args []string) {
		runStart(parseTaskIds(args))
	},
}

func init() {
	startCmd.Flags().BoolVar(&startChildren, "children", false, "also signal the task's process group")
	startCmd.Flags().StringVarP(&startGroup, "group", "g", "", "resume this paused group")
}

func runStart(ids []int) {
	if startGroup != "" {
		call(wire.MsgGroup, wire.Group{Action: wire.GroupResume, Name: startGroup})
		fmt.Printf("Group %q resumed.\n", startGroup)
		return
	}
	call(wire.MsgStart, wire.Start{Tasks: ids, Children: startChildren})
	fmt.Println("Start signal sent.")
}

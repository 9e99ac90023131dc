package main

import (
	"os"

	"github.com/spf13/cobra"

	"pueued/internal/cliui"
	"pueued/internal/types"
	"pueued/internal/wire"
)

var statusGroup string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List all tasks and their status",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusGroup, "group", "g", "", "only show tasks in this group")
}

func runStatus() {
	resp := call(wire.MsgStatus, nil)
	var tasks []*types.Task
	decodePayload(resp, &tasks)

	if statusGroup != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Group == statusGroup {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	cliui.PrintTable(os.Stdout, tasks)
}

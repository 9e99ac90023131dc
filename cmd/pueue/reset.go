package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pueued/internal/wire"
)

var resetChildren bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Kill every task, wipe the registry and all logs",
	Long: `Reset kills every non-terminal task, clears the task table, and removes
every log file. Groups and their settings are kept. There is no undo.`,
	Run: func(cmd *cobra.Command, args []string) {
		call(wire.MsgReset, wire.Reset{Children: resetChildren})
		fmt.Println("Queue reset.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetChildren, "children", false, "also signal each task's process group")
}

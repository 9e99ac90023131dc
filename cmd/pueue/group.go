package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pueued/internal/wire"
)

var groupLimit int

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage task groups and their parallelism limits",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		call(wire.MsgGroup, wire.Group{Action: wire.GroupAdd, Name: args[0], Limit: groupLimit})
		fmt.Printf("Group %q added.\n", args[0])
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a group (must have no active tasks)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		call(wire.MsgGroup, wire.Group{Action: wire.GroupRemove, Name: args[0]})
		fmt.Printf("Group %q removed.\n", args[0])
	},
}

var groupSetLimitCmd = &cobra.Command{
	Use:   "set-limit <name> <limit>",
	Short: "Change a group's parallelism limit",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		limit, err := strconv.Atoi(args[1])
		if err != nil {
			exitWithError("limit must be an integer", err)
		}
		call(wire.MsgGroup, wire.Group{Action: wire.GroupSetLimit, Name: args[0], Limit: limit})
		fmt.Printf("Group %q limit set to %d.\n", args[0], limit)
	},
}

func init() {
	groupAddCmd.Flags().IntVar(&groupLimit, "limit", 1, "parallelism limit for the new group")
	groupCmd.AddCommand(groupAddCmd, groupRemoveCmd, groupSetLimitCmd)
}

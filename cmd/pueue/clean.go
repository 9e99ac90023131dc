package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pueued/internal/types"
	"pueued/internal/wire"
)

var (
	cleanGroup  string
	cleanFailed bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove finished tasks (and their logs) from the registry",
	Run: func(cmd *cobra.Command, args []string) {
		runClean()
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanGroup, "group", "g", "", "only clean tasks in this group")
	cleanCmd.Flags().BoolVar(&cleanFailed, "only-failed", false, "only clean tasks that did not succeed")
}

func runClean() {
	filter := types.Filter{Group: cleanGroup}
	if cleanFailed {
		filter.DoneKinds = []types.DoneKind{types.DoneFailure, types.DoneKilled, types.DoneDependencyFailed}
	}
	resp := call(wire.MsgClean, wire.Clean{Filter: filter})
	var removed []int
	decodePayload(resp, &removed)
	fmt.Printf("Cleaned %d task(s).\n", len(removed))
}

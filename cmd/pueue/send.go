package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pueued/internal/wire"
)

var sendCmd = &cobra.Command{
	Use:   "send <task-id> <input>",
	Short: "Write input to a running task's stdin",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			exitWithError("task id must be an integer", err)
		}
		runSend(id, args[1])
	},
}

func runSend(id int, input string) {
	call(wire.MsgSend, wire.Send{TaskId: id, Input: []byte(input + "\n")})
	fmt.Println("Input sent.")
}

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"pueued/internal/logstore"
	"pueued/internal/wire"
)

var logLines int

var logCmd = &cobra.Command{
	Use:   "log <task-id>",
	Short: "Print a task's stdout and stderr",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runLog(args[0])
	},
}

func init() {
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 0, "only print the last N lines of each stream (0 = full history)")
}

func runLog(idArg string) {
	id, err := strconv.Atoi(idArg)
	if err != nil {
		exitWithError("task id must be an integer", err)
	}

	req := wire.LogRangeFetch{TaskId: id}
	if logLines > 0 {
		req.Lines = &logLines
	}

	resp := call(wire.MsgLogRangeFetch, req)
	var result wire.LogRangeResult
	decodePayload(resp, &result)

	stdout, err := logstore.Decompress(result.Stdout)
	if err != nil {
		exitWithError("decompressing stdout", err)
	}
	stderr, err := logstore.Decompress(result.Stderr)
	if err != nil {
		exitWithError("decompressing stderr", err)
	}

	fmt.Printf("stdout:\n%s\n", stdout)
	if len(stderr) > 0 {
		fmt.Fprintf(os.Stderr, "stderr:\n%s\n", stderr)
	}
}

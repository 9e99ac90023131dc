package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"pueued/internal/follow"
	"pueued/internal/logstore"
)

var followLines int

var followCmd = &cobra.Command{
	Use:   "follow <task-id>",
	Short: "Follow a task's stdout as it runs",
	Long: `Follow tails a running (or finished) task's stdout file directly from
disk, assuming the client runs on the same host and filesystem as the
daemon; it reads the file itself rather than asking the daemon
(SPEC_FULL.md's Client Read Path). Ctrl-C stops
following without affecting the task.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runFollow(args[0])
	},
}

func init() {
	followCmd.Flags().IntVarP(&followLines, "lines", "n", 0, "start from the last N lines instead of the current end of file")
}

func runFollow(idArg string) {
	id, err := strconv.Atoi(idArg)
	if err != nil {
		exitWithError("task id must be an integer", err)
	}

	outPath, _ := logstore.Paths(id, cfg.LogDir)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := follow.Follow(ctx, os.Stdout, outPath, followLines); err != nil {
		exitWithError(fmt.Sprintf("following task %d", id), err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"pueued/internal/follow"
	"pueued/internal/logstore"
	"pueued/internal/wire"
)

var attachCmd = &cobra.Command{
	Use:   "attach <task-id>",
	Short: "Interactively send input to a task while following its output",
	Long: `Attach opens a line-editor loop: everything you type is sent to the
task's stdin (like repeated "pueue send"), while its stdout is followed and
printed in the same terminal. Ctrl-D detaches without affecting the task.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			exitWithError("task id must be an integer", err)
		}
		runAttach(id)
	},
}

func runAttach(id int) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	outPath, _ := logstore.Paths(id, cfg.LogDir)
	go func() {
		if err := follow.Follow(ctx, os.Stdout, outPath, 20); err != nil {
			fmt.Fprintf(os.Stderr, "pueue: follow: %v\n", err)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("\033[36mtask %d>\033[0m ", id),
		InterruptPrompt: "^C",
		EOFPrompt:       "detached",
	})
	if err != nil {
		exitWithError("readline init", err)
	}
	defer rl.Close()

	fmt.Printf("Attached to task %d. Ctrl-D to detach.\n", id)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			cancel()
			return
		}
		if line == "" {
			continue
		}
		if err := sendLine(id, line); err != nil {
			fmt.Fprintf(os.Stderr, "pueue: send: %v\n", err)
		}
	}
}

// sendLine is a non-fatal variant of call(wire.MsgSend, ...): a failed send
// (e.g. the task already exited) should not tear down the attach session.
func sendLine(id int, line string) error {
	c, err := dialNonFatal()
	if err != nil {
		return err
	}
	defer c.Close()
	resp, err := c.Call(wire.Message{Type: wire.MsgSend, Payload: wire.Send{TaskId: id, Input: []byte(line + "\n")}})
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

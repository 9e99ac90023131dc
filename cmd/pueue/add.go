package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pueued/internal/pathutil"
	"pueued/internal/types"
	"pueued/internal/wire"
)

var (
	addWorkingDir     string
	addGroup          string
	addLabel          string
	addDependencies   []int
	addStashed        bool
	addDelay          time.Duration
	addEnvs           []string
)

var addCmd = &cobra.Command{
	Use:   "add -- <command...>",
	Short: "Enqueue a new task",
	Long: `Enqueue a shell command for the daemon to run.

Everything after "--" is joined with spaces and passed to "bash -c". Use
--after to make the task depend on other task ids, --group to place it in a
group other than "default", and --stashed to enqueue it without making it
eligible to run until a later "pueue start".`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAdd(args)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addWorkingDir, "working-directory", "w", "", "working directory for the command (default: current directory)")
	addCmd.Flags().StringVarP(&addGroup, "group", "g", types.DefaultGroup, "group to enqueue the task into")
	addCmd.Flags().StringVarP(&addLabel, "label", "l", "", "human-readable label shown alongside the task id")
	addCmd.Flags().IntSliceVarP(&addDependencies, "after", "a", nil, "task ids this task depends on")
	addCmd.Flags().BoolVar(&addStashed, "stashed", false, "enqueue without admitting until a later start")
	addCmd.Flags().DurationVar(&addDelay, "delay", 0, "don't admit the task until this long from now")
	addCmd.Flags().StringArrayVarP(&addEnvs, "env", "e", nil, "KEY=VALUE environment override, may be repeated")
}

func runAdd(args []string) {
	spec := types.TaskSpec{
		Command:      strings.Join(args, " "),
		WorkingDir:   pathutil.ExpandHome(addWorkingDir),
		Group:        addGroup,
		Dependencies: addDependencies,
		Stashed:      addStashed,
	}
	if addLabel != "" {
		spec.Label = &addLabel
	}
	if addDelay > 0 {
		t := time.Now().Add(addDelay)
		spec.EarliestStart = &t
	}
	if len(addEnvs) > 0 {
		spec.Envs = make(map[string]string, len(addEnvs))
		for _, kv := range addEnvs {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				exitWithError(fmt.Sprintf("invalid --env %q, expected KEY=VALUE", kv), nil)
			}
			spec.Envs[k] = v
		}
	}
	if spec.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			spec.WorkingDir = wd
		}
	}

	resp := call(wire.MsgEnqueue, spec)
	var task types.Task
	decodePayload(resp, &task)
	fmt.Printf("New task added (id %d).\n", task.Id)
}

// Package main implements pueue, the CLI client that talks to the pueued
// daemon over its Unix control socket.
//
// Grounded on the teacher's cmd/agsh/main.go command-line entry shape and
// firestige-Otus/cmd's cobra subcommand-group idiom (a rootCmd with
// PersistentFlags for config/socket paths, private runX functions doing the
// actual RPC work behind each Run closure).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pueued/internal/config"
	"pueued/internal/transport"
)

var (
	configFile  string
	socketPath  string
	callTimeout time.Duration

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pueue",
	Short: "pueue is a command-line task management tool for sequential and parallel execution of long-running tasks",
	Long: `pueue manages a queue of long-running shell commands, executed by a
background daemon (pueued). Queue tasks, group them for bounded concurrency,
track dependencies between them, and inspect or follow their output — all
without keeping a terminal open for the duration of the work.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		cfg = loaded
		if !cmd.Flags().Changed("socket") {
			socketPath = cfg.Daemon.Bind
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to pueue.yml (optional)")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "", "daemon control socket path (default: from config)")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 10*time.Second,
		"timeout for a single daemon request")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(completionCmd)
}

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// dial opens a fresh connection to the daemon for one request/response. The
// protocol is call-and-close rather than a held-open session, matching
// internal/transport.Client's one-shot Call contract.
func dial() *transport.Client {
	c, err := dialNonFatal()
	if err != nil {
		exitWithError("failed to connect to pueued (is it running?)", err)
	}
	return c
}

// dialNonFatal is dial without the exit-on-failure behavior, for callers
// (attach's per-line send) that need to keep running after one failed call.
func dialNonFatal() (*transport.Client, error) {
	c, err := transport.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	if err := c.SetDeadline(time.Now().Add(callTimeout)); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// exitWithError prints msg (and err, if any) to stderr and exits 1.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "pueue: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "pueue: %s\n", msg)
	}
	os.Exit(1)
}

// Package cliui renders the CLI client's terminal output: a colored task
// table for `pueue status`, built on small ANSI helpers for colored status
// words. This is the client-side
// counterpart to the daemon's zap logging (internal/logging) — a CLI
// process prints for a human, not a log aggregator, so it keeps the
// teacher's own printf/ANSI style instead of adopting a structured logger.
//
// Grounded on the teacher's internal/ui/display.go: same ANSI constant set
// and status-to-color map idiom, generalized from the agent pipeline's
// message types to pueue's task statuses.
package cliui

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"pueued/internal/types"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiBlue   = "\033[34m"
)

var statusColor = map[types.Status]string{
	types.StatusQueued:  ansiCyan,
	types.StatusStashed: ansiDim,
	types.StatusLocked:  ansiDim,
	types.StatusRunning: ansiBlue,
	types.StatusPaused:  ansiYellow,
	types.StatusDone:    ansiGreen,
}

var doneKindColor = map[types.DoneKind]string{
	types.DoneSuccess:          ansiGreen,
	types.DoneFailure:          ansiRed,
	types.DoneKilled:           ansiRed,
	types.DoneDependencyFailed: ansiRed,
}

// StatusLabel returns t's status as a colored word, refined to its DoneKind
// when terminal (e.g. "Done(success)" in green, "Done(failure)" in red).
func StatusLabel(t *types.Task) string {
	if t.Status == types.StatusDone && t.Exit != nil {
		color := doneKindColor[t.Exit.DoneKind]
		if color == "" {
			color = ansiDim
		}
		return fmt.Sprintf("%sDone(%s)%s", color, t.Exit.DoneKind, ansiReset)
	}
	color := statusColor[t.Status]
	if color == "" {
		color = ansiDim
	}
	return fmt.Sprintf("%s%s%s", color, t.Status, ansiReset)
}

// PrintTable renders tasks as an aligned table to w: id, status, group,
// command (clipped), and elapsed/duration where known.
func PrintTable(w io.Writer, tasks []*types.Task) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tGROUP\tDURATION\tCOMMAND")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.Id, StatusLabel(t), t.Group, duration(t), clip(t.Command, 60))
	}
	tw.Flush()
}

func duration(t *types.Task) string {
	if t.Exit == nil || t.Exit.Start.IsZero() {
		return "-"
	}
	end := t.Exit.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return end.Sub(t.Exit.Start).Round(time.Second).String()
}

// clip truncates s to at most n characters, appending "…" if trimmed.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// Package follow implements the client's local follow-tail read path: open
// the target log file, print the last N lines, then poll for newly-appended
// bytes at ~100ms cadence until the file disappears.
//
// Grounded on original_source/client/display/follow.rs: same
// tail-then-poll-for-new-bytes shape, open question "single contiguous
// read vs two-slice split" resolved in SPEC_FULL.md §9 (Go's os.File has no
// VecDeque-style wraparound to preserve, so the initial tail is one
// contiguous read).
package follow

import (
	"context"
	"io"
	"os"
	"time"

	"pueued/internal/logstore"
	"pueued/internal/perrors"
)

// PollInterval is the cadence at which Follow checks for newly-written
// bytes, matching original_source's ~100ms sleep.
const PollInterval = 100 * time.Millisecond

// Follow writes path's last n lines (if n > 0) to w, then polls for new
// bytes until ctx is canceled or the file disappears, at which point it
// writes "File has gone away." and returns. A zero or negative n skips the
// initial tail and starts following from the current end of file.
func Follow(ctx context.Context, w io.Writer, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return perrors.New(perrors.LogRead, "follow", err)
	}
	defer f.Close()

	if n > 0 {
		if _, err := logstore.SeekToLastLines(f, n, nil); err != nil {
			return perrors.New(perrors.LogRead, "follow", err)
		}
	} else {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return perrors.New(perrors.LogRead, "follow", err)
		}
	}

	if _, err := io.Copy(w, f); err != nil {
		return perrors.New(perrors.LogRead, "follow", err)
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					_, _ = io.WriteString(w, "File has gone away.\n")
					return nil
				}
				return perrors.New(perrors.LogRead, "follow", err)
			}
			if _, err := io.Copy(w, f); err != nil {
				return perrors.New(perrors.LogRead, "follow", err)
			}
		}
	}
}

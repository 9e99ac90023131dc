// Package pathutil holds small filesystem path helpers shared by the config
// loader and the CLI client.
//
// Grounded on the teacher's internal/tools/workspace.go (ExpandHome), kept
// for the one concern that generalizes beyond the agentic shell: users and
// config files routinely write "~/..." paths and the daemon/CLI run without
// a shell to expand them first.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome replaces a leading "~" or "~/" with the current user's home
// directory. Any other path, including one with no leading "~", is returned
// unchanged.
func ExpandHome(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
